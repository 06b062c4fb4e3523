// Package notebook is the single front door to the resident page. Every
// outer surface (HTTP, MCP, inbox) goes through Service, which serializes
// access to the session and the store.
package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/grid"
	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/render"
	"github.com/starford/inkwell/internal/session"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/storage"
)

// CopiesDocument holds pages that were cut and not yet pasted.
const CopiesDocument = "Copies"

// Store is the part of the page store the notebook needs beyond the session.
type Store interface {
	inkstore.PageStore
	Documents() ([]string, error)
	Pages(doc string) ([]int, error)
	PageCount(doc string) (int, error)
	ImportPage(checksum, doc string, strokes []models.Stroke, links []models.LinkRecord) (int, error)
	HasImport(checksum string) (bool, error)
	Check() ([]inkstore.Gap, error)
	Repair() ([]string, error)
}

// Options configures a Service.
type Options struct {
	Width  int
	Height int
	// Dumps is where exports are written. Export fails when nil.
	Dumps storage.Provider
	// Publish receives page events. May be nil.
	Publish func(sse.PageEvent)
	Logger  *slog.Logger
}

// Status is a snapshot of the session for clients.
type Status struct {
	State        string `json:"state"`
	Document     string `json:"document,omitempty"`
	Page         int    `json:"page"`
	Scroll       int    `json:"scroll"`
	StrokesDirty bool   `json:"strokes_dirty"`
	LinksDirty   bool   `json:"links_dirty"`
	Strokes      int    `json:"strokes"`
	Links        int    `json:"links"`
}

// Page is the full content of one page.
type Page struct {
	Document string              `json:"document"`
	Page     int                 `json:"page"`
	Strokes  []models.Stroke     `json:"strokes"`
	Links    []models.LinkRecord `json:"links"`
}

// Service coordinates the session, store, renderer and dump directory.
type Service struct {
	mu sync.Mutex

	store   Store
	sess    *session.Session
	metrics *render.Metrics
	dumps   storage.Provider
	width   int
	height  int
	publish func(sse.PageEvent)
	logger  *slog.Logger
}

// New creates a notebook with nothing loaded.
func New(store Store, metrics *render.Metrics, opts Options) (*Service, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("notebook: invalid page size %dx%d", opts.Width, opts.Height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publish := opts.Publish
	if publish == nil {
		publish = func(sse.PageEvent) {}
	}
	geom := grid.NewGeometry(opts.Width, opts.Height)
	return &Service{
		store:   store,
		sess:    session.New(store, geom, metrics, logger),
		metrics: metrics,
		dumps:   opts.Dumps,
		width:   opts.Width,
		height:  opts.Height,
		publish: publish,
		logger:  logger,
	}, nil
}

func (s *Service) emit(kind string, key models.PageKey, count int) {
	s.publish(sse.PageEvent{Kind: kind, Key: key, Count: count})
}

func (s *Service) resident() (models.PageKey, error) {
	key, ok := s.sess.Key()
	if !ok {
		return models.PageKey{}, fmt.Errorf("notebook: %w", apperr.ErrNotResident)
	}
	return key, nil
}

// Status returns the current session state.
func (s *Service) Status(_ context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.sess.State().String(), Scroll: s.sess.ScrollTop()}
	key, ok := s.sess.Key()
	if !ok {
		return st
	}
	st.Document = key.Document
	st.Page = key.Page
	st.StrokesDirty, st.LinksDirty = s.sess.Dirty()
	_ = s.sess.WithView(func(v session.View) {
		st.Strokes = v.StrokeCount()
		st.Links = len(v.Links())
	})
	return st
}

// Load makes (doc, page) the resident page.
func (s *Service) Load(_ context.Context, doc string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(doc, page)
}

func (s *Service) load(doc string, page int) error {
	if err := s.sess.Load(doc, page); err != nil {
		return err
	}
	s.emit(sse.KindLoaded, models.PageKey{Document: doc, Page: page}, 0)
	return nil
}

// Save persists the resident page if it has unsaved changes.
func (s *Service) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Service) save() error {
	strokes, links := s.sess.Dirty()
	if err := s.sess.Save(); err != nil {
		return err
	}
	if key, ok := s.sess.Key(); ok && (strokes || links) {
		s.emit(sse.KindSaved, key, 0)
	}
	return nil
}

// Move relocates a page and reloads the resident key.
func (s *Service) Move(_ context.Context, fromDoc string, fromPage int, toDoc string, toPage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.move(fromDoc, fromPage, toDoc, toPage)
}

func (s *Service) move(fromDoc string, fromPage int, toDoc string, toPage int) error {
	if err := s.sess.Move(fromDoc, fromPage, toDoc, toPage); err != nil {
		return err
	}
	s.emit(sse.KindMoved, models.PageKey{Document: toDoc, Page: toPage}, 0)
	return nil
}

// Cut moves the resident page to the front of the Copies document.
func (s *Service) Cut(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.resident()
	if err != nil {
		return err
	}
	return s.move(key.Document, key.Page, CopiesDocument, 0)
}

// Paste moves the first page of Copies into the resident slot.
func (s *Service) Paste(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.resident()
	if err != nil {
		return err
	}
	n, err := s.store.PageCount(CopiesDocument)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notebook: paste: nothing cut: %w", apperr.ErrNotFound)
	}
	return s.move(CopiesDocument, 0, key.Document, key.Page)
}

// Next loads the following page. It reports whether the page changed.
func (s *Service) Next(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn(s.sess.Next)
}

// Prev loads the preceding page. It reports whether the page changed.
func (s *Service) Prev(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn(s.sess.Prev)
}

func (s *Service) turn(step func() (bool, error)) (bool, error) {
	changed, err := step()
	if err != nil || !changed {
		return changed, err
	}
	key, _ := s.sess.Key()
	s.emit(sse.KindLoaded, key, 0)
	return true, nil
}

// Scroll moves the viewport by delta pixels and returns the new offset.
func (s *Service) Scroll(_ context.Context, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Scroll(delta)
}

// ScrollHalf scrolls by half a page height, down when down is true.
func (s *Service) ScrollHalf(ctx context.Context, down bool) int {
	delta := s.height / 2
	if !down {
		delta = -delta
	}
	return s.Scroll(ctx, delta)
}

// AddStrokes inserts strokes into the resident page in order. The batch is
// all or nothing: every stroke is bounds-checked before any is inserted.
func (s *Service) AddStrokes(_ context.Context, strokes []models.Stroke) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resident(); err != nil {
		return 0, err
	}
	geom := s.sess.Geometry()
	for i, st := range strokes {
		if err := geom.CheckStroke(st); err != nil {
			return 0, fmt.Errorf("notebook: stroke %d: %w", i, err)
		}
	}
	for i, st := range strokes {
		if err := s.sess.AddStroke(st); err != nil {
			return i, fmt.Errorf("notebook: stroke %d: %w", i, err)
		}
	}
	return len(strokes), nil
}

// Erase removes strokes starting within r of (x, y).
func (s *Service) Erase(_ context.Context, x, y, r int) ([]models.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.sess.Erase(x, y, r, nil)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		key, _ := s.sess.Key()
		s.emit(sse.KindErased, key, len(removed))
	}
	return removed, nil
}

// AddLink anchors a link to target at (x, y) on the resident page.
func (s *Service) AddLink(_ context.Context, x, y int, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.AddLink(x, y, target)
}

// FindLink returns the link under (x, y).
func (s *Service) FindLink(_ context.Context, x, y int) (models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resident(); err != nil {
		return models.Link{}, err
	}
	l, ok := s.sess.FindLink(x, y)
	if !ok {
		return models.Link{}, fmt.Errorf("notebook: link at (%d,%d): %w", x, y, apperr.ErrNotFound)
	}
	return l, nil
}

// RemoveLink deletes the link under (x, y).
func (s *Service) RemoveLink(_ context.Context, x, y int) (models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok, err := s.sess.RemoveLink(x, y)
	if err != nil {
		return models.Link{}, err
	}
	if !ok {
		return models.Link{}, fmt.Errorf("notebook: link at (%d,%d): %w", x, y, apperr.ErrNotFound)
	}
	return l, nil
}

// Follow loads page 0 of the document the link under (x, y) points at.
func (s *Service) Follow(_ context.Context, x, y int) (models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resident(); err != nil {
		return models.Link{}, err
	}
	l, ok := s.sess.FindLink(x, y)
	if !ok {
		return models.Link{}, fmt.Errorf("notebook: link at (%d,%d): %w", x, y, apperr.ErrNotFound)
	}
	if err := s.load(l.Target, 0); err != nil {
		return models.Link{}, err
	}
	return l, nil
}

// Clear empties the resident page.
func (s *Service) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clear()
}

// Documents lists every document with stored content. A dirty resident page
// is saved first so its document is listed, which emits page.saved.
func (s *Service) Documents(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	docs, err := s.store.Documents()
	if docs == nil {
		docs = []string{}
	}
	return docs, err
}

// Pages lists the stored page numbers of doc. A dirty resident page is saved
// first, as in Documents.
func (s *Service) Pages(_ context.Context, doc string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	pages, err := s.store.Pages(doc)
	if pages == nil {
		pages = []int{}
	}
	return pages, err
}

// ReadPage returns the content of (doc, page). The resident page is served
// from memory, including unsaved edits.
func (s *Service) ReadPage(_ context.Context, doc string, page int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPage(doc, page)
}

func (s *Service) readPage(doc string, page int) (Page, error) {
	if doc == "" || page < 0 {
		return Page{}, fmt.Errorf("notebook: read %q:%d: %w", doc, page, apperr.ErrInvalidPage)
	}
	out := Page{Document: doc, Page: page, Strokes: []models.Stroke{}, Links: []models.LinkRecord{}}
	if key, ok := s.sess.Key(); ok && key == (models.PageKey{Document: doc, Page: page}) {
		_ = s.sess.WithView(func(v session.View) {
			out.Strokes = append(out.Strokes, v.Strokes()...)
			for _, l := range v.Links() {
				out.Links = append(out.Links, l.Record())
			}
		})
		return out, nil
	}
	strokes, err := s.store.ReadStrokes(doc, page)
	if err != nil {
		return Page{}, err
	}
	links, err := s.store.ReadLinks(doc, page)
	if err != nil {
		return Page{}, err
	}
	out.Strokes = append(out.Strokes, strokes...)
	out.Links = append(out.Links, links...)
	return out, nil
}

// Check reports documents whose page numbering has gaps.
func (s *Service) Check(_ context.Context) ([]inkstore.Gap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Check()
}

// Repair renumbers pages contiguously and reloads the resident key.
func (s *Service) Repair(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	fixed, err := s.store.Repair()
	if err != nil {
		return nil, err
	}
	if key, ok := s.sess.Key(); ok && len(fixed) > 0 {
		if err := s.load(key.Document, key.Page); err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

// Close saves and unloads the resident page.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.Close(); err != nil {
		s.logger.Error("notebook: save on close failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
