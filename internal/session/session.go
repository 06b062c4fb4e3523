// Package session manages the single resident page: loading it from the
// store into a spatial grid, tracking edits, saving on demand and relocating
// pages between documents.
package session

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/grid"
	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/models"
)

// MaxPage is the highest page index reachable by Next.
const MaxPage = 999

// State is the lifecycle state of a Session.
type State int

const (
	Unloaded State = iota
	Loading
	Resident
	Saving
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Resident:
		return "resident"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// View is the read-only surface of the resident grid handed to renderers and
// hit-testers. It must not be retained after the callback returns.
type View interface {
	VisibleRows(scrollTop, viewportHeight int) (first, last int, ok bool)
	Draw(r grid.Renderer, scrollTop, viewportHeight, originY int)
	FindLink(x, y int) (grid.LinkRef, bool)
	Strokes() []models.Stroke
	Links() []models.Link
	StrokeCount() int
	Len() int
}

// Session owns the resident grid and the store handle. It is not safe for
// concurrent use; callers serialize access.
type Session struct {
	store    inkstore.PageStore
	geom     grid.Geometry
	measurer grid.TextMeasurer
	logger   *slog.Logger

	state  State
	key    models.PageKey
	grid   *grid.Grid
	scroll int

	// Persisted records that do not fit the current geometry. They are
	// written back untouched on every save so they are never lost.
	spillStrokes []models.Stroke
	spillLinks   []models.LinkRecord
}

// New creates an unloaded session.
func New(store inkstore.PageStore, geom grid.Geometry, measurer grid.TextMeasurer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:    store,
		geom:     geom,
		measurer: measurer,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Key returns the resident page key; ok is false when nothing is loaded.
func (s *Session) Key() (models.PageKey, bool) {
	return s.key, s.state == Resident
}

// Dirty reports the strokes and links dirty flags of the resident page.
func (s *Session) Dirty() (strokes, links bool) {
	if s.grid == nil {
		return false, false
	}
	return s.grid.StrokesDirty(), s.grid.LinksDirty()
}

// Geometry returns the bucket dimensions every page is loaded with.
func (s *Session) Geometry() grid.Geometry { return s.geom }

// ScrollTop returns the vertical scroll offset in page pixels.
func (s *Session) ScrollTop() int { return s.scroll }

// Load makes (doc, page) the resident page. A dirty resident page is saved
// first; if that save fails the old page stays resident and the error is
// returned. The new grid is built completely before it replaces the old one.
func (s *Session) Load(doc string, page int) error {
	if doc == "" || page < 0 {
		return fmt.Errorf("session: load %q:%d: %w", doc, page, apperr.ErrInvalidPage)
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("session: flush before load: %w", err)
	}

	prev := s.state
	s.state = Loading
	g, spillS, spillL, err := s.read(doc, page)
	if err != nil {
		s.state = prev
		return err
	}

	s.grid = g
	s.spillStrokes = spillS
	s.spillLinks = spillL
	s.key = models.PageKey{Document: doc, Page: page}
	s.scroll = 0
	s.state = Resident

	s.logger.Debug("session: loaded",
		slog.String("doc", doc),
		slog.Int("page", page),
		slog.Int("strokes", g.StrokeCount()))
	return nil
}

func (s *Session) read(doc string, page int) (*grid.Grid, []models.Stroke, []models.LinkRecord, error) {
	strokes, err := s.store.ReadStrokes(doc, page)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("session: load %s:%d: %w", doc, page, err)
	}
	links, err := s.store.ReadLinks(doc, page)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("session: load %s:%d: %w", doc, page, err)
	}

	g, err := grid.New(s.geom, s.measurer)
	if err != nil {
		return nil, nil, nil, err
	}
	var (
		spillS []models.Stroke
		spillL []models.LinkRecord
	)
	for _, st := range strokes {
		if err := g.InsertStroke(st); err != nil {
			spillS = append(spillS, st)
		}
	}
	for _, l := range links {
		if err := g.InsertLink(l.X, l.Y, l.Target); err != nil {
			spillL = append(spillL, l)
		}
	}
	if len(spillS) > 0 || len(spillL) > 0 {
		s.logger.Warn("session: records outside page geometry kept aside",
			slog.String("doc", doc),
			slog.Int("page", page),
			slog.Int("strokes", len(spillS)),
			slog.Int("links", len(spillL)))
	}
	g.MarkClean(true, true)
	return g, spillS, spillL, nil
}

// Save persists the resident page. Strokes and links are written
// independently and only when their dirty flag is set; a flag is cleared
// only after its write succeeds. Save is a no-op when nothing is loaded.
func (s *Session) Save() error {
	if s.state != Resident {
		return nil
	}
	s.state = Saving
	defer func() { s.state = Resident }()

	if s.grid.StrokesDirty() {
		strokes := append(s.grid.Strokes(), s.spillStrokes...)
		if err := s.store.ReplaceStrokes(s.key.Document, s.key.Page, strokes); err != nil {
			return fmt.Errorf("session: save strokes %s:%d: %w", s.key.Document, s.key.Page, err)
		}
		s.grid.MarkClean(true, false)
	}
	if s.grid.LinksDirty() {
		links := slices.Clone(s.spillLinks)
		for _, l := range s.grid.Links() {
			links = append(links, l.Record())
		}
		if err := s.store.ReplaceLinks(s.key.Document, s.key.Page, links); err != nil {
			return fmt.Errorf("session: save links %s:%d: %w", s.key.Document, s.key.Page, err)
		}
		s.grid.MarkClean(false, true)
	}
	return nil
}

// Close saves and unloads the resident page. On a failed save the page stays
// resident so the caller can retry.
func (s *Session) Close() error {
	if err := s.Save(); err != nil {
		return err
	}
	s.grid = nil
	s.spillStrokes = nil
	s.spillLinks = nil
	s.scroll = 0
	s.state = Unloaded
	return nil
}

// Move relocates (fromDoc, fromPage) to (toDoc, toPage), keeping page
// numbering contiguous in both documents. The resident page is saved first
// and reloaded afterwards from the same key, whose content may now be a
// renumbered neighbour.
func (s *Session) Move(fromDoc string, fromPage int, toDoc string, toPage int) error {
	if s.state != Resident {
		return fmt.Errorf("session: move: %w", apperr.ErrNotResident)
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("session: flush before move: %w", err)
	}
	if err := s.store.MovePage(fromDoc, fromPage, toDoc, toPage); err != nil {
		return fmt.Errorf("session: move %s:%d to %s:%d: %w", fromDoc, fromPage, toDoc, toPage, err)
	}
	s.logger.Info("session: moved page",
		slog.String("from_doc", fromDoc), slog.Int("from_page", fromPage),
		slog.String("to_doc", toDoc), slog.Int("to_page", toPage))
	return s.Load(s.key.Document, s.key.Page)
}

// Next loads the following page of the resident document, up to MaxPage.
// It reports whether the page changed.
func (s *Session) Next() (bool, error) {
	if s.state != Resident {
		return false, fmt.Errorf("session: next: %w", apperr.ErrNotResident)
	}
	if s.key.Page >= MaxPage {
		return false, nil
	}
	if err := s.Load(s.key.Document, s.key.Page+1); err != nil {
		return false, err
	}
	return true, nil
}

// Prev loads the preceding page of the resident document.
// It reports whether the page changed.
func (s *Session) Prev() (bool, error) {
	if s.state != Resident {
		return false, fmt.Errorf("session: prev: %w", apperr.ErrNotResident)
	}
	if s.key.Page == 0 {
		return false, nil
	}
	if err := s.Load(s.key.Document, s.key.Page-1); err != nil {
		return false, err
	}
	return true, nil
}

// Scroll moves the viewport by delta pixels, never above the page top, and
// returns the new offset.
func (s *Session) Scroll(delta int) int {
	s.scroll = max(0, s.scroll+delta)
	return s.scroll
}

// Clear removes every stroke and link from the resident page. The change is
// persisted by the next Save.
func (s *Session) Clear() error {
	if s.state != Resident {
		return fmt.Errorf("session: clear: %w", apperr.ErrNotResident)
	}
	s.grid.Reset()
	s.spillStrokes = nil
	s.spillLinks = nil
	return nil
}

// AddStroke inserts a stroke into the resident page.
func (s *Session) AddStroke(st models.Stroke) error {
	if s.state != Resident {
		return fmt.Errorf("session: add stroke: %w", apperr.ErrNotResident)
	}
	return s.grid.InsertStroke(st)
}

// AddLink inserts a link to target anchored at (x, y).
func (s *Session) AddLink(x, y int, target string) error {
	if s.state != Resident {
		return fmt.Errorf("session: add link: %w", apperr.ErrNotResident)
	}
	return s.grid.InsertLink(x, y, target)
}

// Erase removes strokes starting within r of (cx, cy). undraw may be nil.
func (s *Session) Erase(cx, cy, r int, undraw func(models.Stroke)) ([]models.Stroke, error) {
	if s.state != Resident {
		return nil, fmt.Errorf("session: erase: %w", apperr.ErrNotResident)
	}
	return s.grid.EraseInRadius(cx, cy, r, undraw), nil
}

// FindLink returns a copy of the link under (x, y).
func (s *Session) FindLink(x, y int) (models.Link, bool) {
	if s.state != Resident {
		return models.Link{}, false
	}
	ref, ok := s.grid.FindLink(x, y)
	return ref.Link, ok
}

// RemoveLink deletes the link under (x, y) and returns it.
func (s *Session) RemoveLink(x, y int) (models.Link, bool, error) {
	if s.state != Resident {
		return models.Link{}, false, fmt.Errorf("session: remove link: %w", apperr.ErrNotResident)
	}
	l, ok := s.grid.RemoveLink(x, y)
	return l, ok, nil
}

// WithView calls fn with read-only access to the resident grid.
func (s *Session) WithView(fn func(View)) error {
	if s.state != Resident {
		return fmt.Errorf("session: view: %w", apperr.ErrNotResident)
	}
	fn(s.grid)
	return nil
}

// Draw paints the visible part of the resident page at the current scroll.
func (s *Session) Draw(r grid.Renderer, viewportHeight, originY int) error {
	return s.WithView(func(v View) {
		v.Draw(r, s.scroll, viewportHeight, originY)
	})
}
