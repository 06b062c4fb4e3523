package notebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/grid"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/render"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/storage"
)

// ExportResult names the files written by Export, relative to the dump root.
type ExportResult struct {
	Dump  string `json:"dump"`
	Image string `json:"image"`
}

// RenderResident writes the visible part of the resident page as PNG.
func (s *Service) RenderResident(_ context.Context, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := render.NewCanvas(s.metrics, s.width, s.height, true)
	if err != nil {
		return err
	}
	if err := s.sess.Draw(c, s.height, 0); err != nil {
		return err
	}
	return c.EncodePNG(w)
}

// renderPage rasterizes a whole page from the top.
func (s *Service) renderPage(p Page, w io.Writer) error {
	g, err := grid.New(grid.NewGeometry(s.width, s.height), s.metrics)
	if err != nil {
		return err
	}
	for _, st := range p.Strokes {
		_ = g.InsertStroke(st)
	}
	for _, l := range p.Links {
		_ = g.InsertLink(l.X, l.Y, l.Target)
	}
	c, err := render.NewCanvas(s.metrics, s.width, s.height, true)
	if err != nil {
		return err
	}
	g.Draw(c, 0, s.height, 0)
	return c.EncodePNG(w)
}

// Export writes (doc, page) to the dump directory as a JSON dump and a PNG.
func (s *Service) Export(_ context.Context, doc string, page int) (ExportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dumps == nil {
		return ExportResult{}, errors.New("notebook: export directory not configured")
	}
	if err := s.save(); err != nil {
		return ExportResult{}, err
	}
	p, err := s.readPage(doc, page)
	if err != nil {
		return ExportResult{}, err
	}

	d, err := storage.NewDump(p.Document, p.Page, p.Strokes, p.Links)
	if err != nil {
		return ExportResult{}, err
	}
	dumpPath, err := s.dumps.WriteDump(d)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	if err := s.renderPage(p, &buf); err != nil {
		return ExportResult{}, err
	}
	imagePath := storage.DumpPath(doc, page, ".png")
	if err := s.dumps.Write(imagePath, buf.Bytes()); err != nil {
		return ExportResult{}, err
	}

	s.logger.Info("notebook: exported page",
		slog.String("doc", doc), slog.Int("page", page), slog.String("path", dumpPath))
	return ExportResult{Dump: dumpPath, Image: imagePath}, nil
}

// Import appends a dump as the new last page of its document. A dump whose
// checksum was already imported is rejected with apperr.ErrAlreadyExists.
func (s *Service) Import(_ context.Context, d storage.Dump, checksum string) (models.PageKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := d.Validate(); err != nil {
		return models.PageKey{}, fmt.Errorf("notebook: import: %w", err)
	}
	seen, err := s.store.HasImport(checksum)
	if err != nil {
		return models.PageKey{}, err
	}
	if seen {
		return models.PageKey{}, fmt.Errorf("notebook: import %s: %w", checksum, apperr.ErrAlreadyExists)
	}
	// A dirty resident page must exist in the store before the new page
	// number is chosen.
	if err := s.save(); err != nil {
		return models.PageKey{}, err
	}
	page, err := s.store.ImportPage(checksum, d.Document, d.Strokes, d.Links)
	if err != nil {
		return models.PageKey{}, err
	}
	key := models.PageKey{Document: d.Document, Page: page}
	if cur, ok := s.sess.Key(); ok && cur == key {
		if err := s.sess.Load(key.Document, key.Page); err != nil {
			return key, err
		}
	}
	s.emit(sse.KindImported, key, 0)
	return key, nil
}
