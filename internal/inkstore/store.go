package inkstore

import "github.com/starford/inkwell/internal/models"

// PageStore defines the durable page operations the session depends on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type PageStore interface {
	ReadStrokes(doc string, page int) ([]models.Stroke, error)
	ReadLinks(doc string, page int) ([]models.LinkRecord, error)
	ReplacePage(doc string, page int, strokes []models.Stroke, links []models.LinkRecord) error
	ReplaceStrokes(doc string, page int, strokes []models.Stroke) error
	ReplaceLinks(doc string, page int, links []models.LinkRecord) error
	ShiftPages(doc string, from, delta int) error
	RetagPage(fromDoc string, fromPage int, toDoc string, toPage int) error
	MovePage(fromDoc string, fromPage int, toDoc string, toPage int) error
	ClearPage(doc string, page int) error
}

// Verify *DB satisfies PageStore at compile time.
var _ PageStore = (*DB)(nil)
