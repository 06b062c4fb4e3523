// Package inbox imports page dumps dropped into a directory. Each dump is
// appended as the new last page of its document, at most once per checksum.
package inbox

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/storage"
)

// Importer stores a decoded dump.
type Importer interface {
	Import(ctx context.Context, d storage.Dump, checksum string) (models.PageKey, error)
}

// EventCallback is called after a dump is imported.
type EventCallback func(key models.PageKey, path string)

// Sync imports every dump under the inbox that has not been imported yet and
// returns how many were added.
func Sync(ctx context.Context, imp Importer, dumps storage.Provider, logger *slog.Logger) (int, error) {
	metas, err := dumps.List("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range metas {
		if _, ok := importFile(ctx, imp, dumps, m.Path, logger); ok {
			n++
		}
	}
	if n > 0 {
		logger.Info("inbox: sync imported", slog.Int("pages", n))
	}
	return n, nil
}

// importFile reads and imports one dump. Duplicates are skipped silently;
// unreadable or invalid dumps are logged and skipped.
func importFile(ctx context.Context, imp Importer, dumps storage.Provider, rel string, logger *slog.Logger) (models.PageKey, bool) {
	d, sum, err := dumps.ReadDump(rel)
	if err != nil {
		logger.Warn("inbox: skipped dump", slog.String("path", rel), slog.String("error", err.Error()))
		return models.PageKey{}, false
	}
	key, err := imp.Import(ctx, d, sum)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		logger.Debug("inbox: already imported", slog.String("path", rel))
		return models.PageKey{}, false
	}
	if err != nil {
		logger.Warn("inbox: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		return models.PageKey{}, false
	}
	logger.Info("inbox: imported",
		slog.String("path", rel),
		slog.String("doc", key.Document),
		slog.Int("page", key.Page))
	return key, true
}
