// Package testutil provides shared test helpers for setting up stores and
// dump directories.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/storage"
)

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestStore creates a temporary SQLite page store that is automatically cleaned up.
func TestStore(t *testing.T) *inkstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "inkwell-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := inkstore.Open(dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDumps creates a temporary dump directory with a storage.FS.
func TestDumps(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Measurer sizes text at 10px per byte, independent of font size.
type Measurer struct{}

// MeasureText implements grid.TextMeasurer.
func (Measurer) MeasureText(s string, _ int) int { return 10 * len(s) }
