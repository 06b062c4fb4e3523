package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/models"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "db", "inkwell.db")
	cfg.Inbox.Path = filepath.Join(dir, "inbox")
	cfg.Export.Path = filepath.Join(dir, "export")
	cfg.Page.Width = 400
	cfg.Page.Height = 600
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func seedStore(t *testing.T, cfg *Config, doc string, pages ...int) {
	t.Helper()
	db, err := inkstore.Open(cfg.SQLite.Path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, p := range pages {
		s := models.Stroke{AX: 10, AY: 10, BX: 30, BY: 30, Width: 2, Etc: byte(p)}
		if err := db.ReplaceStrokes(doc, p, []models.Stroke{s}); err != nil {
			t.Fatal(err)
		}
	}
}

func openStore(t *testing.T, cfg *Config) *inkstore.DB {
	t.Helper()
	db, err := inkstore.Open(cfg.SQLite.Path, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quiet() Option { return WithLogOutput(io.Discard) }

func TestSetup_RequiresConfig(t *testing.T) {
	if _, err := setup([]Option{quiet()}, nil); err == nil {
		t.Fatal("setup without config should fail")
	}
}

func TestRepairCommand(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	seedStore(t, cfg, "A", 0, 2)

	fixed, err := Repair(context.Background(), WithConfig(cfg), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != 1 || fixed[0] != "A" {
		t.Errorf("fixed = %v", fixed)
	}

	pages, err := openStore(t, cfg).Pages("A")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[1] != 1 {
		t.Errorf("pages = %v", pages)
	}
}

func TestMoveCommand(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	seedStore(t, cfg, "A", 0, 1)

	from := models.PageKey{Document: "A", Page: 0}
	to := models.PageKey{Document: "B", Page: 0}
	if err := Move(context.Background(), from, to, WithConfig(cfg), quiet()); err != nil {
		t.Fatal(err)
	}

	db := openStore(t, cfg)
	moved, err := db.ReadStrokes("B", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 1 || moved[0].Etc != 0 {
		t.Errorf("B:0 = %+v", moved)
	}
	if n, _ := db.PageCount("A"); n != 1 {
		t.Errorf("A page count = %d, want 1", n)
	}
}

func TestExportCommand(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	seedStore(t, cfg, "Home", 0)

	res, err := Export(context.Background(), models.PageKey{Document: "Home", Page: 0}, WithConfig(cfg), quiet())
	if err != nil {
		t.Fatal(err)
	}
	for _, rel := range []string{res.Dump, res.Image} {
		if _, err := os.Stat(filepath.Join(cfg.Export.Path, rel)); err != nil {
			t.Errorf("exported file %s: %v", rel, err)
		}
	}
}
