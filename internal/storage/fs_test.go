package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/inkwell/internal/checksum"
	"github.com/starford/inkwell/internal/models"
)

func tempDumps(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func sampleDump(t *testing.T) Dump {
	t.Helper()
	d, err := NewDump("Home", 2,
		[]models.Stroke{{AX: 10, AY: 10, BX: 20, BY: 20, Width: 2}},
		[]models.LinkRecord{{X: 100, Y: 50, Target: "Other"}})
	if err != nil {
		t.Fatalf("NewDump: %v", err)
	}
	return d
}

func TestWriteAndRead(t *testing.T) {
	s := tempDumps(t)
	content := []byte(`{"hello":"world"}`)
	if err := s.Write("page.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("page.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempDumps(t)
	if err := s.Write("a/b/c.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempDumps(t)
	_ = s.Write("del.json", []byte("bye"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.json")
	if !IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempDumps(t)
	_ = s.Write("a.json", []byte("a"))
	_ = s.Write("sub/b.json", []byte("b"))
	_ = s.Write("page.png", []byte("not json"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "a.json" {
		t.Errorf("first path = %q", items[0].Path)
	}
	if items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("checksum = %q", items[0].Checksum)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDumps(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempDumps(t)
	_ = s.Write("atomic.json", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".inkwell-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s", dir)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "inkwell-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWriteDumpAndReadDump(t *testing.T) {
	s := tempDumps(t)
	d := sampleDump(t)

	rel, err := s.WriteDump(d)
	if err != nil {
		t.Fatalf("WriteDump: %v", err)
	}
	if rel != "Home/page-002.json" {
		t.Errorf("path = %q", rel)
	}

	got, sum, err := s.ReadDump(rel)
	if err != nil {
		t.Fatalf("ReadDump: %v", err)
	}
	if got.ID != d.ID || got.Document != "Home" || got.Page != 2 {
		t.Errorf("dump = %+v", got)
	}
	if len(got.Strokes) != 1 || got.Strokes[0] != d.Strokes[0] {
		t.Errorf("strokes = %+v", got.Strokes)
	}
	raw, _ := s.Read(rel)
	if sum != checksum.Sum(raw) {
		t.Errorf("checksum mismatch")
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":    `{`,
		"no id":        `{"document":"Home","page":0}`,
		"bad id":       `{"id":"nope","document":"Home","page":0}`,
		"no document":  `{"id":"0190a8d6-5b3c-7c4e-9a3b-1f2e3d4c5b6a","page":0}`,
		"negative":     `{"id":"0190a8d6-5b3c-7c4e-9a3b-1f2e3d4c5b6a","document":"Home","page":-1}`,
		"empty target": `{"id":"0190a8d6-5b3c-7c4e-9a3b-1f2e3d4c5b6a","document":"Home","page":0,"links":[{"x":1,"y":1,"target":""}]}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDumpPath_Sanitizes(t *testing.T) {
	cases := map[string]string{
		"Home":   "Home/page-000.json",
		"../etc": ".._etc/page-000.json",
		"a/b":    "a_b/page-000.json",
		"..":     "_/page-000.json",
	}
	for doc, want := range cases {
		if got := DumpPath(doc, 0, ".json"); got != want {
			t.Errorf("DumpPath(%q) = %q, want %q", doc, got, want)
		}
		if strings.Contains(DumpPath(doc, 0, ".json"), "../") {
			t.Errorf("DumpPath(%q) escapes", doc)
		}
	}
}
