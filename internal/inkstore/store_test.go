package inkstore

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "inkwell-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seed writes one stroke per page, tagging it with the page's original number
// in Etc so tests can follow content across renumbering.
func seed(t *testing.T, db *DB, doc string, n int) {
	t.Helper()
	for p := 0; p < n; p++ {
		s := models.Stroke{AX: 1, AY: 1, BX: 2, BY: 2, Width: 2, Etc: byte(p)}
		require.NoError(t, db.ReplaceStrokes(doc, p, []models.Stroke{s}))
	}
}

func origin(t *testing.T, db *DB, doc string, page int) int {
	t.Helper()
	ss, err := db.ReadStrokes(doc, page)
	require.NoError(t, err)
	require.Len(t, ss, 1, "%s:%d", doc, page)
	return int(ss[0].Etc)
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"pen_strokes", "file_links", "imported_dumps"} {
		var count int
		err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count)
		require.NoError(t, err, "%s table missing", table)
	}
}

func TestOpen_BadPathFails(t *testing.T) {
	_, err := Open(t.TempDir()+"/missing/dir/notes.db", nil)
	assert.Error(t, err)
}

func TestReplacePage_RoundTrip(t *testing.T) {
	db := testDB(t)
	strokes := []models.Stroke{
		{AX: 10, AY: 10, BX: 20, BY: 20, Width: 2},
		{AX: 30, AY: 40, BX: 50, BY: 60, Width: 17, Color: 8, Type: 1, Etc: 255},
	}
	links := []models.LinkRecord{{X: 100, Y: 50, Target: "Other"}}

	require.NoError(t, db.ReplacePage("Home", 0, strokes, links))

	gotS, err := db.ReadStrokes("Home", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, strokes, gotS)

	gotL, err := db.ReadLinks("Home", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, links, gotL)
}

func TestReplace_OverwritesOnlyItsCategory(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.ReplacePage("Home", 0,
		[]models.Stroke{{AX: 1}, {AX: 2}},
		[]models.LinkRecord{{X: 1, Y: 1, Target: "A"}}))

	require.NoError(t, db.ReplaceStrokes("Home", 0, []models.Stroke{{AX: 3}}))
	gotS, _ := db.ReadStrokes("Home", 0)
	assert.Equal(t, []models.Stroke{{AX: 3}}, gotS)
	gotL, _ := db.ReadLinks("Home", 0)
	assert.Len(t, gotL, 1)

	require.NoError(t, db.ReplaceLinks("Home", 0, nil))
	gotL, _ = db.ReadLinks("Home", 0)
	assert.Empty(t, gotL)
	gotS, _ = db.ReadStrokes("Home", 0)
	assert.Len(t, gotS, 1)
}

func TestReadStrokes_SkipsMalformedRows(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.ReplaceStrokes("Home", 0, []models.Stroke{{AX: 5, AY: 5}}))
	_, err := db.conn.Exec(`INSERT INTO pen_strokes (file, page, ax, ay, bx, "by", size, color, type, etc)
		VALUES ('Home', 0, NULL, 1, 1, 1, 1, 1, 1, 1), ('Home', 0, 1, 1, 1, 1, 999, 1, 1, 1)`)
	require.NoError(t, err)
	_, err = db.conn.Exec(`INSERT INTO file_links (file, page, to_file, to_page, x, y)
		VALUES ('Home', 0, NULL, 0, 1, 1), ('Home', 0, '', 0, 1, 1), ('Home', 0, 'Ok', 0, 1, 1)`)
	require.NoError(t, err)

	ss, err := db.ReadStrokes("Home", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.Stroke{{AX: 5, AY: 5}}, ss)

	ls, err := db.ReadLinks("Home", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.LinkRecord{{X: 1, Y: 1, Target: "Ok"}}, ls)
}

func TestReplacePage_FailureKeepsPreviousState(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.ReplaceStrokes("Home", 0, []models.Stroke{{AX: 7}}))

	// Make link inserts fail after the stroke rewrite has run inside the tx.
	_, err := db.conn.Exec(`CREATE TRIGGER no_links BEFORE INSERT ON file_links BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)

	err = db.ReplacePage("Home", 0, []models.Stroke{{AX: 8}}, []models.LinkRecord{{X: 1, Y: 1, Target: "T"}})
	require.ErrorIs(t, err, apperr.ErrPersistence)

	ss, err := db.ReadStrokes("Home", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.Stroke{{AX: 7}}, ss)
}

func TestShiftPages(t *testing.T) {
	db := testDB(t)
	seed(t, db, "A", 3)

	require.NoError(t, db.ShiftPages("A", 1, 1))
	ps, err := db.Pages("A")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, ps)

	require.NoError(t, db.ShiftPages("A", 2, -1))
	ps, _ = db.Pages("A")
	assert.Equal(t, []int{0, 1, 2}, ps)
	assert.Equal(t, 1, origin(t, db, "A", 1))
}

func TestRetagPage(t *testing.T) {
	db := testDB(t)
	seed(t, db, "A", 2)

	err := db.RetagPage("A", 0, "A", 1)
	require.ErrorIs(t, err, apperr.ErrPageOccupied)

	require.NoError(t, db.RetagPage("A", 1, "B", 0))
	assert.Equal(t, 1, origin(t, db, "B", 0))
	ps, _ := db.Pages("A")
	assert.Equal(t, []int{0}, ps)
}

func TestMovePage_AcrossDocuments(t *testing.T) {
	db := testDB(t)
	seed(t, db, "A", 6)
	seed(t, db, "B", 2)
	require.NoError(t, db.ReplaceLinks("A", 3, []models.LinkRecord{{X: 1, Y: 1, Target: "Z"}}))

	require.NoError(t, db.MovePage("A", 3, "B", 0))

	assert.Equal(t, 3, origin(t, db, "B", 0))
	links, _ := db.ReadLinks("B", 0)
	assert.Len(t, links, 1)
	assert.Equal(t, 0, origin(t, db, "B", 1))
	assert.Equal(t, 1, origin(t, db, "B", 2))

	ps, _ := db.Pages("A")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ps)
	assert.Equal(t, 2, origin(t, db, "A", 2))
	assert.Equal(t, 4, origin(t, db, "A", 3))
	assert.Equal(t, 5, origin(t, db, "A", 4))
}

func TestMovePage_WithinDocument(t *testing.T) {
	db := testDB(t)
	seed(t, db, "A", 5)

	require.NoError(t, db.MovePage("A", 3, "A", 1))
	var order []int
	for p := 0; p < 5; p++ {
		order = append(order, origin(t, db, "A", p))
	}
	assert.Equal(t, []int{0, 3, 1, 2, 4}, order)

	require.NoError(t, db.MovePage("A", 0, "A", 3))
	order = order[:0]
	for p := 0; p < 5; p++ {
		order = append(order, origin(t, db, "A", p))
	}
	assert.Equal(t, []int{3, 1, 0, 2, 4}, order)
}

func TestMovePage_InvalidKey(t *testing.T) {
	db := testDB(t)
	assert.ErrorIs(t, db.MovePage("A", -1, "B", 0), apperr.ErrInvalidPage)
	assert.ErrorIs(t, db.MovePage("", 0, "B", 0), apperr.ErrInvalidPage)
}

func TestDocumentsAndPageCount(t *testing.T) {
	db := testDB(t)
	seed(t, db, "Home", 2)
	require.NoError(t, db.ReplaceLinks("Zeta", 4, []models.LinkRecord{{X: 1, Y: 1, Target: "Home"}}))

	docs, err := db.Documents()
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Zeta"}, docs)

	n, err := db.PageCount("Zeta")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = db.PageCount("Nope")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClearPage(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.ReplacePage("Home", 0, []models.Stroke{{AX: 1}}, []models.LinkRecord{{X: 1, Y: 1, Target: "T"}}))
	require.NoError(t, db.ClearPage("Home", 0))
	ps, _ := db.Pages("Home")
	assert.Empty(t, ps)
}

func TestCheckAndRepair(t *testing.T) {
	db := testDB(t)
	seed(t, db, "A", 5)
	seed(t, db, "B", 2)
	require.NoError(t, db.ClearPage("A", 1))
	require.NoError(t, db.ClearPage("A", 3))

	gaps, err := db.Check()
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "A", gaps[0].Document)
	assert.Equal(t, []int{1, 3}, gaps[0].Missing())

	fixed, err := db.Repair()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, fixed)

	ps, _ := db.Pages("A")
	assert.Equal(t, []int{0, 1, 2}, ps)
	assert.Equal(t, 2, origin(t, db, "A", 1))
	assert.Equal(t, 4, origin(t, db, "A", 2))

	gaps, err = db.Check()
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestImportPage(t *testing.T) {
	db := testDB(t)
	seed(t, db, "Home", 2)

	page, err := db.ImportPage("abc", "Home", []models.Stroke{{AX: 9}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	seen, err := db.HasImport("abc")
	require.NoError(t, err)
	assert.True(t, seen)

	_, err = db.ImportPage("abc", "Home", []models.Stroke{{AX: 9}}, nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	page, err = db.ImportPage("def", "Fresh", nil, []models.LinkRecord{{X: 1, Y: 1, Target: "Home"}})
	require.NoError(t, err)
	assert.Equal(t, 0, page)
}
