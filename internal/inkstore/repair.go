package inkstore

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Gap describes a document whose stored pages are not numbered 0..n-1.
type Gap struct {
	Document string
	Pages    []int // stored page numbers, ascending
}

// Missing returns the page numbers absent below the highest stored page.
func (g Gap) Missing() []int {
	var out []int
	next := 0
	for _, p := range g.Pages {
		for ; next < p; next++ {
			out = append(out, next)
		}
		next = p + 1
	}
	return out
}

// Check walks every document and reports those with holes in their page
// numbering. Blank pages are never stored, so a hole can also be a page the
// user left empty.
func (db *DB) Check() ([]Gap, error) {
	docs, err := db.Documents()
	if err != nil {
		return nil, err
	}
	var out []Gap
	for _, d := range docs {
		ps, err := db.Pages(d)
		if err != nil {
			return nil, err
		}
		if !contiguous(ps) {
			out = append(out, Gap{Document: d, Pages: ps})
		}
	}
	return out, nil
}

// Repair renumbers the pages of every document with holes to 0..n-1,
// preserving their order. It returns the documents it touched.
func (db *DB) Repair() ([]string, error) {
	gaps, err := db.Check()
	if err != nil {
		return nil, err
	}
	var fixed []string
	for _, g := range gaps {
		err := db.withTx("repair "+g.Document, func(tx *sql.Tx) error {
			// Re-read inside the transaction so the renumbering sees a
			// consistent snapshot.
			ps, err := pages(tx, g.Document)
			if err != nil {
				return err
			}
			return renumber(tx, g.Document, ps)
		})
		if err != nil {
			return fixed, err
		}
		db.logger.Info("store: repaired page numbering",
			slog.String("doc", g.Document),
			slog.Int("pages", len(g.Pages)),
			slog.Any("missing", g.Missing()))
		fixed = append(fixed, g.Document)
	}
	return fixed, nil
}

// renumber maps ps[i] to i. ps is ascending, so every target is free by the
// time it is written.
func renumber(tx *sql.Tx, doc string, ps []int) error {
	for i, p := range ps {
		if p == i {
			continue
		}
		for _, table := range []string{"pen_strokes", "file_links"} {
			q := `UPDATE ` + table + ` SET page = ? WHERE file = ? AND page = ?`
			if _, err := tx.Exec(q, i, doc, p); err != nil {
				return fmt.Errorf("renumber %s: %w", table, err)
			}
		}
	}
	return nil
}

func contiguous(ps []int) bool {
	for i, p := range ps {
		if p != i {
			return false
		}
	}
	return true
}
