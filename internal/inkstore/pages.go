package inkstore

import (
	"database/sql"
	"fmt"

	"github.com/starford/inkwell/internal/apperr"
)

// ShiftPages renumbers every page p >= from in doc to p+delta.
// delta +1 opens a gap at from; -1 closes the gap just below from.
func (db *DB) ShiftPages(doc string, from, delta int) error {
	return db.withTx("shift pages", func(tx *sql.Tx) error {
		return shiftPages(tx, doc, from, delta)
	})
}

// RetagPage moves the content of one page to another (document, page) key.
// The target must be empty.
func (db *DB) RetagPage(fromDoc string, fromPage int, toDoc string, toPage int) error {
	return db.withTx("retag page", func(tx *sql.Tx) error {
		return retagPage(tx, fromDoc, fromPage, toDoc, toPage)
	})
}

// MovePage relocates one page between documents while keeping page numbers
// contiguous in both: open a gap at the destination, retag the page into it,
// then close the gap left at the source. All three steps share one
// transaction, so an interruption never leaves a duplicate or a hole.
//
// Within one document the page lands before whatever was at toPage, so a
// forward move ends at toPage-1.
func (db *DB) MovePage(fromDoc string, fromPage int, toDoc string, toPage int) error {
	if fromPage < 0 || toPage < 0 || fromDoc == "" || toDoc == "" {
		return fmt.Errorf("inkstore: move page: %w", apperr.ErrInvalidPage)
	}
	return db.withTx("move page", func(tx *sql.Tx) error {
		if err := shiftPages(tx, toDoc, toPage, 1); err != nil {
			return err
		}
		src := fromPage
		if fromDoc == toDoc && fromPage >= toPage {
			// The source was pushed up by the gap we just opened.
			src++
		}
		if err := retagPage(tx, fromDoc, src, toDoc, toPage); err != nil {
			return err
		}
		return shiftPages(tx, fromDoc, src+1, -1)
	})
}

func shiftPages(tx *sql.Tx, doc string, from, delta int) error {
	for _, table := range []string{"pen_strokes", "file_links"} {
		q := `UPDATE ` + table + ` SET page = page + ? WHERE file = ? AND page >= ?`
		if _, err := tx.Exec(q, delta, doc, from); err != nil {
			return fmt.Errorf("shift %s: %w", table, err)
		}
	}
	return nil
}

func retagPage(tx *sql.Tx, fromDoc string, fromPage int, toDoc string, toPage int) error {
	if fromDoc == toDoc && fromPage == toPage {
		return nil
	}
	occupied, err := pageExists(tx, toDoc, toPage)
	if err != nil {
		return err
	}
	if occupied {
		return fmt.Errorf("retag %s:%d: %w", toDoc, toPage, apperr.ErrPageOccupied)
	}
	for _, table := range []string{"pen_strokes", "file_links"} {
		q := `UPDATE ` + table + ` SET file = ?, page = ? WHERE file = ? AND page = ?`
		if _, err := tx.Exec(q, toDoc, toPage, fromDoc, fromPage); err != nil {
			return fmt.Errorf("retag %s: %w", table, err)
		}
	}
	return nil
}

func pageExists(tx *sql.Tx, doc string, page int) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM pen_strokes WHERE file = ?1 AND page = ?2)
		    OR EXISTS (SELECT 1 FROM file_links  WHERE file = ?1 AND page = ?2)
	`, doc, page).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe %s:%d: %w", doc, page, err)
	}
	return exists, nil
}

// Documents returns every document name that has stored content.
func (db *DB) Documents() ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT file FROM pen_strokes WHERE file IS NOT NULL
		UNION
		SELECT file FROM file_links WHERE file IS NOT NULL
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("inkstore: documents: %w: %w", apperr.ErrPersistence, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("inkstore: documents: %w: %w", apperr.ErrPersistence, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Pages returns the sorted page numbers of doc that have stored content.
func (db *DB) Pages(doc string) ([]int, error) {
	return pages(db.conn, doc)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func pages(q querier, doc string) ([]int, error) {
	rows, err := q.Query(`
		SELECT page FROM pen_strokes WHERE file = ?1 AND page IS NOT NULL
		UNION
		SELECT page FROM file_links WHERE file = ?1 AND page IS NOT NULL
		ORDER BY 1
	`, doc)
	if err != nil {
		return nil, fmt.Errorf("inkstore: pages: %w: %w", apperr.ErrPersistence, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("inkstore: pages: %w: %w", apperr.ErrPersistence, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PageCount returns one past the highest stored page of doc, or 0.
func (db *DB) PageCount(doc string) (int, error) {
	var n sql.NullInt64
	err := db.conn.QueryRow(`
		SELECT MAX(page) FROM (
			SELECT page FROM pen_strokes WHERE file = ?1
			UNION ALL
			SELECT page FROM file_links WHERE file = ?1
		)
	`, doc).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("inkstore: page count: %w: %w", apperr.ErrPersistence, err)
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64) + 1, nil
}
