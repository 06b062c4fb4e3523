package inkstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
)

// HasImport reports whether a dump with this checksum was already imported.
func (db *DB) HasImport(checksum string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`SELECT EXISTS (SELECT 1 FROM imported_dumps WHERE checksum = ?)`, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("inkstore: has import: %w: %w", apperr.ErrPersistence, err)
	}
	return exists, nil
}

// ImportPage appends strokes and links as a new last page of doc and records
// checksum so the same dump is never imported twice. It returns the page
// number written, or apperr.ErrAlreadyExists for a repeated checksum.
func (db *DB) ImportPage(checksum, doc string, strokes []models.Stroke, links []models.LinkRecord) (int, error) {
	if doc == "" {
		return 0, fmt.Errorf("inkstore: import page: %w", apperr.ErrInvalidPage)
	}
	var page int
	err := db.withTx("import page", func(tx *sql.Tx) error {
		var seen bool
		if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM imported_dumps WHERE checksum = ?)`, checksum).Scan(&seen); err != nil {
			return err
		}
		if seen {
			return apperr.ErrAlreadyExists
		}

		var last sql.NullInt64
		if err := tx.QueryRow(`
			SELECT MAX(page) FROM (
				SELECT page FROM pen_strokes WHERE file = ?1
				UNION ALL
				SELECT page FROM file_links WHERE file = ?1
			)
		`, doc).Scan(&last); err != nil {
			return err
		}
		if last.Valid {
			page = int(last.Int64) + 1
		}

		if err := replaceStrokes(tx, doc, page, strokes); err != nil {
			return err
		}
		if err := replaceLinks(tx, doc, page, links); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO imported_dumps (checksum, file, page, imported_at) VALUES (?, ?, ?, ?)`,
			checksum, doc, page, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return 0, err
	}
	return page, nil
}
