package inkstore

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
)

// withTx runs fn inside a transaction. Any failure rolls back and is
// reported as apperr.ErrPersistence.
func (db *DB) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("inkstore: %s: begin tx: %w: %w", op, apperr.ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return fmt.Errorf("inkstore: %s: %w: %w", op, apperr.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inkstore: %s: commit: %w: %w", op, apperr.ErrPersistence, err)
	}
	return nil
}

// ReadStrokes returns every stroke stored for (doc, page).
// Rows with NULL columns or out-of-range byte fields are skipped.
func (db *DB) ReadStrokes(doc string, page int) ([]models.Stroke, error) {
	rows, err := db.conn.Query(`
		SELECT ax, ay, bx, "by", size, color, type, etc
		FROM pen_strokes
		WHERE file = ? AND page = ?
	`, doc, page)
	if err != nil {
		return nil, fmt.Errorf("inkstore: read strokes: %w: %w", apperr.ErrPersistence, err)
	}
	defer rows.Close()

	var out []models.Stroke
	for rows.Next() {
		var c [8]sql.NullInt64
		if err := rows.Scan(&c[0], &c[1], &c[2], &c[3], &c[4], &c[5], &c[6], &c[7]); err != nil {
			db.logger.Warn("store: skipped unreadable stroke",
				slog.String("doc", doc), slog.Int("page", page), slog.String("error", err.Error()))
			continue
		}
		s, ok := strokeFromColumns(c)
		if !ok {
			db.logger.Warn("store: skipped malformed stroke", slog.String("doc", doc), slog.Int("page", page))
			continue
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inkstore: read strokes: %w: %w", apperr.ErrPersistence, err)
	}
	return out, nil
}

func strokeFromColumns(c [8]sql.NullInt64) (models.Stroke, bool) {
	for _, v := range c {
		if !v.Valid {
			return models.Stroke{}, false
		}
	}
	for _, v := range c[4:] {
		if v.Int64 < 0 || v.Int64 > 255 {
			return models.Stroke{}, false
		}
	}
	return models.Stroke{
		AX:    int(c[0].Int64),
		AY:    int(c[1].Int64),
		BX:    int(c[2].Int64),
		BY:    int(c[3].Int64),
		Width: byte(c[4].Int64),
		Color: byte(c[5].Int64),
		Type:  byte(c[6].Int64),
		Etc:   byte(c[7].Int64),
	}, true
}

// ReadLinks returns every link stored for (doc, page).
// Rows with a NULL or empty target are skipped.
func (db *DB) ReadLinks(doc string, page int) ([]models.LinkRecord, error) {
	rows, err := db.conn.Query(`
		SELECT to_file, x, y
		FROM file_links
		WHERE file = ? AND page = ?
	`, doc, page)
	if err != nil {
		return nil, fmt.Errorf("inkstore: read links: %w: %w", apperr.ErrPersistence, err)
	}
	defer rows.Close()

	var out []models.LinkRecord
	for rows.Next() {
		var (
			target sql.NullString
			x, y   sql.NullInt64
		)
		if err := rows.Scan(&target, &x, &y); err != nil {
			db.logger.Warn("store: skipped unreadable link",
				slog.String("doc", doc), slog.Int("page", page), slog.String("error", err.Error()))
			continue
		}
		if !target.Valid || target.String == "" || !x.Valid || !y.Valid {
			db.logger.Warn("store: skipped malformed link", slog.String("doc", doc), slog.Int("page", page))
			continue
		}
		out = append(out, models.LinkRecord{X: int(x.Int64), Y: int(y.Int64), Target: target.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inkstore: read links: %w: %w", apperr.ErrPersistence, err)
	}
	return out, nil
}

// ReplacePage clears (doc, page) and rewrites both strokes and links in one
// transaction.
func (db *DB) ReplacePage(doc string, page int, strokes []models.Stroke, links []models.LinkRecord) error {
	return db.withTx("replace page", func(tx *sql.Tx) error {
		if err := replaceStrokes(tx, doc, page, strokes); err != nil {
			return err
		}
		return replaceLinks(tx, doc, page, links)
	})
}

// ReplaceStrokes clears and rewrites only the strokes of (doc, page).
func (db *DB) ReplaceStrokes(doc string, page int, strokes []models.Stroke) error {
	return db.withTx("replace strokes", func(tx *sql.Tx) error {
		return replaceStrokes(tx, doc, page, strokes)
	})
}

// ReplaceLinks clears and rewrites only the links of (doc, page).
func (db *DB) ReplaceLinks(doc string, page int, links []models.LinkRecord) error {
	return db.withTx("replace links", func(tx *sql.Tx) error {
		return replaceLinks(tx, doc, page, links)
	})
}

// ClearPage deletes all strokes and links of (doc, page).
func (db *DB) ClearPage(doc string, page int) error {
	return db.withTx("clear page", func(tx *sql.Tx) error {
		if err := replaceStrokes(tx, doc, page, nil); err != nil {
			return err
		}
		return replaceLinks(tx, doc, page, nil)
	})
}

func replaceStrokes(tx *sql.Tx, doc string, page int, strokes []models.Stroke) error {
	if _, err := tx.Exec(`DELETE FROM pen_strokes WHERE file = ? AND page = ?`, doc, page); err != nil {
		return fmt.Errorf("clear strokes: %w", err)
	}
	if len(strokes) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO pen_strokes (file, page, ax, ay, bx, "by", size, color, type, etc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare stroke insert: %w", err)
	}
	defer stmt.Close()
	for _, s := range strokes {
		if _, err := stmt.Exec(doc, page, s.AX, s.AY, s.BX, s.BY, s.Width, s.Color, s.Type, s.Etc); err != nil {
			return fmt.Errorf("insert stroke: %w", err)
		}
	}
	return nil
}

func replaceLinks(tx *sql.Tx, doc string, page int, links []models.LinkRecord) error {
	if _, err := tx.Exec(`DELETE FROM file_links WHERE file = ? AND page = ?`, doc, page); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO file_links (file, page, to_file, to_page, x, y)
		VALUES (?, ?, ?, 0, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, l := range links {
		if _, err := stmt.Exec(doc, page, l.Target, l.X, l.Y); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}
	return nil
}
