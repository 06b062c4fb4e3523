// Package inkstore provides the SQLite-backed durable store for page strokes
// and links, keyed by (document, page).
package inkstore

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// The column layout matches the device's notes.db so existing notebooks open
// unchanged. file_links.to_page is kept but always written as 0.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS pen_strokes (
	file  TEXT,
	page  INT,
	ax    INT,
	ay    INT,
	bx    INT,
	"by"  INT,
	size  INT,
	color INT,
	type  INT,
	etc   INT
) STRICT;

CREATE TABLE IF NOT EXISTS file_links (
	file    TEXT,
	page    INT,
	to_file TEXT,
	to_page INT,
	x       INT,
	y       INT
) STRICT;

CREATE TABLE IF NOT EXISTS imported_dumps (
	checksum    TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	page        INT  NOT NULL,
	imported_at TEXT NOT NULL
) STRICT;

CREATE INDEX IF NOT EXISTS idx_pen_strokes_page ON pen_strokes(file, page);
CREATE INDEX IF NOT EXISTS idx_file_links_page ON file_links(file, page);
`

// DB wraps a sql.DB with page-store operations.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database and applies the schema.
// A schema failure is returned as an error; callers must not continue
// without a store.
func Open(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("inkstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inkstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inkstore: apply schema: %w", err)
	}
	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
