// Package index provides the SQLite-backed content index with optional FTS5
// full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS objects (
	category     TEXT NOT NULL,
	id           TEXT NOT NULL,
	langcode     TEXT NOT NULL,
	uuid         TEXT NOT NULL,
	variant      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	alias        TEXT NOT NULL DEFAULT '',
	published    INTEGER NOT NULL DEFAULT 1,
	translatable INTEGER NOT NULL DEFAULT 1,
	config       INTEGER NOT NULL DEFAULT 0,
	fields       TEXT NOT NULL DEFAULT '[]',
	settings     TEXT NOT NULL DEFAULT '{}',
	cache_tags   TEXT NOT NULL DEFAULT '[]',
	body         TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	PRIMARY KEY (category, id, langcode)
);

CREATE INDEX IF NOT EXISTS idx_objects_alias ON objects(alias);
CREATE INDEX IF NOT EXISTS idx_objects_uuid ON objects(uuid);
CREATE INDEX IF NOT EXISTS idx_objects_source ON objects(source);

CREATE TABLE IF NOT EXISTS refs (
	source_category TEXT NOT NULL,
	source_id       TEXT NOT NULL,
	field           TEXT NOT NULL,
	target_category TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	source          TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	UNIQUE(source_category, source_id, field, target_category, target_id)
);

CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source_category, source_id);
CREATE INDEX IF NOT EXISTS idx_refs_target ON refs(target_category, target_id);

CREATE TABLE IF NOT EXISTS displays (
	category   TEXT NOT NULL,
	variant    TEXT NOT NULL,
	view_mode  TEXT NOT NULL,
	hidden     TEXT NOT NULL DEFAULT '[]',
	components TEXT NOT NULL DEFAULT '{}',
	source     TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	PRIMARY KEY (category, variant, view_mode)
);

CREATE TABLE IF NOT EXISTS redirects (
	source_path TEXT NOT NULL,
	langcode    TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 301,
	source      TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	PRIMARY KEY (source_path, langcode)
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn        *sql.DB
	defaultLang string
}

// Option configures a DB.
type Option func(*DB)

// WithDefaultLangcode sets the language of documents that declare none.
func WithDefaultLangcode(lang string) Option {
	return func(db *DB) { db.defaultLang = lang }
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	db := &DB{conn: conn, defaultLang: "en"}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

// Conn exposes the connection so other tables (the response cache) can
// share the database file.
func (db *DB) Conn() *sql.DB { return db.conn }

// DefaultLangcode returns the language of documents that declare none.
func (db *DB) DefaultLangcode() string { return db.defaultLang }

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
