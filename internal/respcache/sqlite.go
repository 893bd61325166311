package respcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/headless/internal/hn"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_tags (
	tag TEXT NOT NULL,
	key TEXT NOT NULL REFERENCES cache_entries(key) ON DELETE CASCADE,
	PRIMARY KEY (tag, key)
);

CREATE INDEX IF NOT EXISTS idx_cache_tags_key ON cache_tags(key);

CREATE TABLE IF NOT EXISTS cache_invalidations (
	tag        TEXT PRIMARY KEY,
	generation INTEGER NOT NULL
);
`

// SQLite stores responses next to the content index.
type SQLite struct {
	conn *sql.DB
}

// NewSQLite applies the cache schema to conn. The connection stays owned by
// the caller.
func NewSQLite(conn *sql.DB) (*SQLite, error) {
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		return nil, fmt.Errorf("respcache: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*hn.CacheEntry, bool, error) {
	var payload []byte
	err := s.conn.QueryRowContext(ctx, `SELECT payload FROM cache_entries WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("respcache: get %s: %w", key, err)
	}
	entry, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *SQLite) Set(ctx context.Context, entry *hn.CacheEntry) error {
	payload, err := encode(entry)
	if err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("respcache: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if len(entry.Tags) > 0 {
		placeholders, args := inClause(entry.Tags)
		var stale int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cache_invalidations WHERE generation > ? AND tag IN (`+placeholders+`)`,
			append([]any{entry.Generation}, args...)...,
		).Scan(&stale)
		if err != nil {
			return fmt.Errorf("respcache: check generation %s: %w", entry.Key, err)
		}
		if stale > 0 {
			return nil
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_tags WHERE key = ?`, entry.Key); err != nil {
		return fmt.Errorf("respcache: clear tags %s: %w", entry.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		entry.Key, payload, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("respcache: set %s: %w", entry.Key, err)
	}
	for _, t := range entry.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO cache_tags (tag, key) VALUES (?, ?)`, t, entry.Key); err != nil {
			return fmt.Errorf("respcache: tag %s: %w", entry.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Generation(ctx context.Context) (uint64, error) {
	var gen uint64
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(generation), 0) FROM cache_invalidations`,
	).Scan(&gen); err != nil {
		return 0, fmt.Errorf("respcache: generation: %w", err)
	}
	return gen, nil
}

func (s *SQLite) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	placeholders, args := inClause(tags)
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("respcache: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(generation), 0) + 1 FROM cache_invalidations`,
	).Scan(&next); err != nil {
		return fmt.Errorf("respcache: next generation: %w", err)
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cache_invalidations (tag, generation) VALUES (?, ?)
			 ON CONFLICT(tag) DO UPDATE SET generation = excluded.generation`,
			t, next,
		); err != nil {
			return fmt.Errorf("respcache: record invalidation %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key IN (SELECT key FROM cache_tags WHERE tag IN (`+placeholders+`))`,
		args...,
	); err != nil {
		return fmt.Errorf("respcache: invalidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_tags WHERE key NOT IN (SELECT key FROM cache_entries)`,
	); err != nil {
		return fmt.Errorf("respcache: prune tags: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM cache_tags; DELETE FROM cache_entries;`); err != nil {
		return fmt.Errorf("respcache: clear: %w", err)
	}
	return nil
}

func inClause(tags []string) (string, []any) {
	args := make([]any, len(tags))
	for i, t := range tags {
		args[i] = t
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(tags)), ","), args
}

// Close is a no-op; the connection belongs to the index.
func (s *SQLite) Close() error { return nil }

var _ Cache = (*SQLite)(nil)
