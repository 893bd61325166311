package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/parser"
)

// TagConfig is carried by every response. Changes to configuration or to the
// set of routed paths invalidate it.
const TagConfig = "config:hn"

// ObjectTag is the cache tag of a single object in any language.
func ObjectTag(category, id string) string {
	return category + ":" + id
}

// ListTag is the cache tag of every collection listing category.
func ListTag(category string) string {
	return category + "_list"
}

// DocumentRow represents a row in the documents table. Tags are the cache
// tags a change to the document invalidates.
type DocumentRow struct {
	Path      string
	Kind      string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// UpsertContent replaces everything indexed from a content document with
// obj. It returns the cache tags the change invalidates.
func (db *DB) UpsertContent(doc DocumentRow, obj *content.Object, body string) ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	oldTags, existed, err := documentTags(tx, doc.Path)
	if err != nil {
		return nil, err
	}
	oldRoute, err := sourceRoute(tx, doc.Path)
	if err != nil {
		return nil, err
	}
	if err := clearDocument(tx, doc.Path); err != nil {
		return nil, err
	}

	doc.Tags = append([]string{ObjectTag(obj.Category, obj.ID), ListTag(obj.Category)}, obj.Tags...)
	if err := insertDocument(tx, doc); err != nil {
		return nil, err
	}
	if err := insertObject(tx, doc.Path, obj, body); err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source_category, source_id, field, target_category, target_id, source) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("index: prepare ref insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range obj.Fields {
		for _, r := range f.Refs {
			if _, err := stmt.Exec(obj.Category, obj.ID, f.Name, r.Category, r.ID, doc.Path); err != nil {
				return nil, fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	title := ""
	if f := obj.Field(parser.FieldTitle); f != nil && len(f.Values) > 0 {
		title, _ = f.Values[0].(string)
	}
	if err := ftsUpsert(tx, doc.Path, obj.Category, obj.ID, title, body, obj.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}

	tags := mergeTags(oldTags, doc.Tags)
	if !existed || oldRoute != routeKey(obj) {
		tags = mergeTags(tags, []string{TagConfig})
	}
	return tags, nil
}

// UpsertConfig replaces everything indexed from a config document with cfg.
// It returns the cache tags the change invalidates.
func (db *DB) UpsertConfig(doc DocumentRow, cfg *parser.Config) ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	oldTags, _, err := documentTags(tx, doc.Path)
	if err != nil {
		return nil, err
	}
	if err := clearDocument(tx, doc.Path); err != nil {
		return nil, err
	}

	doc.Tags = []string{TagConfig}
	for _, v := range cfg.Views {
		doc.Tags = append(doc.Tags, ObjectTag(v.Category, v.ID))
	}
	if err := insertDocument(tx, doc); err != nil {
		return nil, err
	}

	for _, d := range cfg.Displays {
		hidden, _ := json.Marshal(d.Hidden)
		components, _ := json.Marshal(d.Components)
		_, err := tx.Exec(`
			INSERT INTO displays (category, variant, view_mode, hidden, components, source)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(category, variant, view_mode) DO UPDATE SET
				hidden     = excluded.hidden,
				components = excluded.components,
				source     = excluded.source
		`, d.Category, d.Variant, d.ViewMode, string(hidden), string(components), doc.Path)
		if err != nil {
			return nil, fmt.Errorf("index: upsert display: %w", err)
		}
	}

	for _, r := range cfg.Redirects {
		status := r.Status
		if status == 0 {
			status = 301
		}
		_, err := tx.Exec(`
			INSERT INTO redirects (source_path, langcode, target, status, source)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(source_path, langcode) DO UPDATE SET
				target = excluded.target,
				status = excluded.status,
				source = excluded.source
		`, r.Source, r.Langcode, r.Target, status, doc.Path)
		if err != nil {
			return nil, fmt.Errorf("index: upsert redirect: %w", err)
		}
	}

	for _, v := range cfg.Views {
		if err := insertObject(tx, doc.Path, v, ""); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	return mergeTags(oldTags, doc.Tags), nil
}

// DeleteDocument removes a document and everything indexed from it. It
// returns the cache tags the removal invalidates, or nil when the document
// was not indexed.
func (db *DB) DeleteDocument(path string) ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags, existed, err := documentTags(tx, path)
	if err != nil || !existed {
		return nil, err
	}
	if err := clearDocument(tx, path); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	return mergeTags(tags, []string{TagConfig}), nil
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListDocuments returns one page of indexed documents ordered by path and
// the total count. kind may be empty.
func (db *DB) ListDocuments(kind string, limit, offset int) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents WHERE ? = '' OR kind = ?`, kind, kind).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}
	rows, err := db.conn.Query(`
		SELECT path, kind, checksum, tags, updated_at
		FROM documents
		WHERE ? = '' OR kind = ?
		ORDER BY path
		LIMIT ? OFFSET ?
	`, kind, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		var tags string
		if err := rows.Scan(&d.Path, &d.Kind, &d.Checksum, &tags, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tags), &d.Tags)
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func documentTags(tx *sql.Tx, path string) ([]string, bool, error) {
	var raw string
	err := tx.QueryRow(`SELECT tags FROM documents WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("index: document tags: %w", err)
	}
	var tags []string
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags, true, nil
}

// sourceRoute returns the identity and alias of the object a content
// document routes, or "" when it has none.
func sourceRoute(tx *sql.Tx, path string) (string, error) {
	var category, id, alias string
	err := tx.QueryRow(`SELECT category, id, alias FROM objects WHERE source = ? LIMIT 1`, path).Scan(&category, &id, &alias)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: source route: %w", err)
	}
	return category + "/" + id + "=" + alias, nil
}

func routeKey(obj *content.Object) string {
	return obj.Category + "/" + obj.ID + "=" + obj.Alias
}

// clearDocument deletes the document row; its objects, refs, displays and
// redirects follow by cascade.
func clearDocument(tx *sql.Tx, path string) error {
	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return nil
}

func insertDocument(tx *sql.Tx, doc DocumentRow) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	tags, _ := json.Marshal(doc.Tags)
	_, err := tx.Exec(`INSERT INTO documents (path, kind, checksum, tags, updated_at) VALUES (?, ?, ?, ?, ?)`,
		doc.Path, doc.Kind, doc.Checksum, string(tags), doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: insert document: %w", err)
	}
	return nil
}

func insertObject(tx *sql.Tx, source string, obj *content.Object, body string) error {
	fields, err := json.Marshal(obj.Fields)
	if err != nil {
		return fmt.Errorf("index: encode fields of %s/%s: %w", obj.Category, obj.ID, err)
	}
	settings, err := json.Marshal(obj.Settings)
	if err != nil {
		return fmt.Errorf("index: encode settings of %s/%s: %w", obj.Category, obj.ID, err)
	}
	tags, _ := json.Marshal(obj.Tags)
	title := ""
	if f := obj.Field(parser.FieldTitle); f != nil && len(f.Values) > 0 {
		title, _ = f.Values[0].(string)
	} else if label, ok := obj.Settings["label"].(string); ok {
		title = label
	}

	_, err = tx.Exec(`
		INSERT INTO objects (category, id, langcode, uuid, variant, title, alias, published, translatable, config, fields, settings, cache_tags, body, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, id, langcode) DO UPDATE SET
			uuid         = excluded.uuid,
			variant      = excluded.variant,
			title        = excluded.title,
			alias        = excluded.alias,
			published    = excluded.published,
			translatable = excluded.translatable,
			config       = excluded.config,
			fields       = excluded.fields,
			settings     = excluded.settings,
			cache_tags   = excluded.cache_tags,
			body         = excluded.body,
			source       = excluded.source
	`, obj.Category, obj.ID, obj.Langcode, obj.UUID, obj.Variant, title, obj.Alias,
		obj.Published, obj.Translatable, obj.Config, string(fields), string(settings), string(tags), body, source)
	if err != nil {
		return fmt.Errorf("index: upsert object %s/%s: %w", obj.Category, obj.ID, err)
	}
	return nil
}

func mergeTags(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
