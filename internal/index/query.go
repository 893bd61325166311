package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
)

const objectColumns = `category, id, langcode, uuid, variant, alias, published, translatable, config, fields, settings, cache_tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*content.Object, error) {
	var obj content.Object
	var fields, settings, tags string
	err := row.Scan(&obj.Category, &obj.ID, &obj.Langcode, &obj.UUID, &obj.Variant, &obj.Alias,
		&obj.Published, &obj.Translatable, &obj.Config, &fields, &settings, &tags)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &obj.Fields); err != nil {
		return nil, fmt.Errorf("index: decode fields of %s/%s: %w", obj.Category, obj.ID, err)
	}
	if err := json.Unmarshal([]byte(settings), &obj.Settings); err != nil {
		return nil, fmt.Errorf("index: decode settings of %s/%s: %w", obj.Category, obj.ID, err)
	}
	_ = json.Unmarshal([]byte(tags), &obj.Tags)
	return &obj, nil
}

// LoadObject returns the object in langcode. An empty langcode prefers the
// default language and falls back to any translation.
func (db *DB) LoadObject(ctx context.Context, category, id, langcode string) (*content.Object, error) {
	var row *sql.Row
	if langcode != "" {
		row = db.conn.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE category = ? AND id = ? AND langcode = ?`,
			category, id, langcode)
	} else {
		row = db.conn.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE category = ? AND id = ?
			ORDER BY langcode = ? DESC, langcode LIMIT 1`, category, id, db.defaultLang)
	}
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", apperr.ErrNotFound, category, id)
	}
	if err != nil {
		return nil, fmt.Errorf("index: load %s/%s: %w", category, id, err)
	}
	if err := db.fillRefUUIDs(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ObjectByAlias returns the object whose alias is alias, preferring
// langcode.
func (db *DB) ObjectByAlias(ctx context.Context, alias, langcode string) (*content.Object, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE alias = ?
		ORDER BY langcode = ? DESC, langcode = ? DESC, langcode LIMIT 1`, alias, langcode, db.defaultLang)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alias %s", apperr.ErrNotFound, alias)
	}
	if err != nil {
		return nil, fmt.Errorf("index: alias %s: %w", alias, err)
	}
	if err := db.fillRefUUIDs(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// fillRefUUIDs sets the uuid of every reference whose target is indexed.
func (db *DB) fillRefUUIDs(ctx context.Context, obj *content.Object) error {
	for _, f := range obj.Fields {
		for i, r := range f.Refs {
			if r.UUID != "" {
				continue
			}
			var uuid string
			err := db.conn.QueryRowContext(ctx, `SELECT uuid FROM objects WHERE category = ? AND id = ? LIMIT 1`,
				r.Category, r.ID).Scan(&uuid)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("index: ref uuid %s: %w", r.Key(), err)
			}
			f.Refs[i].UUID = uuid
		}
	}
	return nil
}

var sortColumns = map[string]string{
	"":        "o.id",
	"id":      "o.id",
	"title":   "o.title",
	"changed": "d.updated_at",
	"updated": "d.updated_at",
}

// QueryObjects executes a collection query over published objects. Filters
// match a referenced target id or uuid, or a string value of the field.
func (db *DB) QueryObjects(ctx context.Context, q content.CollectionQuery) ([]*content.Object, error) {
	col, ok := sortColumns[q.Sort]
	if !ok {
		return nil, fmt.Errorf("index: unsupported sort %q", q.Sort)
	}
	dir := "ASC"
	if strings.EqualFold(q.Order, "desc") {
		dir = "DESC"
	}
	lang := q.Langcode
	if lang == "" {
		lang = db.defaultLang
	}

	var where []string
	args := []any{q.Category, lang}
	where = append(where, "o.category = ?", "o.langcode = ?", "o.published = 1", "o.config = 0")
	if q.Variant != "" {
		where = append(where, "o.variant = ?")
		args = append(args, q.Variant)
	}
	for _, f := range q.Filters {
		where = append(where, `(
			EXISTS (
				SELECT 1 FROM refs r
				LEFT JOIN objects t ON t.category = r.target_category AND t.id = r.target_id
				WHERE r.source_category = o.category AND r.source_id = o.id AND r.field = ?
				  AND (r.target_id = ? OR t.uuid = ?)
			) OR EXISTS (
				SELECT 1 FROM json_each(o.fields) fe, json_each(json_extract(fe.value, '$.values')) v
				WHERE json_extract(fe.value, '$.name') = ? AND v.value = ?
			))`)
		args = append(args, f.Field, f.Value, f.Value, f.Field, f.Value)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(q.Offset, 0))

	query := `SELECT ` + prefixed("o.", objectColumns) + `
		FROM objects o JOIN documents d ON d.path = o.source
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + col + ` ` + dir + `, o.id ` + dir + `
		LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query objects: %w", err)
	}
	defer rows.Close()

	var out []*content.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, obj := range out {
		if err := db.fillRefUUIDs(ctx, obj); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

// Display returns the display configured for the triple, or nil.
func (db *DB) Display(ctx context.Context, category, variant, viewMode string) (*content.Display, error) {
	var hidden, components string
	err := db.conn.QueryRowContext(ctx, `SELECT hidden, components FROM displays WHERE category = ? AND variant = ? AND view_mode = ?`,
		category, variant, viewMode).Scan(&hidden, &components)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: display %s/%s/%s: %w", category, variant, viewMode, err)
	}
	d := content.EmptyDisplay(category, variant, viewMode)
	if err := json.Unmarshal([]byte(hidden), &d.Hidden); err != nil {
		return nil, fmt.Errorf("index: decode display: %w", err)
	}
	if err := json.Unmarshal([]byte(components), &d.Components); err != nil {
		return nil, fmt.Errorf("index: decode display: %w", err)
	}
	if d.Hidden == nil {
		d.Hidden = []string{}
	}
	if d.Components == nil {
		d.Components = map[string]content.Component{}
	}
	return d, nil
}

// FindRedirect returns the redirect of source in langcode, falling back to a
// language-neutral one, or nil.
func (db *DB) FindRedirect(ctx context.Context, source, langcode string) (*content.Redirect, error) {
	var r content.Redirect
	err := db.conn.QueryRowContext(ctx, `
		SELECT source_path, langcode, target, status FROM redirects
		WHERE source_path = ? AND (langcode = ? OR langcode = '')
		ORDER BY langcode = ? DESC LIMIT 1
	`, source, langcode, langcode).Scan(&r.Source, &r.Langcode, &r.Target, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: redirect %s: %w", source, err)
	}
	return &r, nil
}

// Reference is one edge of the reference graph.
type Reference struct {
	Field  string      `json:"field"`
	Source content.Ref `json:"source"`
	Target content.Ref `json:"target"`
}

// References returns the outgoing references of an object.
func (db *DB) References(ctx context.Context, category, id string) ([]Reference, error) {
	return db.references(ctx, `source_category = ? AND source_id = ?`, category, id)
}

// Backlinks returns the references pointing at an object.
func (db *DB) Backlinks(ctx context.Context, category, id string) ([]Reference, error) {
	return db.references(ctx, `target_category = ? AND target_id = ?`, category, id)
}

func (db *DB) references(ctx context.Context, where string, args ...any) ([]Reference, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT field, source_category, source_id, target_category, target_id
		FROM refs WHERE `+where+`
		ORDER BY source_category, source_id, field, target_category, target_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: references: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.Field, &r.Source.Category, &r.Source.ID, &r.Target.Category, &r.Target.ID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
