package hn

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/starford/headless/internal/content"
)

// Display options that never leave the server.
var privateDisplayOptions = []string{"access", "cache", "query", "style", "row", "fields"}

// CollectionHandler normalizes collection views: the query of the requested
// display is executed, every row is added to the graph and the record lists
// the row uuids.
type CollectionHandler struct{}

func (CollectionHandler) ID() string { return "collection" }

func (CollectionHandler) Supports(obj *content.Object) bool {
	return obj.Config && obj.Category == content.CollectionCategory
}

func (CollectionHandler) Handle(ctx context.Context, b *Builder, obj *content.Object, viewMode string) (Record, error) {
	displays := asMap(obj.Settings["displays"])
	display := asMap(displays[viewMode])
	if display == nil {
		display = asMap(displays[content.DefaultViewMode])
	}
	if display == nil {
		return nil, fmt.Errorf("hn: collection %s has no display %q", obj.ID, viewMode)
	}
	b.Logf("Executing collection %s display %s.", obj.ID, viewMode)

	filters := asSlice(display["filters"])
	q := collectionQuery(asMap(display["query"]), filters, b)
	rows, err := b.Store().ExecuteCollection(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hn: collection %s: %w", obj.ID, err)
	}

	rowViewMode := asString(asMap(display["row"])["view_mode"])
	if rowViewMode == "" {
		rowViewMode = content.DefaultViewMode
	}
	results := make([]string, 0, len(rows))
	for _, row := range rows {
		b.AddObject(ctx, row, rowViewMode)
		results = append(results, row.UUID)
	}

	options := make(map[string]any, len(display))
	for k, v := range display {
		options[k] = v
	}
	for _, k := range privateDisplayOptions {
		delete(options, k)
	}

	exposed := []any{}
	for _, raw := range filters {
		f := asMap(raw)
		if f == nil || !asBool(f["exposed"]) {
			continue
		}
		out := make(map[string]any, len(f)+1)
		for k, v := range f {
			out[k] = v
		}
		if vocab := asString(f["vocabulary"]); vocab != "" {
			terms, err := b.Store().ExecuteCollection(ctx, content.CollectionQuery{
				Category: "taxonomy_term",
				Variant:  vocab,
				Langcode: b.Language(),
			})
			if err != nil {
				b.Logf("Skipping options of filter %s: %v", asString(f["id"]), err)
			}
			ids := make([]string, 0, len(terms))
			for _, t := range terms {
				b.AddObject(ctx, t, content.DefaultViewMode)
				ids = append(ids, t.UUID)
			}
			out["options"] = ids
		}
		exposed = append(exposed, out)
	}
	options["filters"] = exposed

	return Record{
		"display": options,
		"results": results,
	}, nil
}

// collectionQuery builds the query of a display. Exposed filters take their
// value from the request query under the filter id; fixed filters carry a
// value of their own. The "page" request parameter moves the offset by whole
// pages.
func collectionQuery(query map[string]any, filters []any, b *Builder) content.CollectionQuery {
	q := content.CollectionQuery{
		Category: asString(query["category"]),
		Variant:  asString(query["variant"]),
		Langcode: b.Language(),
		Sort:     asString(query["sort"]),
		Order:    asString(query["order"]),
		Limit:    asInt(query["limit"]),
		Offset:   asInt(query["offset"]),
	}
	if q.Category == "" {
		q.Category = "node"
	}
	params := b.Query()
	if page, err := strconv.Atoi(params.Get("page")); err == nil && page > 0 && q.Limit > 0 {
		q.Offset = pageOffset(q.Offset, page, q.Limit)
	}
	for _, raw := range filters {
		f := asMap(raw)
		if f == nil {
			continue
		}
		field := asString(f["field"])
		if field == "" {
			continue
		}
		value := asString(f["value"])
		if asBool(f["exposed"]) {
			value = params.Get(asString(f["id"]))
		}
		if value == "" {
			continue
		}
		q.Filters = append(q.Filters, content.CollectionFilter{Field: field, Value: value})
	}
	return q
}

// pageOffset moves offset by page pages of limit, saturating at math.MaxInt.
func pageOffset(offset, page, limit int) int {
	offset = max(offset, 0)
	if page > (math.MaxInt-offset)/limit {
		return math.MaxInt
	}
	return offset + page*limit
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Record:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	return nil
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case fmt.Stringer:
		return s.String()
	case int, int64, uint64, float64:
		return fmt.Sprint(s)
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok
	}
	return false
}
