package content

// ItemFunc rewrites a single normalized field item. It is used by stores to
// turn internal link URIs into public URLs.
type ItemFunc func(field *Field, item any) any

// Normalize turns an object into a generic key/value record. Single-valued
// fields collapse to their first item (or nil when empty); an item that only
// carries a "value" key collapses to that value.
func Normalize(obj *Object, fn ItemFunc) map[string]any {
	out := make(map[string]any, len(obj.Fields))
	for _, f := range obj.Fields {
		out[f.Name] = normalizeField(f, fn)
	}
	return out
}

func normalizeField(f *Field, fn ItemFunc) any {
	var items []any
	if f.Reference {
		items = make([]any, 0, len(f.Refs))
		for _, r := range f.Refs {
			items = append(items, map[string]any{
				"target_type": r.Category,
				"target_id":   r.ID,
				"target_uuid": r.UUID,
			})
		}
	} else {
		items = make([]any, 0, len(f.Values))
		for _, v := range f.Values {
			if fn != nil {
				v = fn(f, v)
			}
			items = append(items, flattenValue(v))
		}
	}

	if f.Multiple {
		return items
	}
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func flattenValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	if inner, ok := m["value"]; ok {
		return inner
	}
	return v
}
