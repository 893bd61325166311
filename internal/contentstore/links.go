package contentstore

import (
	"context"
	"strings"
)

// normalizeLink rewrites the uri of a link item: "entity:<category>/<id>"
// becomes the target's canonical path, "internal:/<path>" the localized
// path and "route:<front>" the site root. Other items pass through.
func (s *Store) normalizeLink(ctx context.Context, lang string, item any) any {
	m, ok := item.(map[string]any)
	if !ok {
		return item
	}
	uri, ok := m["uri"].(string)
	if !ok {
		return item
	}
	url, ok := s.linkURL(ctx, lang, uri)
	if !ok {
		return item
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	out["uri"] = url
	return out
}

func (s *Store) linkURL(ctx context.Context, lang, uri string) (string, bool) {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok {
		return "", false
	}
	switch scheme {
	case "entity":
		category, id, ok := strings.Cut(rest, "/")
		if !ok {
			return "", false
		}
		obj, err := s.idx.LoadObject(ctx, category, id, lang)
		if err != nil {
			obj, err = s.idx.LoadObject(ctx, category, id, "")
		}
		if err != nil {
			return s.localize("/"+category+"/"+id, lang), true
		}
		path, err := s.CanonicalPath(ctx, obj)
		if err != nil {
			return "", false
		}
		return path, true
	case "internal":
		return s.localize("/"+strings.TrimLeft(rest, "/"), lang), true
	case "route":
		if rest == "<front>" {
			return s.localize("/", lang), true
		}
	}
	return "", false
}
