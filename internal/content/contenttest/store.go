// Package contenttest provides an in-memory content.Store with call counters.
package contenttest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
)

// Store is an in-memory content.Store. Every loaded object is a fresh copy.
type Store struct {
	mu        sync.Mutex
	objects   map[string]*content.Object // category/id/langcode
	order     []string
	displays  map[string]*content.Display
	redirects []content.Redirect
	calls     map[string]int

	Front     string
	NotFound  string
	Forbidden string
	Langs     content.LanguageSettings
	// Routable categories get a /<category>/<id> path without an alias.
	Routable map[string]bool
	// FieldPermissions maps a field name to the permission required to view it.
	FieldPermissions map[string]string
}

// New returns an empty store with English as the only language.
func New() *Store {
	return &Store{
		objects:  make(map[string]*content.Object),
		displays: make(map[string]*content.Display),
		calls:    make(map[string]int),
		Langs: content.LanguageSettings{
			Method:   content.NegotiationNone,
			Default:  "en",
			Prefixes: map[string]string{"en": ""},
		},
		Routable:         map[string]bool{"node": true, "taxonomy_term": true},
		FieldPermissions: map[string]string{},
	}
}

// Page builds a published, translatable node.
func Page(uuid, id string, fields ...*content.Field) *content.Object {
	return &content.Object{
		UUID:         uuid,
		Category:     "node",
		Variant:      "page",
		ID:           id,
		Langcode:     "en",
		Translatable: true,
		Published:    true,
		Fields:       fields,
	}
}

// Value builds a single-valued field.
func Value(name string, v any) *content.Field {
	return &content.Field{Name: name, Values: []any{v}}
}

// Refs builds a multi-valued reference field.
func Refs(name string, targets ...*content.Object) *content.Field {
	f := &content.Field{Name: name, Multiple: true, Reference: true}
	for _, t := range targets {
		f.Refs = append(f.Refs, content.Ref{Category: t.Category, ID: t.ID, UUID: t.UUID})
	}
	return f
}

// Add stores a copy of obj and returns it.
func (s *Store) Add(obj *content.Object) *content.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := obj.Clone()
	if c.Langcode == "" {
		c.Langcode = s.Langs.Default
	}
	if c.UUID == "" {
		c.UUID = c.Category + "-" + c.ID
	}
	if c.Variant == "" {
		c.Variant = c.Category
	}
	key := objectKey(c.Category, c.ID, c.Langcode)
	if _, ok := s.objects[key]; !ok {
		s.order = append(s.order, key)
	}
	s.objects[key] = c
	return obj
}

// AddDisplay registers a display.
func (s *Store) AddDisplay(d *content.Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displays[d.Category+"/"+d.Variant+"/"+d.ViewMode] = d
}

// AddRedirect registers a redirect.
func (s *Store) AddRedirect(r content.Redirect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects = append(s.redirects, r)
}

// Calls returns how often method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// ResetCalls zeroes all counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Store) count(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func objectKey(category, id, lang string) string {
	return category + "/" + id + "/" + lang
}

func (s *Store) lookup(category, id, lang string) *content.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectKey(category, id, lang)]
	if !ok {
		return nil
	}
	return obj.Clone()
}

func (s *Store) Resolve(_ context.Context, path string) (content.Route, error) {
	s.count("Resolve")
	if path == "/" || path == "" {
		return content.Route{Name: content.RouteFront}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.order {
		obj := s.objects[key]
		if obj.Alias != path {
			continue
		}
		if obj.Config && obj.Category == content.CollectionCategory {
			return content.CollectionRoute(obj.ID, "page"), nil
		}
		return content.EntityRoute(obj.Category, obj.ID), nil
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 2 && s.Routable[parts[0]] {
		if _, ok := s.objects[objectKey(parts[0], parts[1], s.Langs.Default)]; ok {
			return content.EntityRoute(parts[0], parts[1]), nil
		}
	}
	return content.Route{}, apperr.ErrUnrouted
}

func (s *Store) FindRedirect(_ context.Context, source, lang string) (*content.Redirect, error) {
	s.count("FindRedirect")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.redirects {
		if r.Source == source && (r.Langcode == "" || r.Langcode == lang) {
			red := r
			return &red, nil
		}
	}
	return nil, nil
}

func (s *Store) CanonicalPath(_ context.Context, obj *content.Object) (string, error) {
	path := obj.Alias
	if path == "" {
		if !s.Routable[obj.Category] {
			return "", apperr.ErrNoCanonicalPath
		}
		path = "/" + obj.Category + "/" + obj.ID
	}
	if prefix := s.Langs.Prefixes[obj.Langcode]; prefix != "" && s.Langs.Method == content.NegotiationPathPrefix {
		path = "/" + prefix + path
	}
	return path, nil
}

func (s *Store) FrontPagePath() string              { return s.Front }
func (s *Store) NotFoundPath() string               { return s.NotFound }
func (s *Store) ForbiddenPath() string              { return s.Forbidden }
func (s *Store) Languages() content.LanguageSettings { return s.Langs }

func (s *Store) Load(_ context.Context, category, id string) (*content.Object, error) {
	s.count("Load")
	obj := s.lookup(category, id, s.Langs.Default)
	if obj == nil {
		return nil, apperr.ErrNotFound
	}
	return obj, nil
}

func (s *Store) Translate(_ context.Context, obj *content.Object, lang string) (*content.Object, error) {
	s.count("Translate")
	if t := s.lookup(obj.Category, obj.ID, lang); t != nil {
		return t, nil
	}
	return obj, nil
}

func (s *Store) ReferencedObjects(_ context.Context, obj *content.Object, field *content.Field) ([]*content.Object, error) {
	s.count("ReferencedObjects")
	var out []*content.Object
	for _, r := range field.Refs {
		if t := s.lookup(r.Category, r.ID, obj.Langcode); t != nil {
			out = append(out, t)
			continue
		}
		if t := s.lookup(r.Category, r.ID, s.Langs.Default); t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ExecuteCollection(_ context.Context, q content.CollectionQuery) ([]*content.Object, error) {
	s.count("ExecuteCollection")
	lang := q.Langcode
	if lang == "" {
		lang = s.Langs.Default
	}
	s.mu.Lock()
	var out []*content.Object
	for _, key := range s.order {
		obj := s.objects[key]
		if obj.Category != q.Category || obj.Langcode != lang {
			continue
		}
		if q.Variant != "" && obj.Variant != q.Variant {
			continue
		}
		if !matchesFilters(obj, q.Filters) {
			continue
		}
		out = append(out, obj.Clone())
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.Order == "desc" {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesFilters(obj *content.Object, filters []content.CollectionFilter) bool {
	for _, flt := range filters {
		f := obj.Field(flt.Field)
		if f == nil {
			return false
		}
		found := false
		for _, r := range f.Refs {
			if r.ID == flt.Value || r.UUID == flt.Value {
				found = true
			}
		}
		for _, v := range f.Values {
			if s, ok := v.(string); ok && s == flt.Value {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) Display(_ context.Context, category, variant, viewMode string) (*content.Display, error) {
	s.count("Display")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displays[category+"/"+variant+"/"+viewMode], nil
}

func (s *Store) CanView(_ context.Context, account content.Account, obj *content.Object) bool {
	if !account.HasPermission(content.PermAccessContent) {
		return false
	}
	return obj.Published || account.HasPermission(content.PermViewUnpublished)
}

func (s *Store) CanViewField(_ context.Context, account content.Account, _ *content.Object, field *content.Field) bool {
	perm, ok := s.FieldPermissions[field.Name]
	if !ok {
		return true
	}
	return account.HasPermission(perm)
}

func (s *Store) Normalize(_ context.Context, obj *content.Object) (map[string]any, error) {
	s.count("Normalize")
	return content.Normalize(obj, nil), nil
}

func (s *Store) CacheTags(obj *content.Object) []string {
	return append([]string{obj.Category + ":" + obj.ID}, obj.Tags...)
}

var _ content.Store = (*Store)(nil)
