// Package contentstore implements content.Store over the vault index.
package contentstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/index"
)

// Settings are the site-level settings the store routes with.
type Settings struct {
	FrontPage     string
	NotFoundPage  string
	ForbiddenPage string
	Languages     content.LanguageSettings
	// Routable categories get "/<category>/<id>" when they have no alias.
	Routable []string
	// FieldPermissions maps "category.field" or a bare field name to the
	// permission needed to view it.
	FieldPermissions map[string]string
}

// DefaultRoutable are the categories routed without configuration.
var DefaultRoutable = []string{"node", "taxonomy_term", content.CollectionCategory}

// Store implements content.Store.
type Store struct {
	idx      index.ContentIndex
	settings Settings
	routable map[string]bool
	logger   *slog.Logger
}

var _ content.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store reading from idx.
func New(idx index.ContentIndex, settings Settings, opts ...Option) *Store {
	if settings.Languages.Default == "" {
		settings.Languages.Default = idx.DefaultLangcode()
	}
	if settings.Languages.Method == "" {
		settings.Languages.Method = content.NegotiationNone
	}
	if len(settings.Routable) == 0 {
		settings.Routable = DefaultRoutable
	}
	s := &Store{
		idx:      idx,
		settings: settings,
		routable: make(map[string]bool, len(settings.Routable)),
		logger:   slog.Default(),
	}
	for _, c := range settings.Routable {
		s.routable[c] = true
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) FrontPagePath() string              { return s.settings.FrontPage }
func (s *Store) NotFoundPath() string               { return s.settings.NotFoundPage }
func (s *Store) ForbiddenPath() string              { return s.settings.ForbiddenPage }
func (s *Store) Languages() content.LanguageSettings { return s.settings.Languages }

// Resolve maps a path to a route. Aliases win over "/<category>/<id>".
func (s *Store) Resolve(ctx context.Context, path string) (content.Route, error) {
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return content.Route{Name: content.RouteFront}, nil
	}

	obj, err := s.idx.ObjectByAlias(ctx, path, s.settings.Languages.Default)
	switch {
	case err == nil:
		if obj.Category == content.CollectionCategory {
			return content.CollectionRoute(obj.ID, "page"), nil
		}
		return content.EntityRoute(obj.Category, obj.ID), nil
	case !errors.Is(err, apperr.ErrNotFound):
		return content.Route{}, err
	}

	category, id, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if ok && s.routable[category] && id != "" && !strings.Contains(id, "/") {
		_, err := s.idx.LoadObject(ctx, category, id, "")
		if err == nil {
			return content.EntityRoute(category, id), nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return content.Route{}, err
		}
	}
	return content.Route{}, fmt.Errorf("%w: %s", apperr.ErrUnrouted, path)
}

func (s *Store) FindRedirect(ctx context.Context, source, lang string) (*content.Redirect, error) {
	return s.idx.FindRedirect(ctx, strings.Trim(source, "/"), lang)
}

// CanonicalPath returns the alias or "/<category>/<id>", prefixed with the
// path prefix of the object's language.
func (s *Store) CanonicalPath(_ context.Context, obj *content.Object) (string, error) {
	path := obj.Alias
	if path == "" {
		if !s.routable[obj.Category] {
			return "", fmt.Errorf("%w: %s/%s", apperr.ErrNoCanonicalPath, obj.Category, obj.ID)
		}
		path = "/" + obj.Category + "/" + obj.ID
	}
	return s.localize(path, obj.Langcode), nil
}

func (s *Store) localize(path, lang string) string {
	ls := s.settings.Languages
	if ls.Method != content.NegotiationPathPrefix {
		return path
	}
	if prefix := ls.Prefixes[lang]; prefix != "" {
		return "/" + prefix + path
	}
	return path
}

func (s *Store) Load(ctx context.Context, category, id string) (*content.Object, error) {
	return s.idx.LoadObject(ctx, category, id, "")
}

func (s *Store) Translate(ctx context.Context, obj *content.Object, lang string) (*content.Object, error) {
	if lang == "" || lang == obj.Langcode {
		return obj, nil
	}
	t, err := s.idx.LoadObject(ctx, obj.Category, obj.ID, lang)
	if errors.Is(err, apperr.ErrNotFound) {
		return obj, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReferencedObjects loads the targets of field in the language of obj,
// falling back to any language.
func (s *Store) ReferencedObjects(ctx context.Context, obj *content.Object, field *content.Field) ([]*content.Object, error) {
	var out []*content.Object
	for _, r := range field.Refs {
		target, err := s.idx.LoadObject(ctx, r.Category, r.ID, obj.Langcode)
		if errors.Is(err, apperr.ErrNotFound) {
			target, err = s.idx.LoadObject(ctx, r.Category, r.ID, "")
		}
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Debug("reference target missing", slog.String("source", obj.Category+"/"+obj.ID), slog.String("target", r.Key()))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

func (s *Store) ExecuteCollection(ctx context.Context, q content.CollectionQuery) ([]*content.Object, error) {
	return s.idx.QueryObjects(ctx, q)
}

func (s *Store) Display(ctx context.Context, category, variant, viewMode string) (*content.Display, error) {
	return s.idx.Display(ctx, category, variant, viewMode)
}

// CanView requires "access content", and "view unpublished content" for
// unpublished objects.
func (s *Store) CanView(_ context.Context, account content.Account, obj *content.Object) bool {
	if !account.HasPermission(content.PermAccessContent) {
		return false
	}
	return obj.Published || account.HasPermission(content.PermViewUnpublished)
}

func (s *Store) CanViewField(_ context.Context, account content.Account, obj *content.Object, field *content.Field) bool {
	perm, ok := s.settings.FieldPermissions[obj.Category+"."+field.Name]
	if !ok {
		perm = s.settings.FieldPermissions[field.Name]
	}
	return perm == "" || account.HasPermission(perm)
}

// Normalize normalizes obj and rewrites link items to public URLs.
func (s *Store) Normalize(ctx context.Context, obj *content.Object) (map[string]any, error) {
	return content.Normalize(obj, func(_ *content.Field, item any) any {
		return s.normalizeLink(ctx, obj.Langcode, item)
	}), nil
}

// CacheTags returns the object's tag, the configuration tag and the
// document tags. Collection views add the list tag of every category they
// query.
func (s *Store) CacheTags(obj *content.Object) []string {
	tags := []string{index.ObjectTag(obj.Category, obj.ID), index.TagConfig}
	tags = append(tags, obj.Tags...)
	if obj.Category == content.CollectionCategory {
		tags = append(tags, collectionListTags(obj)...)
	}
	sort.Strings(tags)
	return tags
}

func collectionListTags(obj *content.Object) []string {
	displays, _ := obj.Settings["displays"].(map[string]any)
	seen := make(map[string]bool)
	var out []string
	for _, raw := range displays {
		d, _ := raw.(map[string]any)
		q, _ := d["query"].(map[string]any)
		category, _ := q["category"].(string)
		if category == "" {
			category = "node"
		}
		if !seen[category] {
			seen[category] = true
			out = append(out, index.ListTag(category))
		}
	}
	return out
}
