package content

import "context"

// Router resolves paths and owns the site-level path settings.
type Router interface {
	// Resolve maps a normalized path ("/node/1") to a route, or returns
	// apperr.ErrUnrouted.
	Resolve(ctx context.Context, path string) (Route, error)
	// FindRedirect returns the redirect registered for source (no leading
	// slash) in lang, or nil.
	FindRedirect(ctx context.Context, source, lang string) (*Redirect, error)
	// CanonicalPath returns the object's URL or apperr.ErrNoCanonicalPath.
	CanonicalPath(ctx context.Context, obj *Object) (string, error)
	FrontPagePath() string
	NotFoundPath() string
	ForbiddenPath() string
	Languages() LanguageSettings
}

// Repository loads objects.
type Repository interface {
	Load(ctx context.Context, category, id string) (*Object, error)
	// Translate returns obj in lang, or obj itself when no translation exists.
	Translate(ctx context.Context, obj *Object, lang string) (*Object, error)
	// ReferencedObjects loads the objects referenced by field. Unresolvable
	// references are skipped.
	ReferencedObjects(ctx context.Context, obj *Object, field *Field) ([]*Object, error)
	ExecuteCollection(ctx context.Context, q CollectionQuery) ([]*Object, error)
}

// DisplayRepository returns display configuration. A nil display without
// error means none is configured.
type DisplayRepository interface {
	Display(ctx context.Context, category, variant, viewMode string) (*Display, error)
}

// AccessChecker decides view access.
type AccessChecker interface {
	CanView(ctx context.Context, account Account, obj *Object) bool
	CanViewField(ctx context.Context, account Account, obj *Object, field *Field) bool
}

// Store is everything the graph engine consumes from the content backend.
type Store interface {
	Router
	Repository
	DisplayRepository
	AccessChecker
	Normalize(ctx context.Context, obj *Object) (map[string]any, error)
	CacheTags(obj *Object) []string
}
