package index

import (
	"context"

	"github.com/starford/headless/internal/content"
)

// ContentIndex defines the read side of the index. Consumers should depend
// on this interface rather than the concrete *DB type to facilitate testing
// with mocks.
type ContentIndex interface {
	LoadObject(ctx context.Context, category, id, langcode string) (*content.Object, error)
	ObjectByAlias(ctx context.Context, alias, langcode string) (*content.Object, error)
	QueryObjects(ctx context.Context, q content.CollectionQuery) ([]*content.Object, error)
	Display(ctx context.Context, category, variant, viewMode string) (*content.Display, error)
	FindRedirect(ctx context.Context, source, langcode string) (*content.Redirect, error)
	References(ctx context.Context, category, id string) ([]Reference, error)
	Backlinks(ctx context.Context, category, id string) ([]Reference, error)
	Search(query string, limit int) ([]SearchResult, error)
	ListDocuments(kind string, limit, offset int) ([]DocumentRow, int, error)
	DefaultLangcode() string
}

// Verify *DB satisfies ContentIndex at compile time.
var _ ContentIndex = (*DB)(nil)
