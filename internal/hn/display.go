package hn

import (
	"context"
	"fmt"

	"github.com/starford/headless/internal/content"
)

// DisplayResolver memoizes display lookups for one build.
type DisplayResolver struct {
	repo content.DisplayRepository
	memo map[string]*content.Display
}

func NewDisplayResolver(repo content.DisplayRepository) *DisplayResolver {
	return &DisplayResolver{repo: repo, memo: make(map[string]*content.Display)}
}

// Display returns the configured display, or an empty one that hides nothing.
func (r *DisplayResolver) Display(ctx context.Context, category, variant, viewMode string) (*content.Display, error) {
	key := category + "/" + variant + "/" + viewMode
	if d, ok := r.memo[key]; ok {
		return d, nil
	}
	d, err := r.repo.Display(ctx, category, variant, viewMode)
	if err != nil {
		return nil, fmt.Errorf("hn: display %s: %w", key, err)
	}
	if d == nil {
		d = content.EmptyDisplay(category, variant, viewMode)
	}
	r.memo[key] = d
	return d, nil
}
