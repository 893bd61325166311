package hn

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/starford/headless/internal/content"
)

// CacheKeyPrefix starts every response cache key.
const CacheKeyPrefix = "hn.response_cache."

// Request parameters that never change the graph.
var controlParams = map[string]bool{
	"format":  true,
	"_format": true,
	"debug":   true,
}

// CacheEntry is one cached response and the tags that invalidate it.
// Generation is the invalidation generation read before the graph was built.
type CacheEntry struct {
	Key        string    `cbor:"key"`
	Graph      *Response `cbor:"graph"`
	Tags       []string  `cbor:"tags"`
	Generation uint64    `cbor:"generation"`
}

// ResponseCache stores finished responses. Set must not retain the graph and
// Get must hand out a graph the caller may mutate. Set drops the entry when
// one of its tags was invalidated after entry.Generation.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, entry *CacheEntry) error
	// Generation returns the current invalidation generation. Every
	// InvalidateTags call advances it.
	Generation(ctx context.Context) (uint64, error)
}

// TagInvalidator drops every entry carrying one of the tags.
type TagInvalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

// CacheKey derives the key of a request. Parameters are sorted by name,
// control parameters dropped, and every name and value query-escaped with
// spaces as '+'. A repeated parameter appears once per value in request
// order. The account's permission set is part of the key.
func CacheKey(account content.Account, query url.Values) string {
	names := make([]string, 0, len(query))
	for k := range query {
		if !controlParams[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		name := url.QueryEscape(k)
		for _, v := range query[k] {
			parts = append(parts, name+"="+url.QueryEscape(v))
		}
	}
	return CacheKeyPrefix + account.CacheContext() + ":" + strings.Join(parts, "&")
}

// forbiddenCacheKey is shared by every caller lacking the access permission.
func forbiddenCacheKey(path string) string {
	return CacheKeyPrefix + "403:path=" + url.QueryEscape(path)
}
