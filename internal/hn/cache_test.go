package hn

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/headless/internal/content"
)

func TestCacheKeyIgnoresOrderAndControlParams(t *testing.T) {
	anon := content.NewAccount("anonymous", content.PermAccessContent)

	a := CacheKey(anon, url.Values{"path": {"/news"}, "page": {"2"}})
	b := CacheKey(anon, url.Values{"page": {"2"}, "path": {"/news"}, "_format": {"hn"}, "debug": {"true"}})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, CacheKeyPrefix))
	assert.True(t, strings.HasSuffix(a, ":page=2&path=%2Fnews"), a)
}

func TestCacheKeyEncodesSpaces(t *testing.T) {
	anon := content.NewAccount("anonymous")
	key := CacheKey(anon, url.Values{"q": {"red apples"}})
	assert.True(t, strings.HasSuffix(key, "q=red+apples"), key)
}

func TestCacheKeyVariesByPermissions(t *testing.T) {
	q := url.Values{"path": {"/node/1"}}
	anon := CacheKey(content.NewAccount("1", content.PermAccessContent), q)
	other := CacheKey(content.NewAccount("2", content.PermAccessContent), q)
	editor := CacheKey(content.NewAccount("3", content.PermAccessContent, content.PermViewUnpublished), q)

	assert.Equal(t, anon, other, "equal permissions share entries")
	assert.NotEqual(t, anon, editor)
}

func TestCacheKeyEscapesSeparators(t *testing.T) {
	anon := content.NewAccount("anonymous", content.PermAccessContent)

	joined := CacheKey(anon, url.Values{"path": {"/node/1&x=1"}})
	split := CacheKey(anon, url.Values{"path": {"/node/1"}, "x": {"1"}})
	assert.NotEqual(t, joined, split)

	repeated := CacheKey(anon, url.Values{"a": {"1", "2"}})
	commas := CacheKey(anon, url.Values{"a": {"1,2"}})
	assert.NotEqual(t, repeated, commas)
	assert.True(t, strings.HasSuffix(repeated, ":a=1&a=2"), repeated)
	assert.True(t, strings.HasSuffix(commas, ":a=1%2C2"), commas)
}

func TestForbiddenCacheKeyEscapesPath(t *testing.T) {
	assert.NotEqual(t, forbiddenCacheKey("/a&b=1"), forbiddenCacheKey("/a"))
	assert.Equal(t, CacheKeyPrefix+"403:path=%2Fred+apples", forbiddenCacheKey("/red apples"))
}
