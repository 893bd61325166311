package hn

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/content/contenttest"
)

func siteStore() *contenttest.Store {
	s := contenttest.New()
	home := contenttest.Page("home", "1", contenttest.Value("title", "Home"))
	home.Alias = "/home"
	s.Add(home)
	s.Add(contenttest.Page("about", "2", contenttest.Value("title", "About")))
	s.Add(contenttest.Page("missing", "404", contenttest.Value("title", "Not found")))
	s.Front = "/home"
	s.NotFound = "/node/404"
	return s
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/", NormalizePath("/"))
	assert.Equal(t, "/node/1", NormalizePath("node/1/"))
	assert.Equal(t, "/node/1", NormalizePath("//node/1"))
}

func TestResolveEntityPath(t *testing.T) {
	r := NewRequestResolver(siteStore(), nil)
	res, err := r.Resolve(context.Background(), "node/2")
	require.NoError(t, err)
	assert.Equal(t, "about", res.Object.UUID)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, content.DefaultViewMode, res.ViewMode)
	assert.Equal(t, "en", res.Language)
}

func TestResolveFrontPage(t *testing.T) {
	r := NewRequestResolver(siteStore(), nil)
	res, err := r.Resolve(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "home", res.Object.UUID)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestResolveUnroutedFallsBackToNotFoundPage(t *testing.T) {
	var lines []string
	r := NewRequestResolver(siteStore(), func(format string, args ...any) {
		lines = append(lines, format)
	})
	res, err := r.Resolve(context.Background(), "/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "missing", res.Object.UUID)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.NotEmpty(t, lines)
}

func TestResolveRedirect(t *testing.T) {
	s := siteStore()
	s.AddRedirect(content.Redirect{Source: "old-about", Target: "/node/2", Status: http.StatusFound})
	s.AddRedirect(content.Redirect{Source: "older-about", Target: "node/2"})
	s.AddRedirect(content.Redirect{Source: "gone", Target: "/nowhere"})
	r := NewRequestResolver(s, nil)

	res, err := r.Resolve(context.Background(), "/old-about/")
	require.NoError(t, err)
	assert.Equal(t, "about", res.Object.UUID)
	assert.Equal(t, http.StatusFound, res.Status)

	res, err = r.Resolve(context.Background(), "/older-about")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, res.Status)

	res, err = r.Resolve(context.Background(), "/gone")
	require.NoError(t, err)
	assert.Equal(t, "missing", res.Object.UUID)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestResolveNotFoundPageUnroutable(t *testing.T) {
	s := siteStore()
	s.NotFound = "/nowhere"
	r := NewRequestResolver(s, nil)
	_, err := r.Resolve(context.Background(), "/does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	s.NotFound = ""
	_, err = r.Resolve(context.Background(), "/does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolveLanguagePrefix(t *testing.T) {
	s := siteStore()
	s.Langs = content.LanguageSettings{
		Method:   content.NegotiationPathPrefix,
		Default:  "en",
		Prefixes: map[string]string{"en": "", "nl": "nl"},
	}
	nl := contenttest.Page("about", "2", contenttest.Value("title", "Over ons"))
	nl.Langcode = "nl"
	s.Add(nl)
	r := NewRequestResolver(s, nil)

	res, err := r.Resolve(context.Background(), "/nl/node/2")
	require.NoError(t, err)
	assert.Equal(t, "nl", res.Language)
	assert.Equal(t, "nl", res.Object.Langcode)
	assert.Equal(t, "Over ons", res.Object.Field("title").Values[0])

	res, err = r.Resolve(context.Background(), "/node/2")
	require.NoError(t, err)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "About", res.Object.Field("title").Values[0])
}

func TestResolveCollectionRoute(t *testing.T) {
	s := siteStore()
	s.Add(newsCollection())
	r := NewRequestResolver(s, nil)

	res, err := r.Resolve(context.Background(), "/news")
	require.NoError(t, err)
	assert.Equal(t, "view-news", res.Object.UUID)
	assert.True(t, res.Object.Config)
}
