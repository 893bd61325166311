package hn_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/content/contenttest"
	"github.com/starford/headless/internal/hn"
	"github.com/starford/headless/internal/respcache"
)

var reader = content.NewAccount("1", content.PermAccessContent)

func newStore() *contenttest.Store {
	s := contenttest.New()
	s.Add(contenttest.Page("u1", "1", contenttest.Value("title", "Hello")))
	s.Add(contenttest.Page("u404", "404", contenttest.Value("title", "Not found")))
	s.Add(contenttest.Page("u403", "403", contenttest.Value("title", "Forbidden")))
	s.NotFound = "/node/404"
	s.Forbidden = "/node/403"
	return s
}

// eventLog records response lifecycle events in dispatch order.
type eventLog struct {
	names []hn.EventName
}

func (l *eventLog) Subscribe(bus *hn.EventBus) {
	for _, name := range []hn.EventName{hn.EventCreated, hn.EventCacheMiss, hn.EventPostEntitiesAdded, hn.EventPreSend} {
		name := name
		bus.OnResponse(name, func(context.Context, *hn.Response) *hn.Response {
			l.names = append(l.names, name)
			return nil
		})
	}
}

func newService(s content.Store, opts ...hn.ServiceOption) *hn.Service {
	base := []hn.ServiceOption{hn.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return hn.NewService(s, append(base, opts...)...)
}

func TestBuildResponseNodeScenario(t *testing.T) {
	svc := newService(newStore())
	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: reader})
	require.NoError(t, err)

	got, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": {
			"u1": {
				"title": "Hello",
				"__meta": {
					"view_modes": ["default"],
					"hidden_fields": [],
					"entity": {"category": "node", "variant": "page"},
					"url": "/node/1",
					"status": 200
				}
			}
		},
		"paths": {"/node/1": "u1"},
		"status": 200
	}`, string(got))
}

func TestBuildResponseUnroutedPath(t *testing.T) {
	svc := newService(newStore())
	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/does-not-exist", Account: reader})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.Status)
	require.Contains(t, resp.Data, "u404")
	assert.Equal(t, http.StatusNotFound, resp.Data["u404"].Meta()["status"])
	assert.Equal(t, "u404", resp.Paths["/does-not-exist"])
	assert.Equal(t, "u404", resp.Paths["/node/404"])
}

func TestBuildResponseFatalNotFound(t *testing.T) {
	s := newStore()
	s.NotFound = "/nowhere"
	cache := respcache.NewMemory()
	svc := newService(s, hn.WithCache(cache))

	_, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/does-not-exist", Account: reader})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheHitBypassesBuild(t *testing.T) {
	s := newStore()
	cache := respcache.NewMemory()
	events := &eventLog{}
	svc := newService(s, hn.WithCache(cache), hn.WithSubscribers(events))
	req := hn.Request{Path: "/node/1", Query: url.Values{"path": {"/node/1"}}, Account: reader}

	first, err := svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	assert.Equal(t, []hn.EventName{hn.EventCreated, hn.EventCacheMiss, hn.EventPostEntitiesAdded, hn.EventPreSend}, events.names)
	assert.Equal(t, 1, cache.Len())

	s.ResetCalls()
	events.names = nil
	second, err := svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(secondJSON))
	assert.Zero(t, s.Calls("Resolve"))
	assert.Zero(t, s.Calls("Load"))
	assert.Zero(t, s.Calls("Normalize"))
	assert.Equal(t, []hn.EventName{hn.EventCreated}, events.names)
}

func TestCacheInvalidatedByTag(t *testing.T) {
	s := newStore()
	cache := respcache.NewMemory()
	svc := newService(s, hn.WithCache(cache))
	req := hn.Request{Path: "/node/1", Account: reader}

	_, err := svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateTags(context.Background(), "node:1"))
	assert.Equal(t, 0, cache.Len())

	s.ResetCalls()
	_, err = svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Calls("Resolve"))
}

func TestDebugResponsesSkipCache(t *testing.T) {
	cache := respcache.NewMemory()
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := newService(newStore(), hn.WithCache(cache), hn.WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}))

	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: reader, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	lines, ok := resp.Meta["log"].([]string)
	require.True(t, ok)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "Tue, 02 Jan 2024")
	assert.Contains(t, lines[1], "[+1.000ms]")
}

func TestForbiddenWithoutAccessContent(t *testing.T) {
	svc := newService(newStore(), hn.WithCache(respcache.NewMemory()))
	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: content.NewAccount("anonymous")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.NotContains(t, resp.Data, "u1")
	require.Contains(t, resp.Data, "u403")
	assert.Equal(t, "Forbidden", resp.Data["u403"]["title"])
	assert.Equal(t, http.StatusForbidden, resp.Data["u403"].Meta()["status"])
	assert.Equal(t, "u403", resp.Paths["/node/403"])
}

func TestForbiddenWithoutForbiddenPage(t *testing.T) {
	s := newStore()
	s.Forbidden = ""
	svc := newService(s)
	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: content.NewAccount("anonymous")})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Empty(t, resp.Data)
	assert.Empty(t, resp.Paths)
}

func TestRootStubWhenRootInaccessible(t *testing.T) {
	s := newStore()
	draft := contenttest.Page("d1", "9")
	draft.Published = false
	s.Add(draft)

	svc := newService(s)
	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/9", Account: reader})
	require.NoError(t, err)

	rec := resp.Data["d1"]
	require.NotNil(t, rec)
	assert.Equal(t, map[string]any{"status": http.StatusOK}, rec.Meta())
	assert.Equal(t, "d1", resp.Paths["/node/9"])
}

func TestSubscribersShapeResponse(t *testing.T) {
	sub := hn.SubscriberFunc(func(bus *hn.EventBus) {
		bus.OnResponse(hn.EventPostEntitiesAdded, func(_ context.Context, resp *hn.Response) *hn.Response {
			resp.Set("site", "demo")
			return nil
		})
		bus.OnResponse(hn.EventPreSend, func(_ context.Context, resp *hn.Response) *hn.Response {
			resp.Set("sent", true)
			return nil
		})
	})
	cache := respcache.NewMemory()
	svc := newService(newStore(), hn.WithCache(cache), hn.WithSubscribers(sub))
	req := hn.Request{Path: "/node/1", Account: reader}

	resp, err := svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "demo", resp.Extra["site"])
	assert.Equal(t, true, resp.Extra["sent"])

	cached, err := svc.BuildResponse(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "demo", cached.Extra["site"])
	assert.NotContains(t, cached.Extra, "sent", "pre-send changes are not cached")
}

func TestCacheKeepsEscapedPathApart(t *testing.T) {
	cache := respcache.NewMemory()
	svc := newService(newStore(), hn.WithCache(cache))
	ctx := context.Background()

	joined, err := svc.BuildResponse(ctx, hn.Request{
		Path:    "/node/1&x=1",
		Query:   url.Values{"path": {"/node/1&x=1"}},
		Account: reader,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, joined.Status)

	split, err := svc.BuildResponse(ctx, hn.Request{
		Path:    "/node/1",
		Query:   url.Values{"path": {"/node/1"}, "x": {"1"}},
		Account: reader,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, split.Status)
	assert.Contains(t, split.Data, "u1")
	assert.Equal(t, 2, cache.Len())
}

func TestInvalidationDuringBuildSkipsCache(t *testing.T) {
	cache := respcache.NewMemory()
	sub := hn.SubscriberFunc(func(bus *hn.EventBus) {
		bus.OnResponse(hn.EventPostEntitiesAdded, func(ctx context.Context, _ *hn.Response) *hn.Response {
			require.NoError(t, cache.InvalidateTags(ctx, "node:1"))
			return nil
		})
	})
	svc := newService(newStore(), hn.WithCache(cache), hn.WithSubscribers(sub))

	resp, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: reader})
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "u1")
	assert.Equal(t, 0, cache.Len())
}

func TestUnrelatedInvalidationDuringBuildStillCaches(t *testing.T) {
	cache := respcache.NewMemory()
	sub := hn.SubscriberFunc(func(bus *hn.EventBus) {
		bus.OnResponse(hn.EventPostEntitiesAdded, func(ctx context.Context, _ *hn.Response) *hn.Response {
			require.NoError(t, cache.InvalidateTags(ctx, "node:99"))
			return nil
		})
	})
	svc := newService(newStore(), hn.WithCache(cache), hn.WithSubscribers(sub))

	_, err := svc.BuildResponse(context.Background(), hn.Request{Path: "/node/1", Account: reader})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}
