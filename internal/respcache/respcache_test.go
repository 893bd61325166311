package respcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/headless/internal/hn"
)

func drivers(t *testing.T) map[string]Cache {
	t.Helper()

	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	sqlite, err := NewSQLite(conn)
	require.NoError(t, err)

	bdg, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { bdg.Close() })

	return map[string]Cache{
		DriverMemory: NewMemory(),
		DriverSQLite: sqlite,
		DriverBadger: bdg,
	}
}

func sampleGraph() *hn.Response {
	resp := hn.NewResponse()
	resp.Status = 200
	resp.Data["u1"] = hn.Record{
		"title": "Home",
		"count": 3,
		"tags":  []any{map[string]any{"target_type": "taxonomy_term", "target_id": "7"}},
		hn.MetaKey: map[string]any{
			"view_modes":    []string{"default"},
			"hidden_fields": []string{},
			"status":        200,
			"url":           "/node/1",
		},
	}
	resp.Paths["/node/1"] = "u1"
	resp.Set("site", map[string]any{"name": "demo"})
	return resp
}

func TestRoundTripKeepsJSON(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			graph := sampleGraph()
			want, err := json.Marshal(graph)
			require.NoError(t, err)

			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "k1", Graph: graph, Tags: []string{"node:1"}}))
			entry, ok, err := c.Get(ctx, "k1")
			require.NoError(t, err)
			require.True(t, ok)

			got, err := json.Marshal(entry.Graph)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
			assert.Equal(t, []string{"node:1"}, entry.Tags)
		})
	}
}

func TestMissingKey(t *testing.T) {
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			entry, ok, err := c.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, entry)
		})
	}
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "k", Graph: sampleGraph()}))

			first, _, err := c.Get(ctx, "k")
			require.NoError(t, err)
			first.Graph.Data["u1"]["title"] = "changed"
			first.Graph.Data["u1"].Meta()["status"] = 500

			second, _, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "Home", second.Graph.Data["u1"]["title"])
			assert.EqualValues(t, 200, second.Graph.Data["u1"].Meta()["status"])
		})
	}
}

func TestInvalidateTags(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "a", Graph: sampleGraph(), Tags: []string{"node:1", "node_list"}}))
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "b", Graph: sampleGraph(), Tags: []string{"node:2"}}))
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "c", Graph: sampleGraph(), Tags: []string{"taxonomy_term:7"}}))

			require.NoError(t, c.InvalidateTags(ctx, "node_list", "node:2"))

			_, ok, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, _ = c.Get(ctx, "b")
			assert.False(t, ok)
			_, ok, _ = c.Get(ctx, "c")
			assert.True(t, ok)
		})
	}
}

func TestOverwriteReplacesTags(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "a", Graph: sampleGraph(), Tags: []string{"node:1"}}))
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "a", Graph: sampleGraph(), Tags: []string{"node:9"}}))

			require.NoError(t, c.InvalidateTags(ctx, "node:1"))
			_, ok, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok, "stale tag must not invalidate the new entry")

			require.NoError(t, c.InvalidateTags(ctx, "node:9"))
			_, ok, _ = c.Get(ctx, "a")
			assert.False(t, ok)
		})
	}
}

func TestSetSkipsEntriesInvalidatedAfterGeneration(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			before, err := c.Generation(ctx)
			require.NoError(t, err)

			require.NoError(t, c.InvalidateTags(ctx, "node:1"))
			after, err := c.Generation(ctx)
			require.NoError(t, err)
			assert.Greater(t, after, before)

			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "stale", Graph: sampleGraph(), Tags: []string{"node:1", "node_list"}, Generation: before}))
			_, ok, err := c.Get(ctx, "stale")
			require.NoError(t, err)
			assert.False(t, ok, "entry built before the invalidation must not be stored")

			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "other", Graph: sampleGraph(), Tags: []string{"node:2"}, Generation: before}))
			_, ok, _ = c.Get(ctx, "other")
			assert.True(t, ok)

			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "fresh", Graph: sampleGraph(), Tags: []string{"node:1"}, Generation: after}))
			_, ok, _ = c.Get(ctx, "fresh")
			assert.True(t, ok)
		})
	}
}

func TestClearKeepsGeneration(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.InvalidateTags(ctx, "node:1"))
			gen, err := c.Generation(ctx)
			require.NoError(t, err)

			require.NoError(t, c.Clear(ctx))
			after, err := c.Generation(ctx)
			require.NoError(t, err)
			assert.Equal(t, gen, after)

			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "stale", Graph: sampleGraph(), Tags: []string{"node:1"}}))
			_, ok, err := c.Get(ctx, "stale")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	for name, c := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, &hn.CacheEntry{Key: "a", Graph: sampleGraph(), Tags: []string{"x"}}))
			require.NoError(t, c.Clear(ctx))
			_, ok, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "", nil)
	assert.Error(t, err)

	c, err := Open("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
}
