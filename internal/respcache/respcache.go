// Package respcache stores finished content graphs keyed by request and
// indexed by cache tag.
package respcache

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/starford/headless/internal/hn"
)

// Cache is a tag-invalidated response cache.
type Cache interface {
	hn.ResponseCache
	hn.TagInvalidator
	Clear(ctx context.Context) error
	Close() error
}

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("respcache: cbor decode mode: %v", err))
	}
}

func encode(entry *hn.CacheEntry) ([]byte, error) {
	b, err := cbor.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("respcache: encode %s: %w", entry.Key, err)
	}
	return b, nil
}

func decode(b []byte) (*hn.CacheEntry, error) {
	var entry hn.CacheEntry
	if err := decMode.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("respcache: decode: %w", err)
	}
	if entry.Graph != nil {
		if entry.Graph.Data == nil {
			entry.Graph.Data = map[string]hn.Record{}
		}
		if entry.Graph.Paths == nil {
			entry.Graph.Paths = map[string]string{}
		}
	}
	return &entry, nil
}

// Cache drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Open returns the cache for driver. conn is used by the sqlite driver and
// path by the badger driver.
func Open(driver, path string, conn *sql.DB) (Cache, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if conn == nil {
			return nil, fmt.Errorf("respcache: sqlite driver needs a connection")
		}
		return NewSQLite(conn)
	case DriverBadger:
		return OpenBadger(path)
	}
	return nil, fmt.Errorf("respcache: unknown driver %q", driver)
}
