package respcache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/starford/headless/internal/hn"
)

// Key layout:
//
//	e:<key>            encoded entry
//	k:<key>            cbor list of the entry's tags
//	t:<tag>\x00<key>   empty marker
//	g:<tag>            generation that last invalidated the tag
//	s:generation       current invalidation generation
const (
	prefixEntry   = "e:"
	prefixKeyTags = "k:"
	prefixTag     = "t:"
	prefixTagGen  = "g:"
	keyGeneration = "s:generation"
)

// Badger stores responses in an embedded key/value store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store in dir. An empty dir keeps the
// store in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("respcache: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func tagKey(tag, key string) []byte {
	return []byte(prefixTag + tag + "\x00" + key)
}

func (b *Badger) Get(_ context.Context, key string) (*hn.CacheEntry, bool, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixEntry + key))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("respcache: get %s: %w", key, err)
	}
	entry, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (b *Badger) Set(_ context.Context, entry *hn.CacheEntry) error {
	payload, err := encode(entry)
	if err != nil {
		return err
	}
	tags, err := cbor.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("respcache: encode tags %s: %w", entry.Key, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, t := range entry.Tags {
			gen, err := readGeneration(txn, []byte(prefixTagGen+t))
			if err != nil {
				return err
			}
			if gen > entry.Generation {
				return nil
			}
		}
		if err := dropEntry(txn, entry.Key); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixEntry+entry.Key), payload); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixKeyTags+entry.Key), tags); err != nil {
			return err
		}
		for _, t := range entry.Tags {
			if err := txn.Set(tagKey(t, entry.Key), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent invalidation touched one of the tags.
		return nil
	}
	if err != nil {
		return fmt.Errorf("respcache: set %s: %w", entry.Key, err)
	}
	return nil
}

func readGeneration(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var gen uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("respcache: malformed generation %q", key)
		}
		gen = binary.BigEndian.Uint64(v)
		return nil
	})
	return gen, err
}

func (b *Badger) Generation(context.Context) (uint64, error) {
	var gen uint64
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		gen, err = readGeneration(txn, []byte(keyGeneration))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("respcache: generation: %w", err)
	}
	return gen, nil
}

// advance records a new generation for tags before their entries are dropped.
func (b *Badger) advance(tags []string) error {
	for {
		err := b.db.Update(func(txn *badger.Txn) error {
			return advanceTxn(txn, tags)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func advanceTxn(txn *badger.Txn, tags []string) error {
	gen, err := readGeneration(txn, []byte(keyGeneration))
	if err != nil {
		return err
	}
	buf := binary.BigEndian.AppendUint64(nil, gen+1)
	if err := txn.Set([]byte(keyGeneration), buf); err != nil {
		return err
	}
	for _, t := range tags {
		if err := txn.Set([]byte(prefixTagGen+t), buf); err != nil {
			return err
		}
	}
	return nil
}

// dropEntry removes an entry together with its tag markers.
func dropEntry(txn *badger.Txn, key string) error {
	item, err := txn.Get([]byte(prefixKeyTags + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	var tags []string
	if err := cbor.Unmarshal(raw, &tags); err != nil {
		return err
	}
	for _, t := range tags {
		if err := txn.Delete(tagKey(t, key)); err != nil {
			return err
		}
	}
	if err := txn.Delete([]byte(prefixKeyTags + key)); err != nil {
		return err
	}
	return txn.Delete([]byte(prefixEntry + key))
}

func (b *Badger) InvalidateTags(_ context.Context, tags ...string) error {
	if err := b.advance(tags); err != nil {
		return fmt.Errorf("respcache: advance generation: %w", err)
	}
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for _, t := range tags {
			prefix := []byte(prefixTag + t + "\x00")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := bytes.TrimPrefix(it.Item().Key(), prefix)
				keys = append(keys, string(k))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("respcache: scan tags: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := dropEntry(txn, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("respcache: invalidate: %w", err)
	}
	return nil
}

func (b *Badger) Clear(context.Context) error {
	if err := b.db.DropPrefix([]byte(prefixEntry), []byte(prefixKeyTags), []byte(prefixTag)); err != nil {
		return fmt.Errorf("respcache: clear: %w", err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

var _ Cache = (*Badger)(nil)
