package respcache

import (
	"context"
	"sync"

	"github.com/starford/headless/internal/hn"
)

type memoryEntry struct {
	payload []byte
	tags    []string
}

// Memory keeps encoded responses in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	byTag   map[string]map[string]struct{}
	// generation advances on every invalidation; invalidated maps a tag to
	// the generation that last invalidated it.
	generation  uint64
	invalidated map[string]uint64
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string]memoryEntry),
		byTag:       make(map[string]map[string]struct{}),
		invalidated: make(map[string]uint64),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*hn.CacheEntry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	entry, err := decode(e.payload)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (m *Memory) Set(_ context.Context, entry *hn.CacheEntry) error {
	payload, err := encode(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range entry.Tags {
		if m.invalidated[t] > entry.Generation {
			return nil
		}
	}
	m.dropLocked(entry.Key)
	m.entries[entry.Key] = memoryEntry{payload: payload, tags: append([]string(nil), entry.Tags...)}
	for _, t := range entry.Tags {
		keys, ok := m.byTag[t]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[t] = keys
		}
		keys[entry.Key] = struct{}{}
	}
	return nil
}

func (m *Memory) Generation(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation, nil
}

func (m *Memory) InvalidateTags(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	for _, t := range tags {
		m.invalidated[t] = m.generation
		for key := range m.byTag[t] {
			m.dropLocked(key)
		}
	}
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	m.byTag = make(map[string]map[string]struct{})
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of cached responses.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) dropLocked(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, t := range e.tags {
		delete(m.byTag[t], key)
		if len(m.byTag[t]) == 0 {
			delete(m.byTag, t)
		}
	}
}

var _ Cache = (*Memory)(nil)
