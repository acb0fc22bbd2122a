package cachestore

import (
	"sort"
	"sync"
)

// MemStore is an in-memory Store with the same copy-on-write semantics as
// FileStore. Intended for tests and ephemeral runs.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: map[string]Entry{}}
}

func (s *MemStore) Get(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return NotStarted(), false, nil
	}
	return e, true, nil
}

func (s *MemStore) Put(key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	next[key] = entry
	s.entries = next
	return nil
}

func (s *MemStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
