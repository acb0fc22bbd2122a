package cachestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore persists the whole cache as a single JSON document on disk.
//
// Writes are atomic: the document is serialized to a temp file in the same
// directory and renamed over the live one. Every Put replaces the full
// mapping with a clone of the previous keys plus the changed key, so a
// partially applied write can never be observed across a crash.
type FileStore struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*FileStore)(nil)

// OpenFileStore opens (or creates) the store backed by the given file.
// The parent directory is created if needed.
func OpenFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	s := &FileStore{path: path, entries: map[string]Entry{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the on-disk location of the store.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the entry for key and whether it was present.
func (s *FileStore) Get(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return NotStarted(), false, nil
	}
	return e, true, nil
}

// Put replaces the entry for key and persists the whole store.
func (s *FileStore) Put(key string, entry Entry) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	next[key] = entry

	if err := s.save(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

// Keys returns the cached scope keys in sorted order.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache store: %w", err)
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return fmt.Errorf("parse cache store: %w", err)
	}
	s.entries = entries
	return nil
}

func (s *FileStore) save(entries map[string]Entry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache store: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
