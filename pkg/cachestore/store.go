// Package cachestore persists per-scope bucket listings in a keyed,
// durable store.
//
// Entries are created lazily on first access and are never deleted, only
// overwritten by a fresh fetch. The file-backed implementation survives
// restarts; the in-memory one is for tests and ephemeral runs.
package cachestore

import (
	"time"

	"github.com/cloudpane/bucketcache/pkg/bucket"
)

// State is the loading state of a cache entry.
type State string

const (
	// StateNotStarted means no fetch has been initiated for the key.
	// The zero value of an unseen entry.
	StateNotStarted State = "NotStarted"

	// StateLoading means a fetch is in flight.
	StateLoading State = "Loading"

	// StateDone means the last fetch committed a listing.
	StateDone State = "Done"

	// StateError means the last fetch failed. Buckets retain their
	// pre-failure value.
	StateError State = "Error"
)

// Entry is the cached loading state and bucket listing for one scope.
type Entry struct {
	State     State           `json:"loading"`
	Buckets   []bucket.Bucket `json:"buckets"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NotStarted returns the default entry for an unseen key.
func NotStarted() Entry {
	return Entry{State: StateNotStarted}
}

// Store is the injected storage abstraction behind the bucket cache.
//
// Get returns the entry for key and whether it was present; absent keys
// are not an error. Put replaces the entry for key, preserving every
// other key (copy-on-write over the whole store).
type Store interface {
	Get(key string) (Entry, bool, error)
	Put(key string, entry Entry) error
	Keys() ([]string, error)
}
