// Package kvstore defines the metadata store contract: a key-value store
// addressed by opaque byte keys, returning opaque blobs or a
// not-found/deleted sentinel. Implementations cover in-memory use (tests,
// demos) and the HTTP metadata server.
package kvstore

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
)

// ErrNotFound is returned when no value was ever stored under the key.
var ErrNotFound = errors.New("kvstore: not found")

// ErrDeleted is returned when the value under the key was explicitly
// destroyed ("critical reset"). Distinct from ErrNotFound so callers can
// tell a fresh user from a reset one.
var ErrDeleted = errors.New("kvstore: deleted")

// Store is the metadata store client contract. Values are opaque blobs;
// the store never inspects their internals.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	// Delete destroys the record, leaving the ErrDeleted tombstone.
	Delete(ctx context.Context, key []byte) error
}

// MemStore is an in-memory Store safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	deleted map[string]bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		values:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (s *MemStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := hex.EncodeToString(key)
	if s.deleted[k] {
		return nil, ErrDeleted
	}
	value, ok := s.values[k]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemStore) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := hex.EncodeToString(key)
	delete(s.deleted, k)
	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[k] = stored
	return nil
}

func (s *MemStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := hex.EncodeToString(key)
	delete(s.values, k)
	s.deleted[k] = true
	return nil
}

// Snapshot returns a copy of all stored values, keyed by hex key. Used by
// tests asserting that failed mutations leave the store byte-identical.
func (s *MemStore) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.values))
	for k, v := range s.values {
		c := make([]byte, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}
