package corekit

import (
	"context"
	"errors"
	"sync"
)

// ErrItemMissing is returned by Storage lookups for absent keys.
var ErrItemMissing = errors.New("corekit: storage item missing")

// Storage is the caller-provided local persistence used for the device
// factor and the session token. It mirrors a synchronous key-value store.
type Storage interface {
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
}

// AsyncStorage is the context-aware variant some hosts provide.
type AsyncStorage interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
}

// MemoryStorage is an in-memory Storage for tests and ephemeral sessions.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

func (s *MemoryStorage) GetItem(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[key]
	if !ok {
		return nil, ErrItemMissing
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStorage) SetItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.items[key] = stored
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// SyncAdapter exposes an AsyncStorage through the synchronous Storage
// contract using a fixed base context.
type SyncAdapter struct {
	ctx   context.Context
	inner AsyncStorage
}

// NewSyncAdapter wraps inner; a nil ctx means context.Background.
func NewSyncAdapter(ctx context.Context, inner AsyncStorage) *SyncAdapter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SyncAdapter{ctx: ctx, inner: inner}
}

func (a *SyncAdapter) GetItem(key string) ([]byte, error) {
	return a.inner.GetItem(a.ctx, key)
}

func (a *SyncAdapter) SetItem(key string, value []byte) error {
	return a.inner.SetItem(a.ctx, key, value)
}

func (a *SyncAdapter) RemoveItem(key string) error {
	return a.inner.RemoveItem(a.ctx, key)
}
