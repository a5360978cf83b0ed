package cache

import (
	"bytes"
	"context"
	"time"
)

// Store is the byte-oriented cache contract the server writes upstream
// responses into. Implementations treat the cache as advisory: a failed read
// is a miss.
type Store interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key from the store.
	Delete(ctx context.Context, key string) error
}

// Memory adapts an LRU of byte slices to the Store interface. Values are
// copied on the way in and out so callers never share the cached buffer.
type Memory struct {
	lru *LRU[[]byte]
}

// NewMemory creates a Memory store holding at most maxSize entries.
func NewMemory(maxSize int) *Memory {
	return &Memory{lru: NewLRU[[]byte](LRUConfig{MaxSize: maxSize})}
}

// Get retrieves a value by key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a value under key with the given TTL.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.lru.Set(key, bytes.Clone(val), ttl)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Delete(key)
	return nil
}

// Cleanup drops expired entries; it lets a Sweeper own the store.
func (m *Memory) Cleanup() int {
	return m.lru.Cleanup()
}

// Stats returns the underlying LRU counters.
func (m *Memory) Stats() Stats {
	return m.lru.Stats()
}

// LRU exposes the underlying cache for maintenance operations such as
// PruneLRU.
func (m *Memory) LRU() *LRU[[]byte] {
	return m.lru
}

// StatsOf returns the counters of s if it keeps any.
func StatsOf(s Store) (Stats, bool) {
	r, ok := s.(interface{ Stats() Stats })
	if !ok {
		return Stats{}, false
	}
	return r.Stats(), true
}
