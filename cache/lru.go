// Package cache provides the in-process TTL+LRU cache used in front of slow
// upstreams, plus byte-oriented stores (memory, ristretto, Redis, tiered)
// that the server composes into its response cache.
package cache

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"
)

// DefaultMaxSize is used when LRUConfig.MaxSize is not positive.
const DefaultMaxSize = 1000

// LRUConfig holds the LRU parameters.
type LRUConfig struct {
	// MaxSize is the number of entries the cache holds before it starts
	// evicting the least recently used one.
	MaxSize int
}

// Entry is a cached value together with its bookkeeping metadata.
type Entry[V any] struct {
	Value          V
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    uint64
}

func (e *Entry[V]) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats is a point-in-time snapshot of cache counters. All counters only grow;
// Size reflects the current number of stored entries.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Sets      uint64
	Deletes   uint64
	Evictions uint64
	HitRate   float64
	Size      int
	MaxSize   int
}

// LRU is a size-bounded cache with per-entry expiry. Entries are kept in an
// insertion-ordered map; every hit removes and reinserts its key, so iterating
// from the front always yields least recently used first.
//
// All methods are safe for concurrent use.
type LRU[V any] struct {
	mu      sync.Mutex
	maxSize int
	entries *orderedmap.OrderedMap[string, *Entry[V]]

	hits      uint64
	misses    uint64
	sets      uint64
	deletes   uint64
	evictions uint64

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// NewLRU creates an empty LRU.
func NewLRU[V any](cfg LRUConfig) *LRU[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &LRU[V]{
		maxSize: cfg.MaxSize,
		entries: orderedmap.NewOrderedMap[string, *Entry[V]](),
		nowFunc: time.Now,
	}
}

// Set stores value under key until now+ttl. Storing a new key into a full
// cache evicts the least recently used entry first. Overwriting an existing
// key resets its metadata and makes it the most recently used.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.entries.Get(key); ok {
		c.entries.Delete(key)
	} else if c.entries.Len() >= c.maxSize {
		c.evictOldest()
	}

	c.entries.Set(key, &Entry[V]{
		Value:          value,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	c.sets++
}

// Get returns the value stored under key. Expired entries are removed and
// reported as a miss.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}

	now := c.now()
	if e.expired(now) {
		c.entries.Delete(key)
		c.misses++
		return zero, false
	}

	e.AccessCount++
	e.LastAccessedAt = now
	// Reinsert to move the key to the most recently used position.
	c.entries.Delete(key)
	c.entries.Set(key, e)
	c.hits++
	return e.Value, true
}

// Peek returns a copy of the entry stored under key without counting a hit
// or changing its recency. Expired entries are reported as absent.
func (c *LRU[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok || e.expired(c.now()) {
		return Entry[V]{}, false
	}
	return *e, true
}

// Delete removes key and reports whether it was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.entries.Delete(key) {
		return false
	}
	c.deletes++
	return true
}

// Keys returns the live keys ordered from least to most recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, c.entries.Len())
	for el := c.entries.Front(); el != nil; el = el.Next() {
		if !el.Value.expired(now) {
			keys = append(keys, el.Key)
		}
	}
	return keys
}

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear drops every entry. Counters are left untouched.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.NewOrderedMap[string, *Entry[V]]()
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *LRU[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []string
	for el := c.entries.Front(); el != nil; el = el.Next() {
		if el.Value.expired(now) {
			expired = append(expired, el.Key)
		}
	}
	for _, k := range expired {
		c.entries.Delete(k)
	}
	return len(expired)
}

// PruneLRU evicts up to n least recently used entries and returns how many
// were evicted.
func (c *LRU[V]) PruneLRU(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for removed < n && c.evictOldest() {
		removed++
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Deletes:   c.deletes,
		Evictions: c.evictions,
		HitRate:   rate,
		Size:      c.entries.Len(),
		MaxSize:   c.maxSize,
	}
}

// evictOldest removes the front entry. Must be called with c.mu held.
func (c *LRU[V]) evictOldest() bool {
	front := c.entries.Front()
	if front == nil {
		return false
	}
	c.entries.Delete(front.Key)
	c.evictions++
	return true
}

func (c *LRU[V]) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}
