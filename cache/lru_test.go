package cache

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

func newTestLRU(maxSize int) (*LRU[string], *time.Time) {
	c := NewLRU[string](LRUConfig{MaxSize: maxSize})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }
	return c, &now
}

func TestLRU_SetGet(t *testing.T) {
	c, _ := newTestLRU(10)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected miss")
	}

	c.Set("k1", "v1", time.Minute)
	v, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if v != "v1" {
		t.Fatalf("got %q, want %q", v, "v1")
	}
}

func TestLRU_TTLExpires(t *testing.T) {
	c, now := newTestLRU(10)

	c.Set("ttl", "temp", 30*time.Second)
	if _, ok := c.Get("ttl"); !ok {
		t.Fatal("expected hit before TTL")
	}

	*now = now.Add(31 * time.Second)

	if _, ok := c.Get("ttl"); ok {
		t.Fatal("expected miss after TTL")
	}
	if keys := c.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys after expiry, got %v", keys)
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("expired entry should be removed on Get, Len=%d", n)
	}
}

func TestLRU_ExpiryIsStrictlyAfterDeadline(t *testing.T) {
	c, now := newTestLRU(10)

	c.Set("k", "v", time.Second)
	*now = now.Add(time.Second)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry must still be live exactly at its expiry instant")
	}
}

func TestLRU_EvictsFirstInserted(t *testing.T) {
	c, _ := newTestLRU(3)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("c", "3", time.Minute)
	c.Set("d", "4", time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if got, want := c.Keys(), []string{"b", "c", "d"}; !slices.Equal(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if ev := c.Stats().Evictions; ev != 1 {
		t.Fatalf("evictions = %d, want 1", ev)
	}
}

func TestLRU_GetProtectsFromEviction(t *testing.T) {
	c, _ := newTestLRU(3)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("c", "3", time.Minute)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit on a")
	}
	c.Set("d", "4", time.Minute)

	if _, ok := c.Peek("a"); !ok {
		t.Fatal("a was touched and must survive")
	}
	if _, ok := c.Peek("b"); ok {
		t.Fatal("b is least recently used and must be evicted")
	}
}

func TestLRU_OverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestLRU(2)

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Set("a", "1b", time.Minute)

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if ev := c.Stats().Evictions; ev != 0 {
		t.Fatalf("evictions = %d, want 0", ev)
	}
	if got, want := c.Keys(), []string{"b", "a"}; !slices.Equal(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestLRU_AccessMetadata(t *testing.T) {
	c, now := newTestLRU(10)

	c.Set("k", "v", time.Hour)
	created := *now

	*now = now.Add(time.Minute)
	c.Get("k")
	*now = now.Add(time.Minute)
	c.Get("k")

	e, ok := c.Peek("k")
	if !ok {
		t.Fatal("expected entry")
	}
	if e.AccessCount != 2 {
		t.Fatalf("AccessCount = %d, want 2", e.AccessCount)
	}
	if !e.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", e.CreatedAt, created)
	}
	if !e.LastAccessedAt.Equal(*now) {
		t.Fatalf("LastAccessedAt = %v, want %v", e.LastAccessedAt, *now)
	}
	if !e.ExpiresAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", e.ExpiresAt, created.Add(time.Hour))
	}
}

func TestLRU_Delete(t *testing.T) {
	c, _ := newTestLRU(10)

	c.Set("k", "v", time.Minute)
	if !c.Delete("k") {
		t.Fatal("expected Delete to report true")
	}
	if c.Delete("k") {
		t.Fatal("expected second Delete to report false")
	}
	if d := c.Stats().Deletes; d != 1 {
		t.Fatalf("deletes = %d, want 1", d)
	}
}

func TestLRU_Cleanup(t *testing.T) {
	c, now := newTestLRU(10)

	c.Set("short1", "v", time.Second)
	c.Set("long", "v", time.Hour)
	c.Set("short2", "v", time.Second)

	if n := c.Cleanup(); n != 0 {
		t.Fatalf("Cleanup removed %d live entries", n)
	}

	*now = now.Add(2 * time.Second)
	if n := c.Cleanup(); n != 2 {
		t.Fatalf("Cleanup removed %d, want 2", n)
	}
	if got, want := c.Keys(), []string{"long"}; !slices.Equal(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestLRU_PruneLRU(t *testing.T) {
	c, _ := newTestLRU(10)

	for _, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, k, time.Minute)
	}
	c.Get("a")

	if n := c.PruneLRU(2); n != 2 {
		t.Fatalf("PruneLRU = %d, want 2", n)
	}
	if got, want := c.Keys(), []string{"d", "a"}; !slices.Equal(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if n := c.PruneLRU(10); n != 2 {
		t.Fatalf("PruneLRU on 2 entries = %d, want 2", n)
	}
	if ev := c.Stats().Evictions; ev != 4 {
		t.Fatalf("evictions = %d, want 4", ev)
	}
}

func TestLRU_Stats(t *testing.T) {
	c, _ := newTestLRU(5)

	c.Set("a", "1", time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	c.Delete("a")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Sets != 1 || s.Deletes != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Fatalf("HitRate = %f, want ~0.667", s.HitRate)
	}
	if s.Size != 0 || s.MaxSize != 5 {
		t.Fatalf("Size/MaxSize = %d/%d, want 0/5", s.Size, s.MaxSize)
	}
}

func TestLRU_DefaultMaxSize(t *testing.T) {
	c := NewLRU[int](LRUConfig{})
	if s := c.Stats(); s.MaxSize != DefaultMaxSize {
		t.Fatalf("MaxSize = %d, want %d", s.MaxSize, DefaultMaxSize)
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int](LRUConfig{MaxSize: 50})

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				k := fmt.Sprintf("k%d", (g*31+i)%100)
				c.Set(k, i, time.Minute)
				c.Get(k)
				if i%50 == 0 {
					c.Cleanup()
				}
			}
		}()
	}
	wg.Wait()

	if n := c.Len(); n > 50 {
		t.Fatalf("Len = %d exceeds MaxSize", n)
	}
}
