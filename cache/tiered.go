package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultPromoteTTL bounds how long a value promoted from L2 lives in the
// near tier, since L2 does not report the remaining TTL.
const DefaultPromoteTTL = 30 * time.Second

// Tiered combines a near in-process Store with a shared Redis L2. Reads check
// the near tier first, then L2. Writes and deletes reach both layers.
type Tiered struct {
	near       Store
	l2         *L2
	promoteTTL time.Duration
}

// NewTiered creates a two-level store. promoteTTL applies to values copied
// from L2 into the near tier; zero selects DefaultPromoteTTL.
func NewTiered(near Store, l2 *L2, promoteTTL time.Duration) *Tiered {
	if promoteTTL <= 0 {
		promoteTTL = DefaultPromoteTTL
	}
	return &Tiered{near: near, l2: l2, promoteTTL: promoteTTL}
}

// Get checks the near tier, then L2. On an L2 hit the value is promoted. A
// failing near tier is skipped; its error is only returned when L2 cannot
// serve the key either.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, nearErr := t.near.Get(ctx, key)
	if nearErr == nil && ok {
		return v, true, nil
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, errors.Join(nearErr, err)
	}
	_ = t.near.Set(ctx, key, v, t.promoteTTL)
	return v, true, nil
}

// Set writes the value to L2, then to the near tier.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.near.Set(ctx, key, val, ttl)
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l2.Delete(ctx, key)
	return t.near.Delete(ctx, key)
}

// Near returns the in-process tier.
func (t *Tiered) Near() Store {
	return t.near
}

// Stats reports the near tier's counters when it keeps any.
func (t *Tiered) Stats() Stats {
	s, _ := StatsOf(t.near)
	return s
}

// Cleanup sweeps expired entries from the near tier. Redis expires its own keys.
func (t *Tiered) Cleanup() int {
	if c, ok := t.near.(Cleaner); ok {
		return c.Cleanup()
	}
	return 0
}
