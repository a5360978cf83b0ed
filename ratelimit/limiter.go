// Package ratelimit provides token-bucket rate limiters backed by
// golang.org/x/time/rate: a single global gate and a keyed variant that keeps
// one bucket per caller.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// KeyFunc derives the bucket key of a request. An empty key shares a single
// anonymous bucket.
type KeyFunc func(ctx context.Context, fullMethod string) string

// Config describes a keyed limit: at most MaxRequests per Window for every
// key returned by Key.
type Config struct {
	Window      time.Duration
	MaxRequests int
	Key         KeyFunc
}

// Keyed keeps one token bucket per key. Buckets are created lazily and are
// dropped after staying idle for IdleTTL.
type Keyed struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	nowFunc func() time.Time // for testing; defaults to time.Now
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IdleTTL is how long an unused bucket is kept before Cleanup drops it.
const IdleTTL = 10 * time.Minute

// NewKeyed creates a Keyed limiter. A missing Key function falls back to the
// full method name.
func NewKeyed(cfg Config) *Keyed {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Key == nil {
		cfg.Key = func(_ context.Context, fullMethod string) string { return fullMethod }
	}
	return &Keyed{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		nowFunc: time.Now,
	}
}

// Allow reports whether the request identified by ctx and fullMethod may
// proceed.
func (k *Keyed) Allow(ctx context.Context, fullMethod string) bool {
	key := k.cfg.Key(ctx, fullMethod)
	now := k.nowFunc()

	k.mu.Lock()
	b, ok := k.buckets[key]
	if !ok {
		every := rate.Every(k.cfg.Window / time.Duration(k.cfg.MaxRequests))
		b = &bucket{lim: rate.NewLimiter(every, k.cfg.MaxRequests)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	k.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than IdleTTL and returns how many were
// dropped.
func (k *Keyed) Cleanup() int {
	now := k.nowFunc()
	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > IdleTTL {
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
