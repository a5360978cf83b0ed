package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Keksclan/rawrguild/policy"
)

// Allower decides whether one call may proceed.
type Allower interface {
	Allow(ctx context.Context, fullMethod string) bool
}

// Grouped applies a group's own limit to methods the resolver places in a
// group with a RateLimit rule, and the default limit to everything else. Each
// group keeps separate buckets keyed by the default Key function.
type Grouped struct {
	def      *Keyed
	resolver *policy.Resolver

	mu     sync.Mutex
	groups map[string]*Keyed
}

// NewGrouped creates a Grouped limiter. A nil resolver makes it behave like
// NewKeyed(def).
func NewGrouped(def Config, r *policy.Resolver) *Grouped {
	return &Grouped{
		def:      NewKeyed(def),
		resolver: r,
		groups:   make(map[string]*Keyed),
	}
}

// Allow reports whether the call may proceed under its group's limit.
func (g *Grouped) Allow(ctx context.Context, fullMethod string) bool {
	return g.limiterFor(fullMethod).Allow(ctx, fullMethod)
}

func (g *Grouped) limiterFor(fullMethod string) *Keyed {
	m, ok := g.resolver.Resolve(fullMethod)
	if !ok || m.Policy.RateLimit == nil {
		return g.def
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	k, ok := g.groups[m.Group]
	if !ok {
		k = NewKeyed(Config{
			Window:      m.Policy.RateLimit.Window,
			MaxRequests: m.Policy.RateLimit.MaxRequests,
			Key:         g.def.cfg.Key,
		})
		k.nowFunc = func() time.Time { return g.def.nowFunc() }
		g.groups[m.Group] = k
	}
	return k
}

// Cleanup drops idle buckets of every group and returns how many were dropped.
func (g *Grouped) Cleanup() int {
	n := g.def.Cleanup()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range g.groups {
		n += k.Cleanup()
	}
	return n
}

// Len returns the number of live buckets across all groups.
func (g *Grouped) Len() int {
	n := g.def.Len()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range g.groups {
		n += k.Len()
	}
	return n
}
