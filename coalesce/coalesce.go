// Package coalesce collapses concurrent identical requests into a single
// execution so a cold cache key does not send a burst of identical calls to
// the database or the Discord API.
package coalesce

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates in-flight producers by key. The zero value is not
// usable; create one with New.
type Group[T any] struct {
	mu       sync.Mutex
	sf       *singleflight.Group
	inflight map[string]*flight

	producers atomic.Uint64
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{
		sf:       new(singleflight.Group),
		inflight: make(map[string]*flight),
	}
}

// flight marks one producer invocation so a producer that outlives Clear does
// not untrack its successor.
type flight struct {
	key string
}

// PanicError is returned to every waiter when the producer panics.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("coalesce: producer for %q panicked: %v", e.Key, e.Value)
}

// Do runs producer for key unless a producer for the same key is already in
// flight, in which case the caller waits for and receives that producer's
// value and error. shared reports whether the result was handed to more than
// one caller.
//
// The producer runs on a context that keeps ctx's values but not its
// cancellation, so a caller that gives up does not abort the work other
// callers are waiting on. Such a caller gets ctx.Err() back immediately.
func (g *Group[T]) Do(ctx context.Context, key string, producer func(context.Context) (T, error)) (v T, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	g.mu.Lock()
	sf := g.sf
	g.mu.Unlock()
	ch := sf.DoChan(key, func() (val any, err error) {
		f := g.track(sf, key)
		defer g.untrack(key, f)
		defer func() {
			if r := recover(); r != nil {
				val, err = nil, &PanicError{Key: key, Value: r}
			}
		}()
		g.producers.Add(1)
		return producer(detached)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Shared, res.Err
		}
		v, _ = res.Val.(T)
		return v, res.Shared, nil
	}
}

// Clear forgets every in-flight key, including producers that have been
// scheduled but not yet started. Running producers are not cancelled and
// their current waiters still receive the result, but the next call for any
// of those keys starts a new producer.
func (g *Group[T]) Clear() {
	g.mu.Lock()
	g.sf = new(singleflight.Group)
	clear(g.inflight)
	g.mu.Unlock()
}

// InFlight returns the number of keys with a running producer.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// Producers returns how many times a producer has been invoked.
func (g *Group[T]) Producers() uint64 {
	return g.producers.Load()
}

// track records a producer started from sf. Producers of a group replaced by
// Clear are not counted.
func (g *Group[T]) track(sf *singleflight.Group, key string) *flight {
	f := &flight{key: key}
	g.mu.Lock()
	if g.sf == sf {
		g.inflight[key] = f
	}
	g.mu.Unlock()
	return f
}

func (g *Group[T]) untrack(key string, f *flight) {
	g.mu.Lock()
	if g.inflight[key] == f {
		delete(g.inflight, key)
	}
	g.mu.Unlock()
}
