package rawrguild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/metrics"
	"github.com/Keksclan/rawrguild/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLoadTTL is used when Load is called with a non-positive ttl and
// WithCacheTTL was not given.
const DefaultLoadTTL = 30 * time.Second

// ErrUnknownDependency is returned by Load for a dep that has no breaker.
var ErrUnknownDependency = errors.New("rawrguild: unknown dependency")

// Load returns the value cached under key, producing it on a miss.
//
// A cache hit returns immediately without touching the coalescer or any
// breaker. On a miss, concurrent callers for the same key share one producer
// call, which runs under the breaker named by dep; a successful result is
// written back with ttl. Producer errors are not cached. When the breaker is
// open every waiting caller receives a *breaker.OpenError.
func (s *Server) Load(ctx context.Context, key string, ttl time.Duration, dep string, producer func(context.Context) ([]byte, error)) ([]byte, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()

	if v, ok := s.probe(ctx, key); ok {
		s.metrics.ObserveLoad(dep, metrics.LoadHit, time.Since(start))
		return v, nil
	}

	b, ok := s.breakers.Get(dep)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDependency, dep)
	}

	ctx, span := s.tracing.Start(ctx, "rawrguild.Load",
		attribute.String("rawrguild.cache_key", key),
		attribute.String("rawrguild.dependency", dep),
	)
	v, shared, err := s.flights.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		// A flight that finished just before this one may have filled the key.
		if v, ok := s.probe(ctx, key); ok {
			return v, nil
		}
		v, err := breaker.Do(ctx, b, producer, nil)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(ctx, key, v, ttl); err != nil {
			s.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return v, nil
	})
	tracing.Finish(span, err)

	outcome := metrics.LoadProduced
	switch {
	case errors.Is(err, breaker.ErrOpen):
		outcome = metrics.LoadRejected
	case err != nil:
		outcome = metrics.LoadError
	case shared:
		outcome = metrics.LoadShared
	}
	s.metrics.ObserveLoad(dep, outcome, time.Since(start))

	if err != nil {
		return nil, err
	}
	return v, nil
}

// probe reads key from the cache. Backend errors count as a miss.
func (s *Server) probe(ctx context.Context, key string) ([]byte, bool) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return v, ok
}

// Invalidate drops key from every cache tier.
func (s *Server) Invalidate(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// LoadJSON is Load for values that round-trip through encoding/json.
func LoadJSON[T any](ctx context.Context, s *Server, key string, ttl time.Duration, dep string, producer func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := s.Load(ctx, key, ttl, dep, func(ctx context.Context) ([]byte, error) {
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("rawrguild: decode cached %q: %w", key, err)
	}
	return out, nil
}
