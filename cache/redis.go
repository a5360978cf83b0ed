package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// L2 is a Redis-backed Store. All operations fail soft: if Redis is
// unavailable, methods return a miss (or silently discard the write) instead
// of surfacing the error to the caller.
type L2 struct {
	rdb    *redis.Client
	prefix string
}

// L2Config holds the Redis connection parameters.
type L2Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key so several deployments can share one
	// Redis database.
	Prefix string
}

// NewL2 creates a new Redis-backed L2 store.
func NewL2(cfg L2Config) *L2 {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &L2{rdb: rdb, prefix: cfg.Prefix}
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		// Fail soft: treat connection errors as a miss.
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL. Errors are silently
// discarded (fail soft).
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = l.rdb.Set(ctx, l.prefix+key, val, ttl).Err()
	return nil
}

// Delete removes key. Errors are silently discarded (fail soft).
func (l *L2) Delete(ctx context.Context, key string) error {
	_ = l.rdb.Del(ctx, l.prefix+key).Err()
	return nil
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
