package rawrguild

import (
	"log/slog"
	"time"

	"github.com/Keksclan/rawrguild/auth"
	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/discord"
	"github.com/Keksclan/rawrguild/interceptors"
	"github.com/Keksclan/rawrguild/ledger"
	"github.com/Keksclan/rawrguild/policy"
	"github.com/Keksclan/rawrguild/ratelimit"
	"github.com/Keksclan/rawrguild/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// Middleware priorities. Lower values run first regardless of the order in
// which options are passed.
const (
	orderRecovery  = 100
	orderRequestID = 150
	orderTracing   = 200
	orderAuth      = 300
	orderRateLimit = 400
	orderObserve   = 500
	orderUser      = 1000
)

// Option configures a Server.
type Option func(*config)

// WithUnaryInterceptor appends a unary server interceptor after the built-in
// middleware.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add("user", orderUser, i, nil)
	}
}

// WithStreamInterceptor appends a stream server interceptor after the
// built-in middleware.
func WithStreamInterceptor(i grpc.StreamServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add("user", orderUser, nil, i)
	}
}

// WithRecovery installs panic recovery and request IDs so that a panic inside
// a handler returns codes.Internal instead of crashing the process. Panics
// are logged through the logger set by WithLogger.
func WithRecovery() Option {
	return func(c *config) {
		c.recovery = true
	}
}

// WithAuth authenticates every call with fn.
func WithAuth(fn auth.AuthFunc) Option {
	return func(c *config) {
		c.middlewares.Add("auth", orderAuth, interceptors.AuthUnary(fn), interceptors.AuthStream(fn))
	}
}

// WithRateLimit limits calls per key. A nil cfg.Key buckets by caller, then
// by method. Method groups whose policy carries a RateLimit rule get their
// own buckets instead. Idle buckets are dropped by the cache sweeper.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(c *config) {
		if cfg.Key == nil {
			cfg.Key = interceptors.CallerKey
		}
		c.rateLimit = &cfg
	}
}

// WithPolicies replaces the method groups used for per-group rate limits.
// The default is rpc.Policies(nil).
func WithPolicies(r *policy.Resolver) Option {
	return func(c *config) {
		c.policies = r
	}
}

// WithOpenTelemetry opens a span per RPC and per cached load.
func WithOpenTelemetry(cfg tracing.TracingConfig) Option {
	return func(c *config) {
		c.tracing = &cfg
		c.middlewares.Add("tracing", orderTracing, tracing.UnaryServerInterceptor(c.tracing), tracing.StreamServerInterceptor(c.tracing))
	}
}

// WithLogger sets the logger for lifecycle events, breaker transitions and
// recovered panics. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics registers the server's collectors on reg. A nil reg uses a
// private registry.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		c.registry = reg
	}
}

// WithCache bounds the in-process LRU to maxSize entries.
func WithCache(maxSize int) Option {
	return func(c *config) {
		c.cacheSize = maxSize
	}
}

// WithCacheTTL sets the ttl Load uses when called with a non-positive one.
func WithCacheTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.cacheTTL = d
		}
	}
}

// WithCacheBackend replaces the in-process LRU with s, for example a
// ristretto-backed cache.L1.
func WithCacheBackend(s cache.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithRedis adds a shared Redis tier behind the in-process cache.
func WithRedis(cfg cache.L2Config) Option {
	return func(c *config) {
		c.redis = &cfg
	}
}

// WithSweepInterval sets how often expired cache entries are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		c.sweepInterval = d
	}
}

// WithDiscordBreaker configures the breaker guarding Discord REST calls. The
// name is always Discord.
func WithDiscordBreaker(cfg breaker.Config) Option {
	return func(c *config) {
		cfg.Name = Discord
		c.discord = cfg
	}
}

// WithDatabaseBreaker configures the breaker guarding database calls. The
// name is always Database.
func WithDatabaseBreaker(cfg breaker.Config) Option {
	return func(c *config) {
		cfg.Name = Database
		c.database = cfg
	}
}

// WithDiscord enables the Discord REST client behind the discord breaker.
func WithDiscord(cfg discord.Config) Option {
	return func(c *config) {
		c.discordClient = &cfg
	}
}

// WithLedger sets the economy parameters.
func WithLedger(cfg ledger.Config) Option {
	return func(c *config) {
		c.ledger = cfg
	}
}
