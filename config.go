package rawrguild

import (
	"log/slog"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/discord"
	"github.com/Keksclan/rawrguild/internal/core"
	"github.com/Keksclan/rawrguild/ledger"
	"github.com/Keksclan/rawrguild/policy"
	"github.com/Keksclan/rawrguild/ratelimit"
	"github.com/Keksclan/rawrguild/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	middlewares core.MiddlewareBuilder

	cacheSize     int
	cacheTTL      time.Duration
	store         cache.Store
	redis         *cache.L2Config
	sweepInterval time.Duration

	discord  breaker.Config
	database breaker.Config
	ledger   ledger.Config

	discordClient *discord.Config

	recovery  bool
	rateLimit *ratelimit.Config
	policies  *policy.Resolver
	tracing   *tracing.TracingConfig
	logger    *slog.Logger
	registry  *prometheus.Registry
}

func defaultConfig() config {
	return config{
		cacheSize:     cache.DefaultMaxSize,
		cacheTTL:      DefaultLoadTTL,
		sweepInterval: cache.DefaultSweepInterval,
		discord: breaker.Config{
			Name:             Discord,
			FailureThreshold: 3,
			ResetTimeout:     15 * time.Second,
		},
		database: breaker.Config{
			Name:             Database,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		ledger: ledger.DefaultConfig(),
	}
}
