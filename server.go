package rawrguild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/coalesce"
	"github.com/Keksclan/rawrguild/discord"
	"github.com/Keksclan/rawrguild/interceptors"
	"github.com/Keksclan/rawrguild/ledger"
	"github.com/Keksclan/rawrguild/logging"
	"github.com/Keksclan/rawrguild/metrics"
	"github.com/Keksclan/rawrguild/ratelimit"
	"github.com/Keksclan/rawrguild/rpc"
	"github.com/Keksclan/rawrguild/tracing"
	"google.golang.org/grpc"
)

// Names of the protected dependencies. Load's dep argument must be one of
// them.
const (
	Discord  = "discord"
	Database = "database"
)

// Server composes the resilience layer: one response cache, one breaker per
// external dependency, a request coalescer in front of both, and the guild
// economy ledger. It wraps a [grpc.Server] whose interceptor chain is built
// from the functional [Option] values passed to [NewServer].
//
// After construction the underlying gRPC server is available through
// [Server.GRPC]; [Server.RegisterServices] installs the economy and health
// services:
//
//	srv, err := rawrguild.NewServer(rawrguild.WithRecovery())
//	if err != nil { ... }
//	srv.RegisterServices()
type Server struct {
	grpcServer *grpc.Server

	store    cache.Store
	l1       *cache.L1
	l2       *cache.L2
	sweeper  *cache.Sweeper
	breakers *breaker.Set
	flights  *coalesce.Group[[]byte]
	ledger   *ledger.Ledger
	discord  *discord.Client
	ttl      time.Duration

	metrics *metrics.Recorder
	tracing *tracing.TracingConfig
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewServer creates a new [Server] by applying the supplied functional
// [Option] values. Middleware execution order is determined by fixed priority
// levels, not by the order options are passed.
//
// Example:
//
//	srv, err := rawrguild.NewServer(
//		rawrguild.WithRecovery(),
//		rawrguild.WithAuth(auth.StaticTokens(tokens)),
//		rawrguild.WithRateLimit(ratelimit.Config{Window: time.Minute, MaxRequests: 120}),
//		rawrguild.WithRedis(cache.L2Config{Addr: "localhost:6379"}),
//	)
func NewServer(opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}
	if cfg.store == nil && cfg.cacheSize <= 0 {
		return nil, fmt.Errorf("rawrguild: cache size must be positive, got %d", cfg.cacheSize)
	}
	if cfg.redis != nil && cfg.redis.Addr == "" {
		return nil, errors.New("rawrguild: redis address is empty")
	}

	l, err := ledger.New(cfg.ledger)
	if err != nil {
		return nil, fmt.Errorf("rawrguild: %w", err)
	}

	s := &Server{
		flights: coalesce.New[[]byte](),
		ttl:     cfg.cacheTTL,
		ledger:  l,
		tracing: cfg.tracing,
		logger:  cfg.logger,
	}

	near := cfg.store
	if near == nil {
		near = cache.NewMemory(cfg.cacheSize)
	}
	if l1, ok := near.(*cache.L1); ok {
		s.l1 = l1
	}
	s.store = near
	if cfg.redis != nil {
		s.l2 = cache.NewL2(*cfg.redis)
		s.store = cache.NewTiered(near, s.l2, cache.DefaultPromoteTTL)
	}

	s.breakers = breaker.NewSet(
		breaker.New(s.breakerConfig(cfg.discord, discord.IsUpstreamFailure)),
		breaker.New(s.breakerConfig(cfg.database, nil)),
	)

	if cfg.discordClient != nil {
		s.discord = discord.New(*cfg.discordClient)
	}

	if cfg.policies == nil {
		cfg.policies = rpc.Policies(nil)
	}

	var targets cache.Cleaners
	if c, ok := s.store.(cache.Cleaner); ok {
		targets = append(targets, c)
	}
	if cfg.rateLimit != nil {
		limiter := ratelimit.NewGrouped(*cfg.rateLimit, cfg.policies)
		targets = append(targets, limiter)
		cfg.middlewares.Add("ratelimit", orderRateLimit, interceptors.RateLimitUnary(limiter), interceptors.RateLimitStream(limiter))
	}
	s.sweeper = cache.NewSweeper(targets, cache.SweeperConfig{
		Interval: cfg.sweepInterval,
		OnSweep: func(removed int) {
			if removed > 0 {
				s.logger.Debug("cache sweep", slog.Int("removed", removed))
			}
		},
	})

	src := metrics.Sources{
		Breakers:  s.breakers.Stats,
		InFlight:  s.flights.InFlight,
		Producers: s.flights.Producers,
		Ledger:    s.ledger.Stats,
	}
	if _, ok := cache.StatsOf(s.store); ok {
		src.Cache = func() cache.Stats {
			st, _ := cache.StatsOf(s.store)
			return st
		}
	}
	if cfg.registry != nil {
		s.metrics = metrics.NewRecorder(cfg.registry, src)
	}

	if cfg.recovery {
		cfg.middlewares.Add("recovery", orderRecovery, interceptors.RecoveryUnary(s.logger), interceptors.RecoveryStream(s.logger))
		cfg.middlewares.Add("request_id", orderRequestID, interceptors.RequestIDUnary(), interceptors.RequestIDStream())
	}
	cfg.middlewares.Add("observe", orderObserve, interceptors.ObserveUnary(s.logger, s.metrics), nil)

	s.logger.Debug("middleware chain", slog.Any("order", cfg.middlewares.Names()))
	s.grpcServer = grpc.NewServer(cfg.middlewares.ServerOptions()...)

	return s, nil
}

func (s *Server) breakerConfig(cfg breaker.Config, isFailure func(error) bool) breaker.Config {
	if cfg.IsFailure == nil {
		cfg.IsFailure = isFailure
	}
	next := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to breaker.State) {
		level := slog.LevelInfo
		if to == breaker.Open {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		if next != nil {
			next(name, from, to)
		}
	}
	return cfg
}

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Cache returns the response cache. With WithRedis it is the tiered store.
func (s *Server) Cache() cache.Store {
	return s.store
}

// Ledger returns the guild economy.
func (s *Server) Ledger() *ledger.Ledger {
	return s.ledger
}

// Breaker returns the breaker guarding dep.
func (s *Server) Breaker(dep string) (*breaker.Breaker, bool) {
	return s.breakers.Get(dep)
}

// Discord returns the REST client, or nil when WithDiscord was not given.
func (s *Server) Discord() *discord.Client {
	return s.discord
}

// RegisterServices registers rawr.Economy and rawr.Health on the underlying
// gRPC server.
func (s *Server) RegisterServices() {
	rpc.RegisterEconomy(s.grpcServer, rpc.NewEconomy(s.ledger))
	rpc.RegisterHealth(s.grpcServer, rpc.HealthFunc(func(context.Context) (*rpc.HealthResponse, error) {
		return s.Health().Response(), nil
	}))
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics. It
// answers 503 when WithMetrics was not given.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Start launches the background cache sweeper. It is stopped by Stop or when
// ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.sweeper.Start(ctx)
	s.logger.Info("server started")
}

// Stop stops the sweeper and gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.sweeper.Stop()
	s.grpcServer.GracefulStop()
	s.logger.Info("server stopped")
}

// Close releases the cache backends. It is safe to call more than once.
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.sweeper != nil {
			s.sweeper.Stop()
		}
		if s.l1 != nil {
			s.l1.Close()
		}
		if s.l2 != nil {
			if err := s.l2.Close(); err != nil {
				errs = append(errs, fmt.Errorf("rawrguild: close redis: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
