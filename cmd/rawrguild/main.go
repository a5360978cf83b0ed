// Command rawrguild runs the guild economy and resilience layer as a gRPC
// server with a Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	rg "github.com/Keksclan/rawrguild"
	"github.com/Keksclan/rawrguild/auth"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/config"
	"github.com/Keksclan/rawrguild/discord"
	"github.com/Keksclan/rawrguild/logging"
	"github.com/Keksclan/rawrguild/policy"
	"github.com/Keksclan/rawrguild/ratelimit"
	"github.com/Keksclan/rawrguild/rpc"
	"github.com/Keksclan/rawrguild/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rawrguild",
		Short:        "rawrguild - guild economy backend for the Discord bot",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rawrguild %s\n", version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC and metrics listeners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.NewLoader(config.EnvPrefix, configPath).Load(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, out io.Writer) error {
	logger, err := logging.NewWithWriter(cfg.Logging, out)
	if err != nil {
		return err
	}

	opts, cleanup, err := serverOptions(cfg, logger, out)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := rg.NewServer(opts...)
	if err != nil {
		return err
	}
	defer srv.Close()
	srv.RegisterServices()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddress, err)
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.MetricsHandler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			h := srv.Health()
			if h.Status != rg.StatusHealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_, _ = io.WriteString(w, h.Status+"\n")
		})
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	srv.Start(gctx)

	g.Go(func() error {
		logger.Info("grpc listening", slog.String("address", lis.Addr().String()))
		if err := srv.GRPC().Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("address", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.Stop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

// serverOptions maps the file configuration onto server options. cleanup
// flushes the trace exporter, if any.
func serverOptions(cfg config.Config, logger *slog.Logger, out io.Writer) ([]rg.Option, func(), error) {
	ledgerCfg, err := cfg.Ledger.Build()
	if err != nil {
		return nil, nil, err
	}

	opts := []rg.Option{
		rg.WithRecovery(),
		rg.WithLogger(logger),
		rg.WithMetrics(prometheus.NewRegistry()),
		rg.WithLedger(ledgerCfg),
		rg.WithDiscordBreaker(cfg.Breakers.Discord.Build(rg.Discord)),
		rg.WithDatabaseBreaker(cfg.Breakers.Database.Build(rg.Database)),
		rg.WithCacheTTL(cfg.Cache.TTL),
		rg.WithSweepInterval(cfg.Cache.SweepInterval),
	}

	switch strings.ToLower(cfg.Cache.Backend) {
	case "ristretto":
		l1, err := cache.NewL1(cfg.Cache.MaxCost)
		if err != nil {
			return nil, nil, fmt.Errorf("ristretto cache: %w", err)
		}
		opts = append(opts, rg.WithCacheBackend(l1))
	default:
		opts = append(opts, rg.WithCache(cfg.Cache.MaxSize))
	}

	if r := cfg.Cache.Redis; r.Address != "" {
		opts = append(opts, rg.WithRedis(cache.L2Config{
			Addr:     r.Address,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		}))
	}

	if d := cfg.Discord; d.Token != "" {
		opts = append(opts, rg.WithDiscord(discord.Config{
			BaseURL:           d.BaseURL,
			Token:             d.Token,
			Timeout:           d.Timeout,
			RequestsPerSecond: d.RequestsPerSecond,
			Burst:             d.Burst,
		}))
	}

	policies := methodPolicies(cfg.RateLimit)
	opts = append(opts, rg.WithPolicies(policies))

	if len(cfg.Auth.Tokens) > 0 {
		opts = append(opts, rg.WithAuth(auth.RequireScopes(auth.StaticTokens(cfg.Auth.Callers()), policies.Scope)))
	}

	if cfg.RateLimit.Enabled {
		opts = append(opts, rg.WithRateLimit(ratelimit.Config{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
		}))
	}

	cleanup := func() {}
	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		cleanup = func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("trace provider shutdown", slog.Any("error", err))
			}
		}
		opts = append(opts, rg.WithOpenTelemetry(tracing.TracingConfig{TracerProvider: tp}))
	}

	return opts, cleanup, nil
}

// methodPolicies groups the economy methods. Writes get their own bucket when
// write_max_requests is set.
func methodPolicies(rl config.RateLimitConfig) *policy.Resolver {
	if rl.WriteMaxRequests <= 0 {
		return rpc.Policies(nil)
	}
	return rpc.Policies(&policy.RateLimitRule{
		MaxRequests: rl.WriteMaxRequests,
		Window:      rl.Window,
	})
}
