// Package config loads the rawrguild runtime configuration. Values are layered
// as defaults, then YAML files, then RAWRGUILD_ environment variables, with
// later layers winning.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment prefix read by NewLoader callers by default.
const EnvPrefix = "RAWRGUILD"

// Loader hydrates Config honouring env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a loader. An empty envPrefix disables env overrides and
// empty file paths are skipped.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{envPrefix: envPrefix, files: files}
}

// Load assembles and validates the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		prefix := l.envPrefix + "_"
		transform := func(s string) string {
			// Double underscores nest: RAWRGUILD_CACHE__MAX_SIZE -> cache.max_size.
			key := strings.TrimPrefix(s, prefix)
			key = strings.ReplaceAll(key, "__", ".")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts a Config into a map for the confmap provider.
func structToMap(cfg Config) map[string]any {
	breakerMap := func(b BreakerConfig) map[string]any {
		return map[string]any{
			"failure_threshold": b.FailureThreshold,
			"reset_timeout":     b.ResetTimeout,
		}
	}
	return map[string]any{
		"server": map[string]any{
			"grpc_address":    cfg.Server.GRPCAddress,
			"metrics_address": cfg.Server.MetricsAddress,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"cache": map[string]any{
			"backend":        cfg.Cache.Backend,
			"max_size":       cfg.Cache.MaxSize,
			"max_cost":       cfg.Cache.MaxCost,
			"ttl":            cfg.Cache.TTL,
			"sweep_interval": cfg.Cache.SweepInterval,
			"redis": map[string]any{
				"address":  cfg.Cache.Redis.Address,
				"password": cfg.Cache.Redis.Password,
				"db":       cfg.Cache.Redis.DB,
				"prefix":   cfg.Cache.Redis.Prefix,
			},
		},
		"breakers": map[string]any{
			"discord":  breakerMap(cfg.Breakers.Discord),
			"database": breakerMap(cfg.Breakers.Database),
		},
		"ledger": map[string]any{
			"base_price":    cfg.Ledger.BasePrice,
			"slope":         cfg.Ledger.Slope,
			"daily_reward":  cfg.Ledger.DailyReward,
			"weekly_reward": cfg.Ledger.WeeklyReward,
			"daily_window":  cfg.Ledger.DailyWindow,
			"weekly_window": cfg.Ledger.WeeklyWindow,
		},
		"discord": map[string]any{
			"base_url":            cfg.Discord.BaseURL,
			"token":               cfg.Discord.Token,
			"timeout":             cfg.Discord.Timeout,
			"requests_per_second": cfg.Discord.RequestsPerSecond,
			"burst":               cfg.Discord.Burst,
		},
		"ratelimit": map[string]any{
			"enabled":            cfg.RateLimit.Enabled,
			"window":             cfg.RateLimit.Window,
			"max_requests":       cfg.RateLimit.MaxRequests,
			"write_max_requests": cfg.RateLimit.WriteMaxRequests,
		},
		"tracing": map[string]any{
			"enabled": cfg.Tracing.Enabled,
		},
	}
}
