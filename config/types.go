package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/contextx"
	"github.com/Keksclan/rawrguild/ledger"
	"github.com/shopspring/decimal"
)

// Config is the full runtime configuration of the rawrguild server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
	Breakers  BreakersConfig  `koanf:"breakers"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Discord   DiscordConfig   `koanf:"discord"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	GRPCAddress    string `koanf:"grpc_address"`
	MetricsAddress string `koanf:"metrics_address"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is "memory" (exact LRU) or "ristretto".
	Backend       string        `koanf:"backend"`
	MaxSize       int           `koanf:"max_size"`
	MaxCost       int64         `koanf:"max_cost"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Redis         RedisConfig   `koanf:"redis"`
}

// RedisConfig enables the shared L2 tier when Address is set.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// BreakersConfig configures the two circuit breakers.
type BreakersConfig struct {
	Discord  BreakerConfig `koanf:"discord"`
	Database BreakerConfig `koanf:"database"`
}

// BreakerConfig mirrors breaker.Config for file and env input.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// LedgerConfig holds the economy parameters. Prices are decimal strings.
type LedgerConfig struct {
	BasePrice    string        `koanf:"base_price"`
	Slope        string        `koanf:"slope"`
	DailyReward  int64         `koanf:"daily_reward"`
	WeeklyReward int64         `koanf:"weekly_reward"`
	DailyWindow  time.Duration `koanf:"daily_window"`
	WeeklyWindow time.Duration `koanf:"weekly_window"`
}

// DiscordConfig configures the Discord REST client.
type DiscordConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Token             string        `koanf:"token"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// RateLimitConfig configures the per-caller gRPC limiter. WriteMaxRequests
// gives economy writes their own tighter bucket per window; zero shares the
// default bucket.
type RateLimitConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Window           time.Duration `koanf:"window"`
	MaxRequests      int           `koanf:"max_requests"`
	WriteMaxRequests int           `koanf:"write_max_requests"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled bool `koanf:"enabled"`
}

// AuthConfig lists the bearer tokens accepted by the gRPC server. An empty
// list disables authentication.
type AuthConfig struct {
	Tokens []TokenConfig `koanf:"tokens"`
}

// TokenConfig binds one bearer token to a caller.
type TokenConfig struct {
	Token  string   `koanf:"token"`
	Caller string   `koanf:"caller"`
	Scopes []string `koanf:"scopes"`
}

// Callers indexes the configured tokens for auth.StaticTokens.
func (a AuthConfig) Callers() map[string]contextx.Caller {
	out := make(map[string]contextx.Caller, len(a.Tokens))
	for _, t := range a.Tokens {
		out[t.Token] = contextx.Caller{ID: t.Caller, Scopes: t.Scopes}
	}
	return out
}

// DefaultConfig returns the configuration used when no file or env override
// is present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:    ":50051",
			MetricsAddress: ":9090",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Cache: CacheConfig{
			Backend:       "memory",
			MaxSize:       1000,
			MaxCost:       1 << 26,
			TTL:           30 * time.Second,
			SweepInterval: 5 * time.Minute,
			Redis:         RedisConfig{Prefix: "rawrguild:"},
		},
		Breakers: BreakersConfig{
			Discord:  BreakerConfig{FailureThreshold: 3, ResetTimeout: 15 * time.Second},
			Database: BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
		},
		Ledger: LedgerConfig{
			BasePrice:    "10",
			Slope:        "0.0001",
			DailyReward:  100,
			WeeklyReward: 1000,
			DailyWindow:  24 * time.Hour,
			WeeklyWindow: 7 * 24 * time.Hour,
		},
		Discord: DiscordConfig{
			BaseURL:           "https://discord.com/api/v10",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 40,
			Burst:             10,
		},
		RateLimit: RateLimitConfig{
			Window:           time.Minute,
			MaxRequests:      120,
			WriteMaxRequests: 30,
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.GRPCAddress) == "" {
		errs = append(errs, errors.New("server.grpc_address is required"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not json or text", c.Logging.Format))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
		if c.Cache.MaxSize <= 0 {
			errs = append(errs, errors.New("cache.max_size must be positive"))
		}
	case "ristretto":
		if c.Cache.MaxCost <= 0 {
			errs = append(errs, errors.New("cache.max_cost must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not memory or ristretto", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = append(errs, errors.New("cache.sweep_interval must be positive"))
	}

	for name, b := range map[string]BreakerConfig{"discord": c.Breakers.Discord, "database": c.Breakers.Database} {
		if b.FailureThreshold <= 0 {
			errs = append(errs, fmt.Errorf("breakers.%s.failure_threshold must be positive", name))
		}
		if b.ResetTimeout <= 0 {
			errs = append(errs, fmt.Errorf("breakers.%s.reset_timeout must be positive", name))
		}
	}

	if _, err := c.Ledger.Build(); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.DailyReward < 0 || c.Ledger.WeeklyReward < 0 {
		errs = append(errs, errors.New("ledger rewards must not be negative"))
	}
	if c.Ledger.DailyWindow <= 0 || c.Ledger.WeeklyWindow <= 0 {
		errs = append(errs, errors.New("ledger reward windows must be positive"))
	}

	if c.Discord.RequestsPerSecond < 0 || c.Discord.Burst < 0 {
		errs = append(errs, errors.New("discord pacing must not be negative"))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0) {
		errs = append(errs, errors.New("ratelimit.window and ratelimit.max_requests must be positive when enabled"))
	}
	if c.RateLimit.WriteMaxRequests < 0 {
		errs = append(errs, errors.New("ratelimit.write_max_requests must not be negative"))
	}

	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.Caller == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d] needs both token and caller", i))
		}
		if seen[t.Token] {
			errs = append(errs, fmt.Errorf("auth.tokens[%d] repeats a token", i))
		}
		seen[t.Token] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Build converts the file representation into a ledger.Config.
func (l LedgerConfig) Build() (ledger.Config, error) {
	base, err := decimal.NewFromString(l.BasePrice)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("ledger.base_price: %w", err)
	}
	slope, err := decimal.NewFromString(l.Slope)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("ledger.slope: %w", err)
	}
	if !base.IsPositive() {
		return ledger.Config{}, errors.New("ledger.base_price must be positive")
	}
	if slope.IsNegative() {
		return ledger.Config{}, errors.New("ledger.slope must not be negative")
	}
	return ledger.Config{
		BasePrice:    base,
		Slope:        slope,
		DailyReward:  l.DailyReward,
		WeeklyReward: l.WeeklyReward,
		DailyWindow:  l.DailyWindow,
		WeeklyWindow: l.WeeklyWindow,
	}, nil
}

// Build converts the file representation into a breaker.Config for the named
// dependency.
func (b BreakerConfig) Build(name string) breaker.Config {
	return breaker.Config{
		Name:             name,
		FailureThreshold: b.FailureThreshold,
		ResetTimeout:     b.ResetTimeout,
	}
}
