// Package config loads the application configuration: package defaults,
// overlaid by an optional JSON file, overlaid by environment variables.
// Validation failures are fatal at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trading-decision-bot/internal/api"
	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/engine"
	"trading-decision-bot/internal/feegate"
	"trading-decision-bot/internal/gateway"
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
	"trading-decision-bot/internal/storage"
)

// Config aggregates every section
type Config struct {
	Symbols   []string            `json:"symbols"`
	Regime    regime.Config       `json:"regime"`
	Sentiment sentiment.Config    `json:"sentiment"`
	Reversal  reversal.Config     `json:"reversal"`
	Risk      risk.Config         `json:"risk"`
	Decision  decision.Config     `json:"decision"`
	FeeGate   feegate.Config      `json:"fee_gate"`
	Engine    engine.Config       `json:"engine"`
	Gateway   gateway.PaperConfig `json:"gateway"`
	Server    api.Config          `json:"server"`
	Postgres  PostgresConfig      `json:"postgres"`
	Redis     RedisConfig         `json:"redis"`
	Logging   LoggingConfig       `json:"logging"`
}

// PostgresConfig adds an enable switch to the connection settings; the
// engine falls back to the in-memory trade store when disabled.
type PostgresConfig struct {
	Enabled bool `json:"enabled"`
	storage.PostgresConfig
}

// RedisConfig adds an enable switch to the connection settings
type RedisConfig struct {
	Enabled bool `json:"enabled"`
	storage.RedisConfig
}

// LoggingConfig controls zerolog output
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // false uses the console writer
}

// Default returns the full default configuration
func Default() *Config {
	return &Config{
		Symbols:   []string{"BTCUSDT"},
		Regime:    regime.DefaultConfig(),
		Sentiment: sentiment.DefaultConfig(),
		Reversal:  reversal.DefaultConfig(),
		Risk:      risk.DefaultConfig(),
		Decision:  decision.DefaultConfig(),
		FeeGate:   feegate.DefaultConfig(),
		Engine:    engine.DefaultConfig(),
		Gateway:   gateway.DefaultPaperConfig(),
		Server:    api.DefaultConfig(),
		Postgres: PostgresConfig{
			PostgresConfig: storage.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "trading",
				Database: "trading",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			RedisConfig: storage.RedisConfig{Addr: "localhost:6379"},
		},
		Logging: LoggingConfig{Level: "info", JSONFormat: true},
	}
}

// Load builds the configuration from defaults, the JSON file at path (if it
// exists), and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults + env only
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section; any violation is fatal at startup
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	sections := []struct {
		name string
		err  error
	}{
		{"regime", c.Regime.Validate()},
		{"sentiment", c.Sentiment.Validate()},
		{"reversal", c.Reversal.Validate()},
		{"risk", c.Risk.Validate()},
		{"decision", c.Decision.Validate()},
		{"fee_gate", c.FeeGate.Validate()},
		{"engine", c.Engine.Validate()},
		{"server", c.Server.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			return fmt.Errorf("config section %s: %w", s.name, s.err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = strings.Split(v, ",")
	}

	cfg.FeeGate.MakerFeeRate = envFloat("FEE_MAKER_RATE", cfg.FeeGate.MakerFeeRate)
	cfg.FeeGate.TakerFeeRate = envFloat("FEE_TAKER_RATE", cfg.FeeGate.TakerFeeRate)
	cfg.FeeGate.MinProfitMultiplier = envFloat("FEE_MIN_PROFIT_MULTIPLIER", cfg.FeeGate.MinProfitMultiplier)
	cfg.FeeGate.MaxTradesPerHour = envInt("FEE_MAX_TRADES_PER_HOUR", cfg.FeeGate.MaxTradesPerHour)
	cfg.FeeGate.MaxTradesPerDay = envInt("FEE_MAX_TRADES_PER_DAY", cfg.FeeGate.MaxTradesPerDay)
	cfg.FeeGate.MinHoldMinutes = envInt("FEE_MIN_HOLD_MINUTES", cfg.FeeGate.MinHoldMinutes)

	cfg.Engine.TradeAmount = envFloat("ENGINE_TRADE_AMOUNT", cfg.Engine.TradeAmount)
	cfg.Engine.Lookback = envInt("ENGINE_LOOKBACK", cfg.Engine.Lookback)
	cfg.Engine.SignalTimeout = envDuration("ENGINE_SIGNAL_TIMEOUT", cfg.Engine.SignalTimeout)

	cfg.Server.Port = envInt("WEB_PORT", cfg.Server.Port)
	cfg.Server.Host = env("WEB_HOST", cfg.Server.Host)
	if v := os.Getenv("SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	cfg.Server.ProductionMode = env("PRODUCTION_MODE", "") == "true"

	cfg.Postgres.Enabled = envBool("POSTGRES_ENABLED", cfg.Postgres.Enabled)
	cfg.Postgres.Host = env("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envInt("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = env("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = env("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = env("POSTGRES_DB", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = env("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Redis.Enabled = envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = env("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Logging.Level = env("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSONFormat = envBool("LOG_JSON", cfg.Logging.JSONFormat)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
