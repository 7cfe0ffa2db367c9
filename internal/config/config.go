package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config is read from the environment. SHUFFLE_SEED 0 seeds the shuffle from
// the clock; DB_DRIVER=memory keeps all state in process.
type Config struct {
	DBDriver             string `env:"DB_DRIVER"              envDefault:"sqlite3"`
	DatabaseURL          string `env:"DATABASE_URL"           envDefault:"op_tournaments.db?_journal_mode=WAL"`
	MigrationsPath       string `env:"MIGRATIONS_PATH"        envDefault:"file://migrations"`
	HTTPAddr             string `env:"HTTP_ADDR"              envDefault:":8080"`
	SweepIntervalSeconds int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"12"`
	SweepConcurrency     int    `env:"SWEEP_CONCURRENCY"      envDefault:"4"`
	WalkoverGraceSeconds int    `env:"WALKOVER_GRACE_SECONDS" envDefault:"0"`
	MaxWriteRetries      int    `env:"MAX_WRITE_RETRIES"      envDefault:"5"`
	ShuffleSeed          int    `env:"SHUFFLE_SEED"           envDefault:"0"`
	LogLevel             string `env:"LOG_LEVEL"              envDefault:"info"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive, got %d", c.SweepIntervalSeconds)
	}
	if c.SweepConcurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be positive, got %d", c.SweepConcurrency)
	}
	if c.WalkoverGraceSeconds < 0 {
		return fmt.Errorf("WALKOVER_GRACE_SECONDS must not be negative, got %d", c.WalkoverGraceSeconds)
	}
	return nil
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) WalkoverGrace() time.Duration {
	return time.Duration(c.WalkoverGraceSeconds) * time.Second
}

// Seed returns the shuffle seed, falling back to the current time.
func (c *Config) Seed() int64 {
	if c.ShuffleSeed != 0 {
		return int64(c.ShuffleSeed)
	}
	return time.Now().UnixNano()
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
