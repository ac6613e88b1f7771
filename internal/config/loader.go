package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if STRATA_CONFIG is set
//  3. env (prefix STRATA_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("STRATA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: STRATA_ADDR, STRATA_REDIS_ADDR, ...
	// Map env keys like STRATA_REDIS_ADDR -> redis_addr (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("STRATA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "strata_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.RedisAddr) == "":
		return fmt.Errorf("%w: redis_addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.PostgresDSN) == "":
		return fmt.Errorf("%w: postgres_dsn must not be empty", ErrInvalidConfig)
	case c.MigrationBatchSize <= 0:
		return fmt.Errorf("%w: migration_batch_size must be positive", ErrInvalidConfig)
	case c.SweepIntervalMinutes <= 0:
		return fmt.Errorf("%w: sweep_interval_minutes must be positive", ErrInvalidConfig)
	}
	for tier, days := range c.RetentionTiers {
		if days <= 0 {
			return fmt.Errorf("%w: retention tier %q must have a positive day count", ErrInvalidConfig, tier)
		}
	}
	return nil
}
