package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/podiumlabs/strata/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.KeyPrefix, convey.ShouldEqual, "strata")
				convey.So(cfg.MigrationBatchSize, convey.ShouldEqual, 1000)
				convey.So(cfg.SweepIntervalMinutes, convey.ShouldEqual, 60)
				convey.So(cfg.DefaultTier, convey.ShouldEqual, "free")
				convey.So(cfg.RetentionTiers["free"], convey.ShouldEqual, 30)
				convey.So(cfg.RetentionTiers["pro"], convey.ShouldEqual, 90)
				convey.So(cfg.RetentionTiers["studio"], convey.ShouldEqual, 365)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("STRATA_ADDR", ":9090")
			_ = os.Setenv("STRATA_REDIS_ADDR", "redis.internal:6380")
			_ = os.Setenv("STRATA_KEY_PREFIX", "lb")
			_ = os.Setenv("STRATA_MIGRATION_BATCH_SIZE", "500")
			_ = os.Setenv("STRATA_SWEEP_INTERVAL_MINUTES", "15")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis.internal:6380")
				convey.So(cfg.KeyPrefix, convey.ShouldEqual, "lb")
				convey.So(cfg.MigrationBatchSize, convey.ShouldEqual, 500)
				convey.So(cfg.SweepIntervalMinutes, convey.ShouldEqual, 15)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":7070"
redis_addr: "redis.file:6379"
postgres_dsn: "postgres://app@db:5432/scores?sslmode=disable"
migration_batch_size: 250
retention_tiers:
  free: 7
  pro: 60
game_tiers:
  game-1: pro
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STRATA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis.file:6379")
				convey.So(cfg.PostgresDSN, convey.ShouldEqual, "postgres://app@db:5432/scores?sslmode=disable")
				convey.So(cfg.MigrationBatchSize, convey.ShouldEqual, 250)
				convey.So(cfg.RetentionTiers["free"], convey.ShouldEqual, 7)
				convey.So(cfg.RetentionTiers["pro"], convey.ShouldEqual, 60)
				convey.So(cfg.GameTiers["game-1"], convey.ShouldEqual, "pro")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":7070"
redis_addr: "redis.file:6379"
migration_batch_size: 250
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STRATA_CONFIG", tmpFile)
			_ = os.Setenv("STRATA_ADDR", ":9090") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")               // Overridden by env
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis.file:6379") // From file
				convey.So(cfg.MigrationBatchSize, convey.ShouldEqual, 250)     // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STRATA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("STRATA_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("STRATA_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-positive batch size", func() {
			_ = os.Setenv("STRATA_MIGRATION_BATCH_SIZE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "migration_batch_size")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a zero retention tier", func() {
			yamlContent := `
retention_tiers:
  free: 0
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STRATA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "retention tier")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
addr: ":7070"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("STRATA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")             // From file
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379") // From defaults
				convey.So(cfg.MigrationBatchSize, convey.ShouldEqual, 1000)  // From defaults
				convey.So(cfg.DefaultTier, convey.ShouldEqual, "free")       // From defaults
			})
		})
	})
}

// clearConfigEnvVars removes all STRATA_ prefixed environment variables
// that could affect config loading.
func clearConfigEnvVars() {
	envVars := []string{
		"STRATA_CONFIG",
		"STRATA_LOG_LEVEL",
		"STRATA_ADDR",
		"STRATA_REDIS_ADDR",
		"STRATA_REDIS_PASSWORD",
		"STRATA_REDIS_DB",
		"STRATA_POSTGRES_DSN",
		"STRATA_KEY_PREFIX",
		"STRATA_MIGRATION_BATCH_SIZE",
		"STRATA_SWEEP_INTERVAL_MINUTES",
		"STRATA_DEFAULT_TIER",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

// createTempConfigFile creates a temporary YAML config file with the given content.
func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "strata-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
