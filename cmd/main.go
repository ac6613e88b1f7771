package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/podiumlabs/strata/internal/adapters/http/api"
	"github.com/podiumlabs/strata/internal/adapters/store/cold"
	"github.com/podiumlabs/strata/internal/adapters/store/hot"
	engine "github.com/podiumlabs/strata/internal/app"
	"github.com/podiumlabs/strata/internal/config"
	"github.com/podiumlabs/strata/internal/domain/retention"
	"github.com/podiumlabs/strata/internal/maintenance"
	"github.com/podiumlabs/strata/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	startupTimeout    = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Hot tier client
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	hotStore := hot.New(rdb,
		hot.WithKeyPrefix(cfg.KeyPrefix),
		hot.WithLogger(log.Named("hot")),
	)

	// Cold tier pool and schema
	db := cold.OpenPostgres(cfg.PostgresDSN)
	defer func() { _ = db.Close() }()

	coldStore := cold.New(db, cold.WithLogger(log.Named("cold")))

	initCtx, cancelInit := context.WithTimeout(ctx, startupTimeout)
	defer cancelInit()
	if err := coldStore.Init(initCtx); err != nil {
		log.Error(ctx, "cold tier schema init failed", logger.Error(err))
		return
	}

	// Tiering orchestrator
	policy := retention.New(
		retention.WithTiersFromConfig(cfg.RetentionTiers),
		retention.WithDefaultTier(cfg.DefaultTier),
		retention.WithGameTiers(cfg.GameTiers),
	)
	eng := engine.New(hotStore, coldStore,
		engine.WithRetentionPolicy(policy),
		engine.WithMigrationBatchSize(cfg.MigrationBatchSize),
		engine.WithLogger(log.Named("engine")),
	)

	// Background migration + retention sweeps
	sweeper := maintenance.New(eng,
		maintenance.WithInterval(time.Duration(cfg.SweepIntervalMinutes)*time.Minute),
		maintenance.WithLogger(log.Named("maintenance")),
	)
	go sweeper.Run(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(eng).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := sweeper.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "sweeper shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
