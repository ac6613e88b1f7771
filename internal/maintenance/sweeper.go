// Package maintenance runs the periodic tier migration and retention
// sweeps for single-process deployments. Deployments with an external
// scheduler can skip the sweeper and drive the same operations through
// the maintenance HTTP endpoints.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/podiumlabs/strata/pkg/logger"
	"github.com/podiumlabs/strata/pkg/metrics"
)

// Default sweeper configuration constants.
const (
	defaultInterval = time.Hour
)

// Engine is the orchestrator surface the sweeper drives. Both operations
// are idempotent and safe next to live traffic, so a sweep may overlap a
// manual run without coordination.
type Engine interface {
	Games(ctx context.Context) ([]string, error)
	MigrateToHistorical(ctx context.Context, gameID string) error
	EnforceRetention(ctx context.Context, gameID string) error
}

// Sweeper periodically walks every known game and runs migration plus
// retention enforcement.
type Sweeper struct {
	engine   Engine
	interval time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	log logger.Logger
}

// New creates a sweeper with configuration options.
func New(engine Engine, opts ...Option) *Sweeper {
	s := &Sweeper{
		engine:   engine,
		interval: defaultInterval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.Get().Named("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the sweep loop until ctx is canceled or Shutdown is called.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error(ctx, "maintenance sweep failed", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the sweeper.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	close(s.shutdown)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.log.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Sweep runs one migration + retention pass over every known game. A
// failing game is logged and skipped; the pass continues so one broken
// game cannot starve the rest.
func (s *Sweeper) Sweep(ctx context.Context) error {
	games, err := s.engine.Games(ctx)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}
	metrics.UpdateTrackedGames(len(games))

	for _, game := range games {
		if err := s.engine.MigrateToHistorical(ctx, game); err != nil {
			s.log.Error(ctx, "migration failed",
				logger.String("game_id", game),
				logger.Error(err),
			)
		}
		if err := s.engine.EnforceRetention(ctx, game); err != nil {
			s.log.Error(ctx, "retention enforcement failed",
				logger.String("game_id", game),
				logger.Error(err),
			)
		}
	}

	s.log.Debug(ctx, "maintenance sweep complete", logger.Int("games", len(games)))
	return nil
}
