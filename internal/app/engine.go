// Package engine composes the hot and cold tier stores behind one surface.
// Callers only ever talk to the Engine; which tier answered a read, and how
// writes fan out, are internal decisions.
//
// Write policy is durable-first: every write lands in the cold tier before
// the hot tier is populated. A cold failure aborts with the hot tier
// untouched; a hot failure after a durable write surfaces an error while
// the cold row stays, so a failed write never loses data — it can only
// delay its appearance in ranked reads. Callers must still treat any write
// error as "uncertain state".
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podiumlabs/strata/internal/adapters/store"
	"github.com/podiumlabs/strata/internal/domain/model"
	"github.com/podiumlabs/strata/internal/domain/retention"
	"github.com/podiumlabs/strata/pkg/logger"
	"github.com/podiumlabs/strata/pkg/metrics"
)

// Engine configuration constants.
const (
	// cutoverWindow is the recency horizon inside which reads try the hot
	// tier first.
	cutoverWindow = 24 * time.Hour

	// defaultMigrationBatchSize caps entries demoted per migration run.
	defaultMigrationBatchSize = 1000
)

// Engine is the tiering orchestrator.
type Engine struct {
	hot    store.HotStore
	cold   store.ColdStore
	policy *retention.Policy

	migrationBatchSize int
	now                func() time.Time

	log logger.Logger
}

// New composes the two tier stores. The retention policy defaults to the
// built-in free tier unless overridden.
func New(hot store.HotStore, cold store.ColdStore, opts ...Option) *Engine {
	e := &Engine{
		hot:                hot,
		cold:               cold,
		policy:             retention.New(),
		migrationBatchSize: defaultMigrationBatchSize,
		now:                time.Now,
		log:                logger.Get().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SaveScore persists one entry to both tiers, cold first.
func (e *Engine) SaveScore(ctx context.Context, gameID string, entry model.ScoreEntry) error {
	entry.GameID = gameID
	entry.Normalize(e.now())
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntry, err)
	}

	if err := e.cold.SaveScore(ctx, entry); err != nil {
		return fmt.Errorf("cold tier save: %w", err)
	}
	if err := e.hot.SaveScore(ctx, entry); err != nil {
		// The durable row is in place; the hot tier self-heals on the
		// next write or migration sweep.
		return fmt.Errorf("hot tier save (entry is durable): %w", err)
	}
	metrics.RecordScoreSaved()
	return nil
}

// GetScores serves a ranked page. Reads with no start date, or a start
// date inside the cutover window, try the hot tier first and fall through
// to the cold tier on an empty result or a hot failure. Cold reads clamp
// the effective start date to the game's retention floor — a caller never
// receives data its tier is no longer entitled to.
func (e *Engine) GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error) {
	opts = opts.Normalized()
	now := e.now()

	if e.hotEligible(opts, now) {
		entries, err := e.hot.GetScores(ctx, gameID, opts)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			e.log.Warn(ctx, "hot tier read failed, falling back to cold tier",
				logger.String("game_id", gameID),
				logger.Error(err),
			)
		}
		metrics.RecordColdFallback()
	}

	floor := e.policy.Clamp(gameID, opts.StartDate, now)
	opts.StartDate = &floor
	entries, err := e.cold.GetScores(ctx, gameID, opts)
	if err != nil {
		return nil, fmt.Errorf("cold tier read: %w", err)
	}
	return entries, nil
}

// DeleteScore removes the entry from both tiers concurrently; either
// tier's failure surfaces, with no compensating action.
func (e *Engine) DeleteScore(ctx context.Context, gameID, id string) error {
	err := e.both(func(s store.Store) error {
		return s.DeleteScore(ctx, gameID, id)
	})
	if err != nil {
		return fmt.Errorf("delete score %s: %w", id, err)
	}
	metrics.RecordScoreDeleted()
	return nil
}

// BatchSaveScores persists entries to both tiers, cold first. The cold
// write is all-or-nothing; the hot write is per-entry.
func (e *Engine) BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := e.now()
	for i := range entries {
		entries[i].GameID = gameID
		entries[i].Normalize(now)
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", store.ErrInvalidEntry, entries[i].ID, err)
		}
	}

	if err := e.cold.BatchSaveScores(ctx, gameID, entries); err != nil {
		return fmt.Errorf("cold tier batch save: %w", err)
	}
	if err := e.hot.BatchSaveScores(ctx, gameID, entries); err != nil {
		return fmt.Errorf("hot tier batch save (batch is durable): %w", err)
	}
	metrics.RecordBatchSaved()
	return nil
}

// Cleanup deletes matching data from both tiers concurrently.
func (e *Engine) Cleanup(ctx context.Context, gameID string, olderThan time.Time) error {
	err := e.both(func(s store.Store) error {
		return s.Cleanup(ctx, gameID, olderThan)
	})
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// MigrateToHistorical demotes aged hot-tier entries to the cold tier:
// fetch up to the batch size older than the start of yesterday, upsert
// them cold (idempotent on re-runs), then drop them hot. Safe to run
// concurrently with live traffic; the cutoff is recomputed per run.
func (e *Engine) MigrateToHistorical(ctx context.Context, gameID string) error {
	cutoff := startOfDay(e.now()).Add(-cutoverWindow)

	entries, err := e.hot.OlderThan(ctx, gameID, cutoff, e.migrationBatchSize)
	if err != nil {
		return fmt.Errorf("collect aged entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	if err := e.cold.BatchSaveScores(ctx, gameID, entries); err != nil {
		return fmt.Errorf("demote %d entries: %w", len(entries), err)
	}
	if err := e.hot.RemoveEntries(ctx, gameID, entries); err != nil {
		return fmt.Errorf("evict %d migrated entries: %w", len(entries), err)
	}

	metrics.RecordMigratedEntries(len(entries))
	e.log.Info(ctx, "migrated aged entries to cold tier",
		logger.String("game_id", gameID),
		logger.Int("entries", len(entries)),
	)
	return nil
}

// EnforceRetention deletes everything older than the game's subscription
// tier allows, in both tiers.
func (e *Engine) EnforceRetention(ctx context.Context, gameID string) error {
	cutoff := e.policy.Cutoff(gameID, e.now())
	if err := e.Cleanup(ctx, gameID, cutoff); err != nil {
		return fmt.Errorf("enforce retention: %w", err)
	}
	metrics.RecordRetentionSweep()
	e.log.Debug(ctx, "retention enforced",
		logger.String("game_id", gameID),
		logger.Time("cutoff", cutoff),
	)
	return nil
}

// Games lists every game with durable data; the maintenance sweep feed.
func (e *Engine) Games(ctx context.Context) ([]string, error) {
	return e.cold.Games(ctx)
}

// Stats returns engine statistics for monitoring.
func (e *Engine) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"migration_batch_size": e.migrationBatchSize,
		"cutover_window":       cutoverWindow.String(),
	}
	if games, err := e.Games(ctx); err == nil {
		stats["games"] = len(games)
	}
	return stats
}

// hotEligible reports whether the query may be served by the hot tier.
func (e *Engine) hotEligible(opts model.QueryOptions, now time.Time) bool {
	return opts.StartDate == nil || opts.StartDate.After(now.Add(-cutoverWindow))
}

// both fans one operation out to the two tiers concurrently and joins
// their failures.
func (e *Engine) both(fn func(store.Store) error) error {
	errs := make(chan error, 2)
	for _, s := range []store.Store{e.hot, e.cold} {
		go func(s store.Store) { errs <- fn(s) }(s)
	}
	return errors.Join(<-errs, <-errs)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
