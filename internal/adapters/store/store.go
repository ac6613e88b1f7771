// Package store defines the tier store contracts and errors shared by the
// hot and cold adapters.
package store

import (
	"context"
	"time"

	"github.com/podiumlabs/strata/internal/domain/model"
)

// Store is the capability surface common to both tiers. The orchestrator
// composes two of these; callers never see which tier answered.
//
// Every operation may block on network I/O to the backing store and honors
// ctx for cancellation/deadlines. Deleting or querying an unknown id is a
// no-op, not an error.
type Store interface {
	// SaveScore inserts or overwrites the entry keyed by (GameID, ID).
	SaveScore(ctx context.Context, entry model.ScoreEntry) error

	// GetScores returns one ranked page for the game per the options.
	GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error)

	// DeleteScore removes a single entry.
	DeleteScore(ctx context.Context, gameID, id string) error

	// BatchSaveScores saves many entries; atomicity is adapter-defined
	// (the cold tier is all-or-nothing, the hot tier is per-entry).
	BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error

	// Cleanup removes every entry of the game older than the cutoff.
	Cleanup(ctx context.Context, gameID string, olderThan time.Time) error
}

// HotStore adds the migration feed the orchestrator drains when demoting
// aged entries to the cold tier.
type HotStore interface {
	Store

	// OlderThan returns up to limit entries with Timestamp before cutoff.
	OlderThan(ctx context.Context, gameID string, cutoff time.Time, limit int) ([]model.ScoreEntry, error)

	// RemoveEntries drops the given entries from record and rank state.
	RemoveEntries(ctx context.Context, gameID string, entries []model.ScoreEntry) error
}

// ColdStore adds schema management and the known-games feed used by
// maintenance sweeps.
type ColdStore interface {
	Store

	// Init idempotently ensures the table and indexes exist.
	Init(ctx context.Context) error

	// Games lists every game id with at least one stored entry.
	Games(ctx context.Context) ([]string, error)
}
