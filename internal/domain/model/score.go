// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel kinds for model validation errors.
var (
	ErrMissingGameID = errors.New("missing game id")
	ErrMissingPlayer = errors.New("missing player id")
	ErrZeroTimestamp = errors.New("zero timestamp")
)

// DefaultCategory is used when a submission does not name a leaderboard.
const DefaultCategory = "default"

// ScoreEntry is one recorded competitive result. It is the unit of data
// exchanged between the orchestrator and both tier adapters.
//
// (GameID, ID) is unique. Re-saving an existing id overwrites Score,
// Metadata and Verified only; PlayerName, Category and Timestamp are fixed
// by the first successful write.
type ScoreEntry struct {
	ID         string            `json:"id"`
	GameID     string            `json:"game_id"`
	PlayerID   string            `json:"player_id"`
	PlayerName string            `json:"player_name,omitempty"`
	Score      float64           `json:"score"`
	Category   string            `json:"category"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Verified   bool              `json:"verified"`
}

// Normalize fills server-side defaults: a uuid when the caller did not
// assign an id, the default category, and a submission timestamp.
func (e *ScoreEntry) Normalize(now time.Time) {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = DefaultCategory
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// Validate reports the first structural problem with the entry.
func (e ScoreEntry) Validate() error {
	switch {
	case strings.TrimSpace(e.GameID) == "":
		return ErrMissingGameID
	case strings.TrimSpace(e.PlayerID) == "":
		return ErrMissingPlayer
	case e.Timestamp.IsZero():
		return ErrZeroTimestamp
	}
	return nil
}

// SortOrder selects ranking direction for reads.
type SortOrder string

// Supported sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query limits applied when the caller does not set them.
const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 1000
)

// QueryOptions is the request shape for ranked reads. The zero value asks
// for the top DefaultQueryLimit entries of the default category, best first.
type QueryOptions struct {
	Category  string            `json:"category"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
	StartDate *time.Time        `json:"start_date,omitempty"`
	EndDate   *time.Time        `json:"end_date,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	SortOrder SortOrder         `json:"sort_order"`
}

// Normalized returns a copy with defaults applied and the limit clamped.
func (q QueryOptions) Normalized() QueryOptions {
	if strings.TrimSpace(q.Category) == "" {
		q.Category = DefaultCategory
	}
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
	return q
}

// Matches reports whether the entry satisfies the query's date range and
// metadata equality filters. Category, ordering and pagination are the
// store's concern, not this predicate's.
func (q QueryOptions) Matches(e ScoreEntry) bool {
	if q.StartDate != nil && e.Timestamp.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && e.Timestamp.After(*q.EndDate) {
		return false
	}
	for k, v := range q.Filters {
		if e.Metadata[k] != v {
			return false
		}
	}
	return true
}
