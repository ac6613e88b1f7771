// Package hot implements the low-latency ranked tier on Redis.
//
// Layout per game: one record key per entry holding the JSON body, plus one
// ZSET per (game, category) mapping entry id -> score for ranked range
// reads. The record write and the rank update always travel in a single
// MULTI/EXEC pipeline so other clients never observe one without the other.
//
// Tie-break: entries with equal scores order by member id lexicographically
// (native ZSET semantics). This is hot-tier-local and not guaranteed to
// match the cold tier's secondary ordering.
package hot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podiumlabs/strata/internal/adapters/store"
	"github.com/podiumlabs/strata/internal/domain/model"
	"github.com/podiumlabs/strata/pkg/logger"
	"github.com/podiumlabs/strata/pkg/metrics"
)

// Default adapter configuration constants.
const (
	defaultKeyPrefix    = "strata"
	defaultScanPageSize = 500
)

// Adapter is the Redis-backed hot tier. One Adapter shares one multiplexed
// client across all calls; it performs no locking of its own beyond the
// pipeline primitive.
type Adapter struct {
	rdb          redis.UniversalClient
	prefix       string
	scanPageSize int64
	log          logger.Logger
}

var _ store.HotStore = (*Adapter)(nil)

// New constructs an Adapter around an existing client.
func New(rdb redis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{
		rdb:          rdb,
		prefix:       defaultKeyPrefix,
		scanPageSize: defaultScanPageSize,
		log:          logger.Get().Named("hot"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) recordKey(gameID, id string) string {
	return fmt.Sprintf("%s:%s:rec:%s", a.prefix, gameID, id)
}

func (a *Adapter) rankKey(gameID, category string) string {
	return fmt.Sprintf("%s:%s:cat:%s:rank", a.prefix, gameID, category)
}

func (a *Adapter) recordPattern(gameID string) string {
	return fmt.Sprintf("%s:%s:rec:*", a.prefix, gameID)
}

// SaveScore stores the record body and the rank position as one atomic
// pair. Re-saving an existing id keeps the first write's identity fields
// (player name, category, timestamp) and overwrites score, metadata and
// the verified flag.
func (a *Adapter) SaveScore(ctx context.Context, entry model.ScoreEntry) error {
	defer metrics.ObserveHotOp("save", time.Now())

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntry, err)
	}

	if prev, err := a.getRecord(ctx, entry.GameID, entry.ID); err != nil {
		return err
	} else if prev != nil {
		entry.PlayerName = prev.PlayerName
		entry.Category = prev.Category
		entry.Timestamp = prev.Timestamp
		entry.PlayerID = prev.PlayerID
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal score %s: %w", entry.ID, err)
	}

	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.recordKey(entry.GameID, entry.ID), payload, 0)
		pipe.ZAdd(ctx, a.rankKey(entry.GameID, entry.Category), redis.Z{
			Score:  entry.Score,
			Member: entry.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save score %s: %w", entry.ID, err)
	}
	return nil
}

// GetScores resolves the ordered id page from the rank index, then fetches
// the record bodies. A ranked id with no record is drift: it is dropped
// from the result, logged and counted, never surfaced as an error.
func (a *Adapter) GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error) {
	defer metrics.ObserveHotOp("get", time.Now())

	opts = opts.Normalized()
	key := a.rankKey(gameID, opts.Category)
	start := int64(opts.Offset)
	stop := int64(opts.Offset + opts.Limit - 1)

	var ids []string
	var err error
	if opts.SortOrder == model.SortAsc {
		ids, err = a.rdb.ZRange(ctx, key, start, stop).Result()
	} else {
		ids, err = a.rdb.ZRevRange(ctx, key, start, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("rank page %s: %w", key, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = a.recordKey(gameID, id)
	}
	values, err := a.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	entries := make([]model.ScoreEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Ranked id without a record body.
			metrics.RecordHotDrift()
			a.log.Warn(ctx, "rank index references missing record",
				logger.String("game_id", gameID),
				logger.String("id", ids[i]),
			)
			continue
		}
		var e model.ScoreEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			metrics.RecordHotDrift()
			a.log.Warn(ctx, "undecodable record body",
				logger.String("game_id", gameID),
				logger.String("id", ids[i]),
				logger.Error(err),
			)
			continue
		}
		if opts.Matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// DeleteScore removes the record and its rank entry together. Unknown ids
// are a no-op.
func (a *Adapter) DeleteScore(ctx context.Context, gameID, id string) error {
	defer metrics.ObserveHotOp("delete", time.Now())

	entry, err := a.getRecord(ctx, gameID, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	return a.removeAll(ctx, gameID, []model.ScoreEntry{*entry})
}

// BatchSaveScores saves entries one by one; the atomic record+rank pair
// holds per entry, the batch as a whole does not.
func (a *Adapter) BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error {
	defer metrics.ObserveHotOp("batch_save", time.Now())

	for _, e := range entries {
		e.GameID = gameID
		if err := a.SaveScore(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup walks the game's record keys in bounded SCAN pages and removes
// every entry older than the cutoff, rank state included.
func (a *Adapter) Cleanup(ctx context.Context, gameID string, olderThan time.Time) error {
	defer metrics.ObserveHotOp("cleanup", time.Now())

	stale, err := a.scanOlderThan(ctx, gameID, olderThan, 0)
	if err != nil {
		return err
	}
	return a.removeAll(ctx, gameID, stale)
}

// OlderThan returns up to limit entries with a timestamp before cutoff.
// A limit of 0 means unbounded.
func (a *Adapter) OlderThan(ctx context.Context, gameID string, cutoff time.Time, limit int) ([]model.ScoreEntry, error) {
	defer metrics.ObserveHotOp("older_than", time.Now())
	return a.scanOlderThan(ctx, gameID, cutoff, limit)
}

// RemoveEntries drops the given entries from record and rank state.
func (a *Adapter) RemoveEntries(ctx context.Context, gameID string, entries []model.ScoreEntry) error {
	defer metrics.ObserveHotOp("remove_entries", time.Now())
	return a.removeAll(ctx, gameID, entries)
}

// Ping reports backing store health.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreUnhealthy, err)
	}
	return nil
}

func (a *Adapter) getRecord(ctx context.Context, gameID, id string) (*model.ScoreEntry, error) {
	raw, err := a.rdb.Get(ctx, a.recordKey(gameID, id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	var e model.ScoreEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &e, nil
}

func (a *Adapter) scanOlderThan(ctx context.Context, gameID string, cutoff time.Time, limit int) ([]model.ScoreEntry, error) {
	var (
		out    []model.ScoreEntry
		cursor uint64
	)
	for {
		keys, next, err := a.rdb.Scan(ctx, cursor, a.recordPattern(gameID), a.scanPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}
		if len(keys) > 0 {
			values, err := a.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("fetch scanned records: %w", err)
			}
			for _, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue // deleted between SCAN and MGET
				}
				var e model.ScoreEntry
				if err := json.Unmarshal([]byte(raw), &e); err != nil {
					continue
				}
				if e.Timestamp.Before(cutoff) {
					out = append(out, e)
					if limit > 0 && len(out) >= limit {
						return out, nil
					}
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (a *Adapter) removeAll(ctx context.Context, gameID string, entries []model.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Del(ctx, a.recordKey(gameID, e.ID))
			pipe.ZRem(ctx, a.rankKey(gameID, e.Category), e.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %d entries: %w", len(entries), err)
	}
	return nil
}
