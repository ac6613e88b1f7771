// Package cold implements the durable historical tier on a relational
// store via bun. It holds the authoritative record; the hot tier is a
// cache in front of it.
//
// Tie-break: entries with equal scores order by id ascending. This is a
// cold-tier-local guarantee, independent of the hot tier's ordering.
package cold

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/podiumlabs/strata/internal/adapters/store"
	"github.com/podiumlabs/strata/internal/domain/model"
	"github.com/podiumlabs/strata/pkg/logger"
	"github.com/podiumlabs/strata/pkg/metrics"
)

// Filter keys are interpolation-free (always bound), but are additionally
// restricted to plain identifiers so a bad caller fails loudly.
var metaKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// scoreRow is the relational mapping of model.ScoreEntry.
type scoreRow struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID         string            `bun:"id,pk"`
	GameID     string            `bun:"game_id,notnull"`
	PlayerID   string            `bun:"player_id,notnull"`
	PlayerName string            `bun:"player_name"`
	Score      float64           `bun:"score,notnull"`
	Category   string            `bun:"category,notnull"`
	Metadata   map[string]string `bun:"metadata,type:jsonb"`
	Timestamp  time.Time         `bun:"timestamp,notnull"`
	Verified   bool              `bun:"verified"`
}

func toRow(e model.ScoreEntry) scoreRow {
	return scoreRow{
		ID:         e.ID,
		GameID:     e.GameID,
		PlayerID:   e.PlayerID,
		PlayerName: e.PlayerName,
		Score:      e.Score,
		Category:   e.Category,
		Metadata:   e.Metadata,
		Timestamp:  e.Timestamp.UTC(),
		Verified:   e.Verified,
	}
}

func (r scoreRow) toEntry() model.ScoreEntry {
	return model.ScoreEntry{
		ID:         r.ID,
		GameID:     r.GameID,
		PlayerID:   r.PlayerID,
		PlayerName: r.PlayerName,
		Score:      r.Score,
		Category:   r.Category,
		Metadata:   r.Metadata,
		Timestamp:  r.Timestamp.UTC(),
		Verified:   r.Verified,
	}
}

// Adapter is the bun-backed cold tier. One Adapter shares one pooled
// *bun.DB across all calls.
type Adapter struct {
	db  *bun.DB
	log logger.Logger
}

var _ store.ColdStore = (*Adapter)(nil)

// New constructs an Adapter around an existing bun DB.
func New(db *bun.DB, opts ...Option) *Adapter {
	a := &Adapter{
		db:  db,
		log: logger.Get().Named("cold"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OpenPostgres dials a Postgres DSN and wraps it for bun.
func OpenPostgres(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Init idempotently ensures the scores table and its two indexes exist.
func (a *Adapter) Init(ctx context.Context) error {
	if _, err := a.db.NewCreateTable().
		Model((*scoreRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create scores table: %w", err)
	}

	indexes := []struct {
		name    string
		columns []string
	}{
		{"idx_scores_game_timestamp", []string{"game_id", "timestamp"}},
		{"idx_scores_game_category_score", []string{"game_id", "category", "score"}},
	}
	for _, idx := range indexes {
		if _, err := a.db.NewCreateIndex().
			Model((*scoreRow)(nil)).
			IfNotExists().
			Index(idx.name).
			Column(idx.columns...).
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// SaveScore upserts by primary key. A conflicting id updates only score,
// metadata and verified; game, player, category and timestamp are fixed by
// the first successful write.
func (a *Adapter) SaveScore(ctx context.Context, entry model.ScoreEntry) error {
	defer metrics.ObserveColdOp("save", time.Now())

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntry, err)
	}

	row := toRow(entry)
	if _, err := a.upsert(a.db.NewInsert().Model(&row)).Exec(ctx); err != nil {
		return fmt.Errorf("upsert score %s: %w", entry.ID, err)
	}
	return nil
}

// GetScores builds a parameterized filtered query: game + category, optional
// date range and metadata equality filters, ordered by score with id as the
// stable secondary key, paginated by limit/offset.
func (a *Adapter) GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error) {
	defer metrics.ObserveColdOp("get", time.Now())

	opts = opts.Normalized()

	q := a.db.NewSelect().
		Model((*scoreRow)(nil)).
		Where("s.game_id = ?", gameID).
		Where("s.category = ?", opts.Category)
	if opts.StartDate != nil {
		q = q.Where("s.timestamp >= ?", opts.StartDate.UTC())
	}
	if opts.EndDate != nil {
		q = q.Where("s.timestamp <= ?", opts.EndDate.UTC())
	}

	for key, value := range opts.Filters {
		if !metaKeyPattern.MatchString(key) {
			return nil, fmt.Errorf("%w: %q", store.ErrInvalidFilter, key)
		}
		// Key and value are both bound parameters; only the JSON access
		// expression differs per dialect.
		if a.db.Dialect().Name() == dialect.PG {
			q = q.Where("s.metadata->>? = ?", key, value)
		} else {
			q = q.Where("json_extract(s.metadata, '$.' || ?) = ?", key, value)
		}
	}

	order := "DESC"
	if opts.SortOrder == model.SortAsc {
		order = "ASC"
	}
	q = q.OrderExpr("s.score "+order).
		OrderExpr("s.id ASC").
		Limit(opts.Limit).
		Offset(opts.Offset)

	var rows []scoreRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	entries := make([]model.ScoreEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toEntry()
	}
	return entries, nil
}

// DeleteScore removes one row; unknown ids are a no-op.
func (a *Adapter) DeleteScore(ctx context.Context, gameID, id string) error {
	defer metrics.ObserveColdOp("delete", time.Now())

	if _, err := a.db.NewDelete().
		Model((*scoreRow)(nil)).
		Where("game_id = ?", gameID).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete score %s: %w", id, err)
	}
	return nil
}

// BatchSaveScores executes all upserts inside one transaction; any failure
// rolls back the whole batch. Duplicate ids within the batch collapse to
// the last occurrence so the statement stays well-defined.
func (a *Adapter) BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error {
	defer metrics.ObserveColdOp("batch_save", time.Now())

	if len(entries) == 0 {
		return nil
	}

	seen := make(map[string]int, len(entries))
	rows := make([]scoreRow, 0, len(entries))
	for _, e := range entries {
		e.GameID = gameID
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", store.ErrInvalidEntry, e.ID, err)
		}
		if i, dup := seen[e.ID]; dup {
			rows[i] = toRow(e)
			continue
		}
		seen[e.ID] = len(rows)
		rows = append(rows, toRow(e))
	}

	err := a.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := a.upsert(tx.NewInsert().Model(&rows)).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("batch upsert %d scores: %w", len(rows), err)
	}
	return nil
}

// Cleanup removes every row of the game older than the cutoff.
func (a *Adapter) Cleanup(ctx context.Context, gameID string, olderThan time.Time) error {
	defer metrics.ObserveColdOp("cleanup", time.Now())

	res, err := a.db.NewDelete().
		Model((*scoreRow)(nil)).
		Where("game_id = ?", gameID).
		Where("timestamp < ?", olderThan.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cleanup before %s: %w", olderThan.Format(time.RFC3339), err)
	}
	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		a.log.Debug(ctx, "cleaned up historical scores",
			logger.String("game_id", gameID),
			logger.Int("deleted", int(deleted)),
		)
	}
	return nil
}

// Games lists every game id with at least one stored entry.
func (a *Adapter) Games(ctx context.Context) ([]string, error) {
	defer metrics.ObserveColdOp("games", time.Now())

	var ids []string
	if err := a.db.NewSelect().
		Model((*scoreRow)(nil)).
		ColumnExpr("DISTINCT game_id").
		OrderExpr("game_id ASC").
		Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return ids, nil
}

// Ping reports backing store health.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreUnhealthy, err)
	}
	return nil
}

func (a *Adapter) upsert(q *bun.InsertQuery) *bun.InsertQuery {
	return q.
		On("CONFLICT (id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("metadata = EXCLUDED.metadata").
		Set("verified = EXCLUDED.verified")
}
