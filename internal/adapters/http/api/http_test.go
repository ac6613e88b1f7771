package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/podiumlabs/strata/internal/adapters/store"
	"github.com/podiumlabs/strata/internal/domain/model"
)

// fakeDeps implements Dependencies with canned responses.
type fakeDeps struct {
	saved       []model.ScoreEntry
	savedGame   string
	batchCount  int
	entries     []model.ScoreEntry
	deletedID   string
	deletedGame string
	migrated    []string
	retained    []string
	games       []string
	lastOpts    model.QueryOptions

	saveErr    error
	getErr     error
	deleteErr  error
	migrateErr error
	gamesErr   error
}

func (f *fakeDeps) SaveScore(_ context.Context, gameID string, entry model.ScoreEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedGame = gameID
	f.saved = append(f.saved, entry)
	return nil
}

func (f *fakeDeps) BatchSaveScores(_ context.Context, gameID string, entries []model.ScoreEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedGame = gameID
	f.saved = append(f.saved, entries...)
	f.batchCount++
	return nil
}

func (f *fakeDeps) GetScores(_ context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error) {
	f.lastOpts = opts
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries, nil
}

func (f *fakeDeps) DeleteScore(_ context.Context, gameID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedGame = gameID
	f.deletedID = id
	return nil
}

func (f *fakeDeps) MigrateToHistorical(_ context.Context, gameID string) error {
	if f.migrateErr != nil {
		return f.migrateErr
	}
	f.migrated = append(f.migrated, gameID)
	return nil
}

func (f *fakeDeps) EnforceRetention(_ context.Context, gameID string) error {
	f.retained = append(f.retained, gameID)
	return nil
}

func (f *fakeDeps) Games(_ context.Context) ([]string, error) {
	return f.games, f.gamesErr
}

func (f *fakeDeps) Stats(_ context.Context) map[string]interface{} {
	return map[string]interface{}{"games": len(f.games)}
}

func newTestMux(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps).Register(context.Background(), mux)
	return mux
}

func TestSubmitScore(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps)

	body := `{"game_id":"game-1","entry":{"player_id":"p1","score":42.5}}`
	req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if deps.savedGame != "game-1" || len(deps.saved) != 1 {
		t.Errorf("save not forwarded: game=%q entries=%d", deps.savedGame, len(deps.saved))
	}
	if deps.saved[0].PlayerID != "p1" || deps.saved[0].Score != 42.5 {
		t.Errorf("entry fields lost: %+v", deps.saved[0])
	}
}

func TestSubmitScoreRejectsBadPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"game_id":`},
		{"missing game id", `{"entry":{"player_id":"p1","score":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := &fakeDeps{}
			mux := newTestMux(deps)

			req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if len(deps.saved) != 0 {
				t.Error("invalid request must not reach the engine")
			}
		})
	}
}

func TestSubmitScoreInvalidEntryMapsTo400(t *testing.T) {
	deps := &fakeDeps{saveErr: fmt.Errorf("%w: missing player", store.ErrInvalidEntry)}
	mux := newTestMux(deps)

	body := `{"game_id":"game-1","entry":{"score":1}}`
	req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid entry, got %d", rec.Code)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != "invalid_entry" {
		t.Errorf("expected invalid_entry code, got %q", resp.Code)
	}
}

func TestBatchSubmit(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps)

	body := `{"game_id":"game-1","entries":[{"player_id":"p1","score":1},{"player_id":"p2","score":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/scores/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ack struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Count != 2 || deps.batchCount != 1 {
		t.Errorf("expected one batch of 2, got count=%d batches=%d", ack.Count, deps.batchCount)
	}
}

func TestBatchSubmitRejectsEmptyBatch(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps)

	body := `{"game_id":"game-1","entries":[]}`
	req := httptest.NewRequest(http.MethodPost, "/scores/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryScores(t *testing.T) {
	deps := &fakeDeps{entries: []model.ScoreEntry{
		{ID: "a", GameID: "game-1", PlayerID: "p1", Score: 9},
		{ID: "b", GameID: "game-1", PlayerID: "p2", Score: 7},
	}}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodGet,
		"/scores?game=game-1&category=weekly&limit=5&offset=10&sort=asc&start=2026-08-01T00:00:00Z&meta.region=eu", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got []model.ScoreEntry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("unexpected page: %+v", got)
	}

	opts := deps.lastOpts
	if opts.Category != "weekly" || opts.Limit != 5 || opts.Offset != 10 {
		t.Errorf("paging params lost: %+v", opts)
	}
	if opts.SortOrder != model.SortAsc {
		t.Errorf("expected asc sort, got %v", opts.SortOrder)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if opts.StartDate == nil || !opts.StartDate.Equal(want) {
		t.Errorf("start date lost: %v", opts.StartDate)
	}
	if opts.Filters["region"] != "eu" {
		t.Errorf("metadata filter lost: %v", opts.Filters)
	}
}

func TestQueryScoresValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"missing game", "/scores?limit=5"},
		{"bad limit", "/scores?game=g&limit=abc"},
		{"negative offset", "/scores?game=g&offset=-1"},
		{"bad start", "/scores?game=g&start=yesterday"},
		{"bad sort", "/scores?game=g&sort=sideways"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(&fakeDeps{})

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestQueryScoresInvalidFilterMapsTo400(t *testing.T) {
	deps := &fakeDeps{getErr: fmt.Errorf("%w: bad key", store.ErrInvalidFilter)}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodGet, "/scores?game=g&meta.x=1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid filter, got %d", rec.Code)
	}
}

func TestQueryScoresEmptyResultIsJSONArray(t *testing.T) {
	mux := newTestMux(&fakeDeps{})

	req := httptest.NewRequest(http.MethodGet, "/scores?game=g", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty array body, got %q", body)
	}
}

func TestDeleteScore(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodDelete, "/scores/abc-123?game=game-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if deps.deletedGame != "game-1" || deps.deletedID != "abc-123" {
		t.Errorf("delete not forwarded: game=%q id=%q", deps.deletedGame, deps.deletedID)
	}
}

func TestDeleteScoreRequiresGame(t *testing.T) {
	mux := newTestMux(&fakeDeps{})

	req := httptest.NewRequest(http.MethodDelete, "/scores/abc-123", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMaintenanceMigrateSingleGame(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodPost, "/maintenance/migrate?game=game-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(deps.migrated) != 1 || deps.migrated[0] != "game-1" {
		t.Errorf("expected game-1 migrated, got %v", deps.migrated)
	}
}

func TestMaintenanceRetentionAllGames(t *testing.T) {
	deps := &fakeDeps{games: []string{"game-a", "game-b"}}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodPost, "/maintenance/retention", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(deps.retained) != 2 {
		t.Errorf("expected retention on both games, got %v", deps.retained)
	}
}

func TestMaintenanceFailureSurfaces(t *testing.T) {
	deps := &fakeDeps{migrateErr: errors.New("redis down")}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodPost, "/maintenance/migrate?game=game-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMethodChecks(t *testing.T) {
	mux := newTestMux(&fakeDeps{})

	cases := []struct {
		method string
		url    string
	}{
		{http.MethodGet, "/maintenance/migrate"},
		{http.MethodGet, "/scores/batch"},
		{http.MethodPut, "/scores"},
		{http.MethodPost, "/stats"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.url, bytes.NewReader(nil))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.url, rec.Code)
		}
	}
}

func TestStats(t *testing.T) {
	deps := &fakeDeps{games: []string{"game-a"}}
	mux := newTestMux(deps)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["games"] != float64(1) {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestHealthServesMetrics(t *testing.T) {
	mux := newTestMux(&fakeDeps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "strata_") {
		t.Error("expected prometheus exposition with strata metrics")
	}
}
