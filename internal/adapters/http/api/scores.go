// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/podiumlabs/strata/internal/adapters/store"
	"github.com/podiumlabs/strata/internal/domain/model"
)

// Query parameter prefix for metadata equality filters, e.g.
// GET /scores?game=g1&meta.region=eu.
const metaFilterPrefix = "meta."

// ScoreDependencies defines the interface for score operations.
type ScoreDependencies interface {
	SaveScore(ctx context.Context, gameID string, entry model.ScoreEntry) error
	BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error
	GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error)
	DeleteScore(ctx context.Context, gameID, id string) error
}

// ScoresHandler handles score submission, query and deletion requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the submission schema for POST /scores.
type scoreRequest struct {
	GameID string           `json:"game_id"`
	Entry  model.ScoreEntry `json:"entry"`
}

type batchRequest struct {
	GameID  string             `json:"game_id"`
	Entries []model.ScoreEntry `json:"entries"`
}

// HandleScores dispatches POST (submit) and GET (query) on /scores.
func (h *ScoresHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleQuery(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ScoresHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.GameID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing game_id", op, ErrBadRequest))
		return
	}
	if err := h.deps.SaveScore(r.Context(), req.GameID, req.Entry); err != nil {
		if errors.Is(err, store.ErrInvalidEntry) {
			writeError(w, http.StatusBadRequest, "invalid_entry", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "saved", Count: 1})
}

// HandleBatch handles POST /scores/batch requests.
func (h *ScoresHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_scores_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.GameID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing game_id", op, ErrBadRequest))
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: empty batch", op, ErrBadRequest))
		return
	}
	if err := h.deps.BatchSaveScores(r.Context(), req.GameID, req.Entries); err != nil {
		if errors.Is(err, store.ErrInvalidEntry) {
			writeError(w, http.StatusBadRequest, "invalid_entry", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "saved", Count: len(req.Entries)})
}

func (h *ScoresHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	q := r.URL.Query()

	gameID := q.Get("game")
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing game", op, ErrBadRequest))
		return
	}

	opts, err := queryOptions(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	entries, err := h.deps.GetScores(r.Context(), gameID, opts)
	if err != nil {
		if errors.Is(err, store.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, "invalid_filter", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	if entries == nil {
		entries = []model.ScoreEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleDelete handles DELETE /scores/{id}?game=G requests.
func (h *ScoresHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_score"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/scores/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing score id", op, ErrBadRequest))
		return
	}
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing game", op, ErrBadRequest))
		return
	}
	if err := h.deps.DeleteScore(r.Context(), gameID, id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "deleted"})
}

// queryOptions translates URL query parameters to a model.QueryOptions.
func queryOptions(q map[string][]string) (model.QueryOptions, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	opts := model.QueryOptions{Category: get("category")}

	if raw := get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, errors.New("limit must be a positive integer")
		}
		opts.Limit = n
	}
	if raw := get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, errors.New("offset must be a non-negative integer")
		}
		opts.Offset = n
	}

	var err error
	if opts.StartDate, err = parseTimeParam(get("start")); err != nil {
		return opts, errors.New("invalid start; must be RFC3339")
	}
	if opts.EndDate, err = parseTimeParam(get("end")); err != nil {
		return opts, errors.New("invalid end; must be RFC3339")
	}

	switch get("sort") {
	case "", "desc":
		opts.SortOrder = model.SortDesc
	case "asc":
		opts.SortOrder = model.SortAsc
	default:
		return opts, errors.New("sort must be asc or desc")
	}

	for key, vs := range q {
		if !strings.HasPrefix(key, metaFilterPrefix) || len(vs) == 0 {
			continue
		}
		if opts.Filters == nil {
			opts.Filters = make(map[string]string)
		}
		opts.Filters[strings.TrimPrefix(key, metaFilterPrefix)] = vs[0]
	}

	return opts, nil
}
