// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/podiumlabs/strata/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the orchestrator package.
type Dependencies interface {
	SaveScore(ctx context.Context, gameID string, entry model.ScoreEntry) error
	BatchSaveScores(ctx context.Context, gameID string, entries []model.ScoreEntry) error
	GetScores(ctx context.Context, gameID string, opts model.QueryOptions) ([]model.ScoreEntry, error)
	DeleteScore(ctx context.Context, gameID, id string) error
	MigrateToHistorical(ctx context.Context, gameID string) error
	EnforceRetention(ctx context.Context, gameID string) error
	Games(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	maintenanceHandler *MaintenanceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		scoresHandler:      NewScoresHandler(deps),
		maintenanceHandler: NewMaintenanceHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scores/batch", MetricsMiddleware(s.scoresHandler.HandleBatch, "scores_batch"))
	mux.HandleFunc("/scores/", MetricsMiddleware(s.scoresHandler.HandleDelete, "scores_delete"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleScores, "scores"))
	mux.HandleFunc("/maintenance/migrate", MetricsMiddleware(s.maintenanceHandler.HandleMigrate, "maintenance_migrate"))
	mux.HandleFunc("/maintenance/retention", MetricsMiddleware(s.maintenanceHandler.HandleRetention, "maintenance_retention"))
}

type ackResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseTimeParam parses an optional RFC3339 query parameter.
func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
