// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
)

// MaintenanceDependencies defines the interface for maintenance operations.
// A request without a game parameter runs over every known game, matching
// what the background sweeper does on its own schedule.
type MaintenanceDependencies interface {
	MigrateToHistorical(ctx context.Context, gameID string) error
	EnforceRetention(ctx context.Context, gameID string) error
	Games(ctx context.Context) ([]string, error)
}

// MaintenanceHandler handles manual migration and retention requests.
type MaintenanceHandler struct {
	deps MaintenanceDependencies
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(deps MaintenanceDependencies) *MaintenanceHandler {
	return &MaintenanceHandler{deps: deps}
}

// HandleMigrate handles POST /maintenance/migrate[?game=G] requests.
func (h *MaintenanceHandler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "api.migrate", h.deps.MigrateToHistorical)
}

// HandleRetention handles POST /maintenance/retention[?game=G] requests.
func (h *MaintenanceHandler) HandleRetention(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "api.retention", h.deps.EnforceRetention)
}

func (h *MaintenanceHandler) run(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) error) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	games := []string{r.URL.Query().Get("game")}
	if games[0] == "" {
		var err error
		games, err = h.deps.Games(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: list games: %w", op, err))
			return
		}
	}

	for _, game := range games {
		if err := fn(r.Context(), game); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: game %s: %w", op, game, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Count: len(games)})
}
