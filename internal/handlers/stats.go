package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bibliotheque/apiserver/internal/services"
)

// StatsHandler serves the dashboard counters.
type StatsHandler struct {
	statsService *services.StatsService
	logger       *slog.Logger
}

func NewStatsHandler(statsService *services.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{statsService: statsService, logger: logger}
}

// Dashboard answers 200 with whatever could be computed; statistics that
// failed are named in "unavailable". Only a total outage is a 503.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrStatsUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "statistics are temporarily unavailable")
			return
		}
		writeServiceError(w, r, h.logger, err, "compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
