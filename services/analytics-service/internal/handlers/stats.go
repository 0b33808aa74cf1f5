package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pm/patient-management/libs/httpx"
	"github.com/pm/patient-management/services/analytics-service/internal/patientevents"
)

type StatsHandler struct {
	store  patientevents.Store
	logger *slog.Logger
}

func NewStatsHandler(store patientevents.Store, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{store: store, logger: logger}
}

func (h *StatsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stats/patient-events", h.patientEvents)
}

func (h *StatsHandler) patientEvents(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountsByType(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "patient event counts failed", "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"byType": counts,
	})
}
