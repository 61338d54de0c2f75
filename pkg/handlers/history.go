package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/services"
)

// HistoryHandler exposes recorded resolution outcomes. Registered only when
// history storage is configured.
type HistoryHandler struct {
	svc    services.ResolutionHistoryService
	logger *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(svc services.ResolutionHistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger.Named("history-handler")}
}

// RegisterRoutes registers the history handler's routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/history", h.ListRecent)
}

// ListRecent handles GET /v1/history?limit=N.
func (h *HistoryHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "malformed_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list resolution history", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list resolution history")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"entries": entries}); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
	}
}
