package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/logging"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/services"
)

// ResolveHandler exposes the resolution engine over HTTP.
type ResolveHandler struct {
	svc    services.ResolutionService
	logger *zap.Logger
}

// NewResolveHandler creates a new ResolveHandler.
func NewResolveHandler(svc services.ResolutionService, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{svc: svc, logger: logger.Named("resolve-handler")}
}

// RegisterRoutes registers the resolve handler's routes on the given mux.
func (h *ResolveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/resolve", h.Resolve)
	mux.HandleFunc("GET /v1/model", h.ModelSummary)
	mux.HandleFunc("POST /v1/model/reload", h.ReloadModel)
}

// resolveErrorResponse carries a typed error plus the diagnostic trail.
type resolveErrorResponse struct {
	Error       string                     `json:"error"`
	Message     string                     `json:"message"`
	Diagnostics []models.Diagnostic        `json:"diagnostics,omitempty"`
	Candidates  []models.VerifiedCandidate `json:"candidates,omitempty"`
}

// Resolve handles POST /v1/resolve.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req models.ResolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "malformed_request", "request body is not valid JSON")
		return
	}
	if req.IntentText == "" && len(req.ReferencedEntities) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "malformed_request", "intent_text or referenced_entities is required")
		return
	}

	result, err := h.svc.Resolve(r.Context(), &req)
	if err != nil {
		h.writeResolutionError(w, &req, err)
		return
	}

	h.logger.Info("Request resolved",
		zap.String("request_id", result.RequestID.String()),
		zap.String("source", result.Source),
		zap.Float64("confidence", result.Confidence),
		zap.String("query", logging.TruncateQuery(result.QueryText)))

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode resolve response", zap.Error(err))
	}
}

func (h *ResolveHandler) writeResolutionError(w http.ResponseWriter, req *models.ResolutionRequest, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest), errors.Is(err, apperrors.ErrUnknownEntity):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperrors.ErrUnsafeLiteral):
		status, code = http.StatusBadRequest, "unsafe_literal"
	case errors.Is(err, apperrors.ErrUnreachable):
		status, code = http.StatusUnprocessableEntity, "unreachable"
	case errors.Is(err, apperrors.ErrAmbiguousAggregation):
		status, code = http.StatusUnprocessableEntity, "ambiguous_aggregation"
	case errors.Is(err, apperrors.ErrNoMatchAndUnresolvable):
		status, code = http.StatusUnprocessableEntity, "no_match_and_unresolvable"
	}

	response := resolveErrorResponse{Error: code, Message: err.Error()}
	var resErr *services.ResolutionError
	if errors.As(err, &resErr) {
		response.Diagnostics = resErr.Diagnostics
		response.Candidates = resErr.Candidates
	}

	h.logger.Warn("Resolution failed",
		zap.String("error_code", code),
		zap.String("intent", logging.TruncateQuery(req.IntentText)),
		zap.Error(err))

	if writeErr := WriteJSON(w, status, response); writeErr != nil {
		h.logger.Error("Failed to encode resolution error", zap.Error(writeErr))
	}
}

// modelSummaryResponse describes the loaded snapshot for operators.
type modelSummaryResponse struct {
	Name            string   `json:"name"`
	Tables          []string `json:"tables"`
	Relationships   int      `json:"relationships"`
	VerifiedQueries int      `json:"verified_queries"`
}

// ModelSummary handles GET /v1/model.
func (h *ResolveHandler) ModelSummary(w http.ResponseWriter, r *http.Request) {
	model := h.svc.Model()
	tables := make([]string, 0, len(model.Tables))
	for _, t := range model.Tables {
		tables = append(tables, t.Name)
	}

	response := modelSummaryResponse{
		Name:            model.Name,
		Tables:          tables,
		Relationships:   len(model.Relationships),
		VerifiedQueries: len(model.VerifiedQueries),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode model summary", zap.Error(err))
	}
}

// ReloadModel handles POST /v1/model/reload. A document that fails validation
// is reported here while the prior snapshot keeps serving.
func (h *ResolveHandler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reload(r.Context()); err != nil {
		if errors.Is(err, apperrors.ErrModelInvalid) {
			_ = ErrorResponse(w, http.StatusUnprocessableEntity, "model_invalid", err.Error())
			return
		}
		_ = ErrorResponse(w, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}

	model := h.svc.Model()
	h.logger.Info("Model reloaded", zap.String("model", model.Name))
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "model": model.Name}); err != nil {
		h.logger.Error("Failed to encode reload response", zap.Error(err))
	}
}
