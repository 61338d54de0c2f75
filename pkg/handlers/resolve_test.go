package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/services"
)

type stubResolutionService struct {
	result     *models.ResolvedQuery
	resolveErr error
	reloadErr  error
	model      *models.SemanticModel
}

func (s *stubResolutionService) Resolve(_ context.Context, _ *models.ResolutionRequest) (*models.ResolvedQuery, error) {
	return s.result, s.resolveErr
}

func (s *stubResolutionService) Reload(_ context.Context) error { return s.reloadErr }

func (s *stubResolutionService) Model() *models.SemanticModel { return s.model }

func newResolveServer(svc services.ResolutionService) *http.ServeMux {
	mux := http.NewServeMux()
	NewResolveHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func postResolve(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestResolveEndpointSuccess(t *testing.T) {
	svc := &stubResolutionService{
		result: &models.ResolvedQuery{
			RequestID:  uuid.New(),
			QueryText:  "SELECT 1",
			Source:     models.SourceVerified,
			Confidence: 1.0,
		},
	}
	mux := newResolveServer(svc)

	rec := postResolve(t, mux, `{"intent_text": "revenue per segment"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload models.ResolvedQuery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "SELECT 1", payload.QueryText)
	assert.Equal(t, models.SourceVerified, payload.Source)
}

func TestResolveEndpointRejectsMalformedBody(t *testing.T) {
	mux := newResolveServer(&stubResolutionService{})

	rec := postResolve(t, mux, `{"intent_text": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed_request")
}

func TestResolveEndpointRejectsEmptyRequest(t *testing.T) {
	mux := newResolveServer(&stubResolutionService{})

	rec := postResolve(t, mux, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        fmt.Errorf("%w: unknown entity", apperrors.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unsafe literal",
			err:        fmt.Errorf("%w: entity", apperrors.ErrUnsafeLiteral),
			wantStatus: http.StatusBadRequest,
			wantCode:   "unsafe_literal",
		},
		{
			name:       "unreachable",
			err:        fmt.Errorf("%w: no join path", apperrors.ErrUnreachable),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unreachable",
		},
		{
			name:       "ambiguous aggregation",
			err:        fmt.Errorf("%w: fact", apperrors.ErrAmbiguousAggregation),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "ambiguous_aggregation",
		},
		{
			name:       "nothing resolvable",
			err:        fmt.Errorf("%w", apperrors.ErrNoMatchAndUnresolvable),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "no_match_and_unresolvable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newResolveServer(&stubResolutionService{resolveErr: tt.err})

			rec := postResolve(t, mux, `{"intent_text": "something"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var payload map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, tt.wantCode, payload["error"])
		})
	}
}

func TestResolveEndpointReturnsDiagnostics(t *testing.T) {
	resErr := &services.ResolutionError{
		Stage: models.StageResolvingJoins,
		Err:   fmt.Errorf("%w: no join path", apperrors.ErrUnreachable),
		Diagnostics: []models.Diagnostic{
			{Stage: models.StageReceived, Message: "request received"},
			{Stage: models.StageResolvingJoins, Message: "failed"},
		},
		Candidates: []models.VerifiedCandidate{{Name: "revenue_by_segment", Score: 0.4}},
	}
	mux := newResolveServer(&stubResolutionService{resolveErr: resErr})

	rec := postResolve(t, mux, `{"intent_text": "orders and inventory"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var payload resolveErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "unreachable", payload.Error)
	assert.Len(t, payload.Diagnostics, 2)
	require.Len(t, payload.Candidates, 1)
	assert.Equal(t, "revenue_by_segment", payload.Candidates[0].Name)
}

func TestModelSummaryEndpoint(t *testing.T) {
	svc := &stubResolutionService{
		model: &models.SemanticModel{
			Name: "retail",
			Tables: []*models.SemanticTable{
				{Name: "orders"},
				{Name: "customers"},
			},
			Relationships: []*models.Relationship{{Name: "orders_to_customers"}},
		},
	}
	mux := newResolveServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/model", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "retail", payload["name"])
	assert.Equal(t, []any{"orders", "customers"}, payload["tables"])
	assert.Equal(t, float64(1), payload["relationships"])
}

func TestReloadModelEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		reloadErr  error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			wantStatus: http.StatusOK,
			wantBody:   "reloaded",
		},
		{
			name:       "invalid document",
			reloadErr:  fmt.Errorf("%w: 2 problem(s)", apperrors.ErrModelInvalid),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "model_invalid",
		},
		{
			name:       "source failure",
			reloadErr:  fmt.Errorf("read model document: file missing"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "reload_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubResolutionService{
				reloadErr: tt.reloadErr,
				model:     &models.SemanticModel{Name: "retail"},
			}
			mux := newResolveServer(svc)

			req := httptest.NewRequest(http.MethodPost, "/v1/model/reload", strings.NewReader(""))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
