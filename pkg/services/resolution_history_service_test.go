package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
)

type stubHistoryRepo struct {
	created   []*models.ResolutionHistoryEntry
	createErr error
	pruned    int64
}

func (r *stubHistoryRepo) Create(_ context.Context, entry *models.ResolutionHistoryEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, entry)
	return nil
}

func (r *stubHistoryRepo) ListRecent(_ context.Context, limit int) ([]*models.ResolutionHistoryEntry, error) {
	if limit < len(r.created) {
		return r.created[:limit], nil
	}
	return r.created, nil
}

func (r *stubHistoryRepo) PruneOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return r.pruned, nil
}

func TestRecordSuccessfulResolution(t *testing.T) {
	repo := &stubHistoryRepo{}
	svc := NewResolutionHistoryService(repo, zap.NewNop())

	requestID := uuid.New()
	svc.Record(context.Background(), requestID,
		&models.ResolutionRequest{IntentText: "revenue per segment"},
		&models.ResolvedQuery{QueryText: "SELECT 1", Source: models.SourceVerified, Confidence: 0.8},
		nil)

	require.Len(t, repo.created, 1)
	entry := repo.created[0]
	assert.Equal(t, requestID, entry.RequestID)
	assert.Equal(t, "SELECT 1", entry.QueryText)
	assert.Equal(t, models.SourceVerified, entry.Source)
	assert.True(t, entry.Succeeded())
}

func TestRecordFailedResolution(t *testing.T) {
	repo := &stubHistoryRepo{}
	svc := NewResolutionHistoryService(repo, zap.NewNop())

	svc.Record(context.Background(), uuid.New(),
		&models.ResolutionRequest{IntentText: "orders and inventory"},
		nil,
		fmt.Errorf("%w: no join path", apperrors.ErrUnreachable))

	require.Len(t, repo.created, 1)
	entry := repo.created[0]
	require.NotNil(t, entry.ErrorCode)
	assert.Equal(t, models.ErrorCodeUnreachable, *entry.ErrorCode)
	assert.False(t, entry.Succeeded())
}

func TestRecordStorageFailureIsSwallowed(t *testing.T) {
	repo := &stubHistoryRepo{createErr: errors.New("connection reset")}
	svc := NewResolutionHistoryService(repo, zap.NewNop())

	// Must not panic or propagate; recording is best-effort.
	svc.Record(context.Background(), uuid.New(), &models.ResolutionRequest{}, nil, nil)
	assert.Empty(t, repo.created)
}

func TestClassifyResolutionError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{apperrors.ErrUnknownEntity, models.ErrorCodeUnknownEntity},
		{apperrors.ErrUnreachable, models.ErrorCodeUnreachable},
		{apperrors.ErrAmbiguousAggregation, models.ErrorCodeAmbiguousAggregation},
		{apperrors.ErrNoMatchAndUnresolvable, models.ErrorCodeNoMatchAndUnresolvable},
		{apperrors.ErrUnsafeLiteral, models.ErrorCodeUnsafeLiteral},
		{apperrors.ErrInvalidRequest, models.ErrorCodeInvalidRequest},
		{errors.New("anything else"), models.ErrorCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			wrapped := &ResolutionError{Stage: models.StageReceived, Err: tt.err}
			assert.Equal(t, tt.code, classifyResolutionError(wrapped))
		})
	}
}
