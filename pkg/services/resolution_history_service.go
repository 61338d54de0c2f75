package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/logging"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/repositories"
)

// ResolutionHistoryService records resolution outcomes for audit and
// template curation. Recording is best-effort: a storage failure is logged
// and never fails the resolution that produced it.
type ResolutionHistoryService interface {
	Record(ctx context.Context, requestID uuid.UUID, req *models.ResolutionRequest, result *models.ResolvedQuery, resErr error)
	ListRecent(ctx context.Context, limit int) ([]*models.ResolutionHistoryEntry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type resolutionHistoryService struct {
	repo   repositories.ResolutionHistoryRepository
	logger *zap.Logger
}

// NewResolutionHistoryService creates a new ResolutionHistoryService.
func NewResolutionHistoryService(repo repositories.ResolutionHistoryRepository, logger *zap.Logger) ResolutionHistoryService {
	return &resolutionHistoryService{
		repo:   repo,
		logger: logger.Named("resolution-history"),
	}
}

var _ ResolutionHistoryService = (*resolutionHistoryService)(nil)

func (s *resolutionHistoryService) Record(ctx context.Context, requestID uuid.UUID, req *models.ResolutionRequest, result *models.ResolvedQuery, resErr error) {
	entry := &models.ResolutionHistoryEntry{
		RequestID:  requestID,
		IntentText: req.IntentText,
	}
	if result != nil {
		entry.QueryText = result.QueryText
		entry.Source = result.Source
		entry.Confidence = result.Confidence
	}
	if resErr != nil {
		code := classifyResolutionError(resErr)
		entry.ErrorCode = &code
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record resolution outcome",
			zap.String("request_id", requestID.String()),
			zap.String("intent", logging.TruncateQuery(req.IntentText)),
			zap.Error(err))
	}
}

func (s *resolutionHistoryService) ListRecent(ctx context.Context, limit int) ([]*models.ResolutionHistoryEntry, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *resolutionHistoryService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	pruned, err := s.repo.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.Info("Pruned resolution history", zap.Int64("entries", pruned))
	}
	return pruned, nil
}

// classifyResolutionError maps engine errors onto stored error codes.
func classifyResolutionError(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnknownEntity):
		return models.ErrorCodeUnknownEntity
	case errors.Is(err, apperrors.ErrUnreachable):
		return models.ErrorCodeUnreachable
	case errors.Is(err, apperrors.ErrAmbiguousAggregation):
		return models.ErrorCodeAmbiguousAggregation
	case errors.Is(err, apperrors.ErrNoMatchAndUnresolvable):
		return models.ErrorCodeNoMatchAndUnresolvable
	case errors.Is(err, apperrors.ErrUnsafeLiteral):
		return models.ErrorCodeUnsafeLiteral
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return models.ErrorCodeInvalidRequest
	default:
		return models.ErrorCodeInternal
	}
}
