package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/strata-bi/strata-engine/pkg/database"
	"github.com/strata-bi/strata-engine/pkg/models"
)

// ResolutionHistoryRepository provides data access for resolution outcomes.
type ResolutionHistoryRepository interface {
	Create(ctx context.Context, entry *models.ResolutionHistoryEntry) error
	ListRecent(ctx context.Context, limit int) ([]*models.ResolutionHistoryEntry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type resolutionHistoryRepository struct {
	db *database.DB
}

// NewResolutionHistoryRepository creates a new ResolutionHistoryRepository.
func NewResolutionHistoryRepository(db *database.DB) ResolutionHistoryRepository {
	return &resolutionHistoryRepository{db: db}
}

var _ ResolutionHistoryRepository = (*resolutionHistoryRepository)(nil)

func (r *resolutionHistoryRepository) Create(ctx context.Context, entry *models.ResolutionHistoryEntry) error {
	query := `
		INSERT INTO engine_resolution_history (
			request_id, intent_text, query_text, source, confidence, error_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	now := time.Now()
	err := r.db.QueryRow(ctx, query,
		entry.RequestID,
		entry.IntentText,
		entry.QueryText,
		entry.Source,
		entry.Confidence,
		entry.ErrorCode,
		now,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create resolution history entry: %w", err)
	}
	entry.CreatedAt = now

	return nil
}

func (r *resolutionHistoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.ResolutionHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, intent_text, query_text, source, confidence, error_code, created_at
		FROM engine_resolution_history
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolution history: %w", err)
	}
	defer rows.Close()

	var entries []*models.ResolutionHistoryEntry
	for rows.Next() {
		entry := &models.ResolutionHistoryEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.IntentText,
			&entry.QueryText,
			&entry.Source,
			&entry.Confidence,
			&entry.ErrorCode,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resolution history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolution history: %w", err)
	}

	return entries, nil
}

func (r *resolutionHistoryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM engine_resolution_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune resolution history: %w", err)
	}
	return tag.RowsAffected(), nil
}
