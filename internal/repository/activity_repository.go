package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// ActivityRepository appends and lists workflow activity records.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert appends one activity row.
func (r *ActivityRepository) Insert(ctx context.Context, log *models.ActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO activity_logs (id, store_id, actor, action, resource, resource_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, log.ID, log.StoreID, log.Actor, log.Action, log.Resource, log.ResourceID, log.Details, log.CreatedAt); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// ListByStore returns the most recent activity rows for a store.
func (r *ActivityRepository) ListByStore(ctx context.Context, storeID string, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, store_id, actor, action, resource, resource_id, details, created_at
FROM activity_logs WHERE store_id = $1
ORDER BY created_at DESC LIMIT $2`
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, storeID, limit); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return logs, nil
}
