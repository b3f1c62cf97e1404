package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// StoreRepository reads store identity and operating-hour configuration.
type StoreRepository struct {
	db *sqlx.DB
}

// NewStoreRepository constructs the repository.
func NewStoreRepository(db *sqlx.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// ListActive returns every active store.
func (r *StoreRepository) ListActive(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	query := `SELECT id, name, active FROM stores WHERE active = TRUE ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// Schedule returns the store's weekly operating hours. Weekdays without a
// row are closed days.
func (r *StoreRepository) Schedule(ctx context.Context, storeID string) (models.StoreSchedule, error) {
	query := `SELECT store_id, weekday, opens_at, closes_at FROM store_schedules WHERE store_id = $1`
	var rows []models.StoreDayHours
	if err := r.db.SelectContext(ctx, &rows, query, storeID); err != nil {
		return nil, fmt.Errorf("load store schedule: %w", err)
	}
	schedule := make(models.StoreSchedule, len(rows))
	for _, row := range rows {
		schedule[row.Weekday] = row
	}
	return schedule, nil
}
