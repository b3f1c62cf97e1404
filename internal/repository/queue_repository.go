package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// QueueRepository persists the per-store technician ready queue. At most one
// row exists per (employee, store); absence of a row means neutral.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Get returns the queue entry for the employee at the store, or nil.
func (r *QueueRepository) Get(ctx context.Context, employeeID, storeID string) (*models.TechnicianQueueEntry, error) {
	query := `SELECT id, employee_id, store_id, status, ready_at, current_open_ticket_id, created_at
FROM technician_queue WHERE employee_id = $1 AND store_id = $2`
	var entry models.TechnicianQueueEntry
	if err := r.db.GetContext(ctx, &entry, query, employeeID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return &entry, nil
}

// UpsertReady replaces any existing entry with a fresh ready entry at the
// given timestamp.
func (r *QueueRepository) UpsertReady(ctx context.Context, employeeID, storeID string, readyAt time.Time) (*models.TechnicianQueueEntry, error) {
	query := `INSERT INTO technician_queue (id, employee_id, store_id, status, ready_at, current_open_ticket_id, created_at)
VALUES ($1, $2, $3, $4, $5, NULL, $5)
ON CONFLICT (employee_id, store_id)
DO UPDATE SET status = EXCLUDED.status, ready_at = EXCLUDED.ready_at, current_open_ticket_id = NULL
RETURNING id, employee_id, store_id, status, ready_at, current_open_ticket_id, created_at`
	var entry models.TechnicianQueueEntry
	if err := r.db.GetContext(ctx, &entry, query, uuid.NewString(), employeeID, storeID, models.QueueStatusReady, readyAt); err != nil {
		return nil, fmt.Errorf("upsert ready entry: %w", err)
	}
	return &entry, nil
}

// Remove deletes the employee's entry at the store.
func (r *QueueRepository) Remove(ctx context.Context, employeeID, storeID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM technician_queue WHERE employee_id = $1 AND store_id = $2`, employeeID, storeID); err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

// RemovePerformers deletes queue entries for every performer on the ticket,
// scoped to the ticket's store.
func (r *QueueRepository) RemovePerformers(ctx context.Context, ticketID string) error {
	query := `DELETE FROM technician_queue q
USING sale_tickets t
WHERE t.id = $1 AND q.store_id = t.store_id
  AND q.employee_id IN (SELECT employee_id FROM ticket_items WHERE ticket_id = $1)`
	if _, err := r.db.ExecContext(ctx, query, ticketID); err != nil {
		return fmt.Errorf("remove ticket performers from queue: %w", err)
	}
	return nil
}

// ClearStore removes every queue entry at the store and returns the count.
func (r *QueueRepository) ClearStore(ctx context.Context, storeID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM technician_queue WHERE store_id = $1`, storeID)
	if err != nil {
		return 0, fmt.Errorf("clear store queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ListReady returns the store's ready entries in FIFO order.
func (r *QueueRepository) ListReady(ctx context.Context, storeID string) ([]models.TechnicianQueueEntry, error) {
	query := `SELECT id, employee_id, store_id, status, ready_at, current_open_ticket_id, created_at
FROM technician_queue
WHERE store_id = $1 AND status = $2
ORDER BY ready_at ASC`
	var entries []models.TechnicianQueueEntry
	if err := r.db.SelectContext(ctx, &entries, query, storeID, models.QueueStatusReady); err != nil {
		return nil, fmt.Errorf("list ready entries: %w", err)
	}
	return entries, nil
}

// BusyTechnicians returns, per employee with any item on an open and not yet
// completed ticket at the store, the oldest such ticket for ETA ordering.
func (r *QueueRepository) BusyTechnicians(ctx context.Context, storeID string) ([]models.BusyTechnician, error) {
	query := `SELECT DISTINCT ON (ti.employee_id)
        ti.employee_id, t.id AS oldest_open_ticket_id, t.opened_at AS oldest_open_ticket_at
FROM ticket_items ti
JOIN sale_tickets t ON t.id = ti.ticket_id
WHERE t.store_id = $1 AND t.closed_at IS NULL AND t.completed_at IS NULL
ORDER BY ti.employee_id, t.opened_at ASC`
	var rows []models.BusyTechnician
	if err := r.db.SelectContext(ctx, &rows, query, storeID); err != nil {
		return nil, fmt.Errorf("list busy technicians: %w", err)
	}
	return rows, nil
}
