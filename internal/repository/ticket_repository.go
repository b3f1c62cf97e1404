package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// TicketRepository handles persistence for sale tickets and their items.
// Every state transition is a conditionally guarded update so that
// overlapping sweeps and foreground calls converge without double
// processing.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository constructs the repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Get loads a ticket by ID.
func (r *TicketRepository) Get(ctx context.Context, id string) (*models.SaleTicket, error) {
	query := `SELECT id, store_id, opened_at, closed_at, closed_by, closed_by_roles,
        completed_at, completed_by, approval_status, approval_deadline,
        approval_required_level, approval_reason, requires_higher_approval,
        performed_and_closed_by_same_person, approved_by, approved_at,
        rejection_reason, requires_admin_review, created_at, updated_at
FROM sale_tickets WHERE id = $1`
	var ticket models.SaleTicket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

// Items returns all service lines on a ticket.
func (r *TicketRepository) Items(ctx context.Context, ticketID string) ([]models.TicketItem, error) {
	query := `SELECT id, ticket_id, employee_id, service_id, quantity, unit_price,
        completed_at, completed_by, created_at, updated_at
FROM ticket_items WHERE ticket_id = $1 ORDER BY created_at ASC`
	var items []models.TicketItem
	if err := r.db.SelectContext(ctx, &items, query, ticketID); err != nil {
		return nil, fmt.Errorf("list ticket items: %w", err)
	}
	return items, nil
}

// PerformerIDs returns the distinct employees attributed to the ticket's items.
func (r *TicketRepository) PerformerIDs(ctx context.Context, ticketID string) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT employee_id FROM ticket_items WHERE ticket_id = $1 ORDER BY employee_id`
	if err := r.db.SelectContext(ctx, &ids, query, ticketID); err != nil {
		return nil, fmt.Errorf("list ticket performers: %w", err)
	}
	return ids, nil
}

// CloseParams carries everything the close transition writes in one commit.
type CloseParams struct {
	TicketID      string
	ClosedBy      string
	ClosedByRoles models.RoleSet
	ClosedAt      time.Time
	Deadline      time.Time
	Decision      models.RoutingDecision
}

// Close moves an open ticket to pending approval, snapshotting the closer's
// roles and the routing decision. Returns false when the ticket was not open.
func (r *TicketRepository) Close(ctx context.Context, p CloseParams) (bool, error) {
	query := `UPDATE sale_tickets
SET closed_at = $2, closed_by = $3, closed_by_roles = $4,
    approval_status = $5, approval_deadline = $6,
    approval_required_level = $7, approval_reason = $8,
    requires_higher_approval = $9, performed_and_closed_by_same_person = $10,
    updated_at = $11
WHERE id = $1 AND closed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		p.TicketID, p.ClosedAt, p.ClosedBy, p.ClosedByRoles,
		models.ApprovalStatusPending, p.Deadline,
		p.Decision.Level, p.Decision.Reason,
		p.Decision.RequiresHigher, p.Decision.SoloControl,
		p.ClosedAt,
	)
	if err != nil {
		return false, fmt.Errorf("close ticket: %w", err)
	}
	return affected(res)
}

// Approve finalises a pending ticket. Returns false when the ticket was no
// longer pending.
func (r *TicketRepository) Approve(ctx context.Context, ticketID, approverID string, at time.Time) (bool, error) {
	query := `UPDATE sale_tickets
SET approval_status = $3, approved_by = $2, approved_at = $4, updated_at = $4
WHERE id = $1 AND approval_status = $5`
	res, err := r.db.ExecContext(ctx, query, ticketID, approverID, models.ApprovalStatusApproved, at, models.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("approve ticket: %w", err)
	}
	return affected(res)
}

// Reject finalises a pending ticket with a rejection reason and flags it for
// admin review. Returns false when the ticket was no longer pending.
func (r *TicketRepository) Reject(ctx context.Context, ticketID, approverID, reason string, at time.Time) (bool, error) {
	query := `UPDATE sale_tickets
SET approval_status = $3, approved_by = $2, approved_at = $4,
    rejection_reason = $5, requires_admin_review = TRUE, updated_at = $4
WHERE id = $1 AND approval_status = $6`
	res, err := r.db.ExecContext(ctx, query, ticketID, approverID, models.ApprovalStatusRejected, at, reason, models.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("reject ticket: %w", err)
	}
	return affected(res)
}

// Expire auto-approves a pending ticket whose deadline lapsed. The guard on
// status and deadline makes re-runs and overlapping sweeps no-ops.
func (r *TicketRepository) Expire(ctx context.Context, ticketID string, now time.Time) (bool, error) {
	query := `UPDATE sale_tickets
SET approval_status = $2, approved_at = $3, updated_at = $3
WHERE id = $1 AND approval_status = $4 AND approval_deadline <= $3`
	res, err := r.db.ExecContext(ctx, query, ticketID, models.ApprovalStatusAutoApproved, now, models.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("expire ticket: %w", err)
	}
	return affected(res)
}

// OverdueTicketRef identifies a pending ticket past its deadline.
type OverdueTicketRef struct {
	ID      string `db:"id"`
	StoreID string `db:"store_id"`
}

// ListOverduePending returns pending tickets whose deadline is in the past.
func (r *TicketRepository) ListOverduePending(ctx context.Context, now time.Time) ([]OverdueTicketRef, error) {
	query := `SELECT id, store_id FROM sale_tickets
WHERE approval_status = $1 AND approval_deadline < $2
ORDER BY approval_deadline ASC`
	var refs []OverdueTicketRef
	if err := r.db.SelectContext(ctx, &refs, query, models.ApprovalStatusPending, now); err != nil {
		return nil, fmt.Errorf("list overdue tickets: %w", err)
	}
	return refs, nil
}

// ListPendingApprovals returns pending tickets matching the filter, newest
// deadline first.
func (r *TicketRepository) ListPendingApprovals(ctx context.Context, filter models.PendingApprovalFilter) ([]models.PendingApprovalTicket, int, error) {
	base := `FROM sale_tickets t JOIN employees e ON e.id = t.closed_by`
	where := []string{fmt.Sprintf("t.approval_status = '%s'", models.ApprovalStatusPending)}
	args := []interface{}{}
	if filter.StoreID != "" {
		where = append(where, fmt.Sprintf("t.store_id = $%d", len(args)+1))
		args = append(args, filter.StoreID)
	}
	if filter.Level != nil {
		where = append(where, fmt.Sprintf("t.approval_required_level = $%d", len(args)+1))
		args = append(args, *filter.Level)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.store_id, t.opened_at, t.closed_at, t.closed_by, t.closed_by_roles,
        t.completed_at, t.completed_by, t.approval_status, t.approval_deadline,
        t.approval_required_level, t.approval_reason, t.requires_higher_approval,
        t.performed_and_closed_by_same_person, t.approved_by, t.approved_at,
        t.rejection_reason, t.requires_admin_review, t.created_at, t.updated_at,
        e.display_name AS closed_by_name
        %s WHERE %s
        ORDER BY t.approval_deadline ASC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.PendingApprovalTicket
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pending approvals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return rows, total, nil
}

// AddItem creates a service line on an open ticket. Fails with sql.ErrNoRows
// when the parent ticket is closed.
func (r *TicketRepository) AddItem(ctx context.Context, item *models.TicketItem) (*models.TicketItem, error) {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	query := `INSERT INTO ticket_items (id, ticket_id, employee_id, service_id, quantity, unit_price, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $7
WHERE EXISTS (SELECT 1 FROM sale_tickets WHERE id = $2 AND closed_at IS NULL)
RETURNING id, ticket_id, employee_id, service_id, quantity, unit_price, completed_at, completed_by, created_at, updated_at`
	var stored models.TicketItem
	if err := r.db.GetContext(ctx, &stored, query, item.ID, item.TicketID, item.EmployeeID, item.ServiceID, item.Quantity, item.UnitPrice, now); err != nil {
		return nil, fmt.Errorf("add ticket item: %w", err)
	}
	return &stored, nil
}

// CompleteItem marks a single service line completed. Returns false when the
// line was already completed.
func (r *TicketRepository) CompleteItem(ctx context.Context, itemID, by string, at time.Time) (bool, error) {
	query := `UPDATE ticket_items SET completed_at = $2, completed_by = $3, updated_at = $2
WHERE id = $1 AND completed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, itemID, at, by)
	if err != nil {
		return false, fmt.Errorf("complete ticket item: %w", err)
	}
	return affected(res)
}

// CompleteOpenItemsFor marks every still-open item of the employee on open
// tickets at the store as completed and returns the affected ticket IDs.
func (r *TicketRepository) CompleteOpenItemsFor(ctx context.Context, employeeID, storeID string, at time.Time) ([]string, error) {
	query := `UPDATE ticket_items ti
SET completed_at = $3, completed_by = $1, updated_at = $3
FROM sale_tickets t
WHERE ti.ticket_id = t.id
  AND ti.employee_id = $1
  AND t.store_id = $2
  AND t.closed_at IS NULL
  AND ti.completed_at IS NULL
RETURNING ti.ticket_id`
	var ticketIDs []string
	if err := r.db.SelectContext(ctx, &ticketIDs, query, employeeID, storeID, at); err != nil {
		return nil, fmt.Errorf("complete open items: %w", err)
	}
	return ticketIDs, nil
}

// MarkTicketCompleted marks the parent ticket completed when every item is
// done. Closing remains a separate receptionist action.
func (r *TicketRepository) MarkTicketCompleted(ctx context.Context, ticketID, by string, at time.Time) (bool, error) {
	query := `UPDATE sale_tickets
SET completed_at = $2, completed_by = $3, updated_at = $2
WHERE id = $1 AND closed_at IS NULL AND completed_at IS NULL
  AND NOT EXISTS (SELECT 1 FROM ticket_items WHERE ticket_id = $1 AND completed_at IS NULL)`
	res, err := r.db.ExecContext(ctx, query, ticketID, at, by)
	if err != nil {
		return false, fmt.Errorf("mark ticket completed: %w", err)
	}
	return affected(res)
}

// LastCompletionsForDay returns, per employee at the store, the most recent
// item completion timestamp within [dayStart, dayEnd).
func (r *TicketRepository) LastCompletionsForDay(ctx context.Context, storeID string, dayStart, dayEnd time.Time) ([]models.LastCompletion, error) {
	query := `SELECT ti.employee_id, MAX(ti.completed_at) AS completed_at
FROM ticket_items ti
JOIN sale_tickets t ON t.id = ti.ticket_id
WHERE t.store_id = $1 AND ti.completed_at >= $2 AND ti.completed_at < $3
GROUP BY ti.employee_id`
	var rows []models.LastCompletion
	if err := r.db.SelectContext(ctx, &rows, query, storeID, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("last completions: %w", err)
	}
	return rows, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
