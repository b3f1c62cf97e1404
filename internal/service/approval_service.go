package service

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/repository"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type approvalTicketRepo interface {
	Get(ctx context.Context, id string) (*models.SaleTicket, error)
	PerformerIDs(ctx context.Context, ticketID string) ([]string, error)
	Close(ctx context.Context, p repository.CloseParams) (bool, error)
	Approve(ctx context.Context, ticketID, approverID string, at time.Time) (bool, error)
	Reject(ctx context.Context, ticketID, approverID, reason string, at time.Time) (bool, error)
	Expire(ctx context.Context, ticketID string, now time.Time) (bool, error)
	ListPendingApprovals(ctx context.Context, filter models.PendingApprovalFilter) ([]models.PendingApprovalTicket, int, error)
}

type approvalEmployeeRepo interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type activityWriter interface {
	Insert(ctx context.Context, log *models.ActivityLog) error
}

type approvalMetrics interface {
	TicketRouted(level models.ApprovalLevel, soloControl bool)
	ApprovalResolved(status models.ApprovalStatus)
}

// ApprovalService owns the close transition and the approval workflow state
// machine. Routing happens exactly once, inside CloseTicket; every later
// transition operates on the snapshot written at close time.
type ApprovalService struct {
	tickets   approvalTicketRepo
	employees approvalEmployeeRepo
	activity  activityWriter
	events    *Events
	metrics   approvalMetrics
	deadline  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs the service. The deadline is how long a
// pending ticket waits before the sweeper auto-approves it.
func NewApprovalService(
	tickets approvalTicketRepo,
	employees approvalEmployeeRepo,
	activity activityWriter,
	events *Events,
	metrics approvalMetrics,
	deadline time.Duration,
	logger *zap.Logger,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deadline <= 0 {
		deadline = 48 * time.Hour
	}
	return &ApprovalService{
		tickets:   tickets,
		employees: employees,
		activity:  activity,
		events:    events,
		metrics:   metrics,
		deadline:  deadline,
		logger:    logger,
		now:       time.Now,
	}
}

// CloseTicket closes an open ticket on behalf of closerID. It snapshots the
// closer's current roles, routes the ticket to its required approval level
// and starts the auto-approval deadline. Closing an already closed ticket
// fails with ErrTicketNotOpen regardless of who closed it first.
func (s *ApprovalService) CloseTicket(ctx context.Context, ticketID, closerID string) (*models.SaleTicket, error) {
	closer, err := s.employees.FindByID(ctx, closerID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "closer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load closer")
	}
	if !closer.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}
	if !ticket.Open() {
		return nil, appErrors.ErrTicketNotOpen
	}

	performers, err := s.tickets.PerformerIDs(ctx, ticketID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket performers")
	}

	decision := Route(RoutingInput{
		ClosedBy:      closerID,
		ClosedByRoles: closer.Roles,
		PerformerIDs:  performers,
	})

	now := s.now().UTC()
	ok, err := s.tickets.Close(ctx, repository.CloseParams{
		TicketID:      ticketID,
		ClosedBy:      closerID,
		ClosedByRoles: closer.Roles,
		ClosedAt:      now,
		Deadline:      now.Add(s.deadline),
		Decision:      decision,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close ticket")
	}
	if !ok {
		return nil, appErrors.ErrTicketNotOpen
	}

	if s.metrics != nil {
		s.metrics.TicketRouted(decision.Level, decision.SoloControl)
	}
	s.recordActivity(ctx, ticket.StoreID, closerID, models.ActivityTicketClosed, ticketID, decision)

	if s.events != nil {
		s.events.TicketClosed(ctx, models.TicketClosedEvent{
			TicketID:     ticketID,
			StoreID:      ticket.StoreID,
			ClosedBy:     closerID,
			PerformerIDs: performers,
			At:           now,
		})
	}

	closed, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload ticket")
	}
	return closed, nil
}

// Approve records an approval decision by approverID. Approving a ticket
// that is already approved or auto-approved is a no-op; approving a rejected
// ticket fails.
func (s *ApprovalService) Approve(ctx context.Context, ticketID, approverID string) error {
	ticket, approver, performers, err := s.loadDecisionContext(ctx, ticketID, approverID)
	if err != nil {
		return err
	}

	switch ticket.ApprovalStatus {
	case models.ApprovalStatusApproved, models.ApprovalStatusAutoApproved:
		return nil
	case models.ApprovalStatusPending:
	default:
		return appErrors.ErrNotPending
	}

	level := models.LevelTechnician
	if ticket.ApprovalRequiredLevel != nil {
		level = *ticket.ApprovalRequiredLevel
	}
	if err := s.checkEligibility(ticket, approver, performers, level); err != nil {
		return err
	}

	now := s.now().UTC()
	ok, err := s.tickets.Approve(ctx, ticketID, approverID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve ticket")
	}
	if !ok {
		return s.resolveLostRace(ctx, ticketID, models.ApprovalStatusApproved)
	}

	if s.metrics != nil {
		s.metrics.ApprovalResolved(models.ApprovalStatusApproved)
	}
	s.recordActivity(ctx, ticket.StoreID, approverID, models.ActivityTicketApproved, ticketID, nil)
	return nil
}

// Reject records a rejection with a mandatory reason and flags the ticket
// for admin review. Rejecting an already rejected ticket is a no-op.
func (s *ApprovalService) Reject(ctx context.Context, ticketID, approverID, reason string) error {
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	ticket, approver, performers, err := s.loadDecisionContext(ctx, ticketID, approverID)
	if err != nil {
		return err
	}

	switch ticket.ApprovalStatus {
	case models.ApprovalStatusRejected:
		return nil
	case models.ApprovalStatusPending:
	default:
		return appErrors.ErrNotPending
	}

	// Rejection eligibility is always the technician-level check: an
	// assigned performer, or anyone of supervisor rank and above.
	if err := s.checkEligibility(ticket, approver, performers, models.LevelTechnician); err != nil {
		return err
	}

	now := s.now().UTC()
	ok, err := s.tickets.Reject(ctx, ticketID, approverID, reason, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject ticket")
	}
	if !ok {
		return s.resolveLostRace(ctx, ticketID, models.ApprovalStatusRejected)
	}

	if s.metrics != nil {
		s.metrics.ApprovalResolved(models.ApprovalStatusRejected)
	}
	s.recordActivity(ctx, ticket.StoreID, approverID, models.ActivityTicketRejected, ticketID, map[string]string{"reason": reason})
	return nil
}

// ExpireTicket auto-approves one pending ticket whose deadline has lapsed.
// Auto-approval never sets approvedBy; the absence of an approver is the
// audit marker. Already auto-approved tickets are a no-op.
func (s *ApprovalService) ExpireTicket(ctx context.Context, ticketID string) error {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}

	switch ticket.ApprovalStatus {
	case models.ApprovalStatusAutoApproved:
		return nil
	case models.ApprovalStatusPending:
	default:
		return appErrors.ErrNotPending
	}

	now := s.now().UTC()
	if ticket.ApprovalDeadline == nil || ticket.ApprovalDeadline.After(now) {
		return appErrors.Clone(appErrors.ErrConflict, "approval deadline has not lapsed")
	}

	ok, err := s.tickets.Expire(ctx, ticketID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire ticket")
	}
	if !ok {
		// Another sweep or a foreground approval got there first.
		return nil
	}

	if s.metrics != nil {
		s.metrics.ApprovalResolved(models.ApprovalStatusAutoApproved)
	}
	s.recordActivity(ctx, ticket.StoreID, models.SystemActor, models.ActivityTicketAutoApproved, ticketID, nil)
	return nil
}

// GetPendingApprovals returns the approver work list for a store, oldest
// deadline first, annotated with each ticket's distinct performers.
func (s *ApprovalService) GetPendingApprovals(ctx context.Context, filter models.PendingApprovalFilter) ([]models.PendingApprovalTicket, int, error) {
	rows, total, err := s.tickets.ListPendingApprovals(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	for i := range rows {
		performers, err := s.tickets.PerformerIDs(ctx, rows[i].ID)
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket performers")
		}
		rows[i].PerformerIDs = performers
	}
	return rows, total, nil
}

func (s *ApprovalService) loadDecisionContext(ctx context.Context, ticketID, approverID string) (*models.SaleTicket, *models.Employee, []string, error) {
	approver, err := s.employees.FindByID(ctx, approverID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "approver not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approver")
	}
	if !approver.Active {
		return nil, nil, nil, appErrors.ErrInactiveAccount
	}

	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}

	performers, err := s.tickets.PerformerIDs(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket performers")
	}
	return ticket, approver, performers, nil
}

// checkEligibility enforces the three approver gates, in order: the closer
// can never decide their own ticket, the approver must satisfy the required
// level, and on a solo-control ticket a performer below manager rank is
// conflicted out. The closer-exclusion and level checks are independent and
// conjunctive.
func (s *ApprovalService) checkEligibility(ticket *models.SaleTicket, approver *models.Employee, performers []string, level models.ApprovalLevel) error {
	if ticket.ClosedBy != nil && *ticket.ClosedBy == approver.ID {
		return appErrors.ErrSelfApproval
	}

	isPerformer := contains(performers, approver.ID)
	if !approverSatisfies(level, approver.Roles, isPerformer) {
		return appErrors.ErrApprovalLevel
	}

	if ticket.PerformedAndClosedBySamePerson && isPerformer &&
		!approver.Roles.HasAny(models.RoleManager, models.RoleOwner) {
		return appErrors.ErrConflictOfInterest
	}
	return nil
}

// resolveLostRace reclassifies a guarded update that hit zero rows. The
// transition the caller wanted may have been applied concurrently, in which
// case the call succeeds idempotently.
func (s *ApprovalService) resolveLostRace(ctx context.Context, ticketID string, wanted models.ApprovalStatus) error {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return appErrors.ErrNotPending
	}
	if ticket.ApprovalStatus == wanted {
		return nil
	}
	if wanted == models.ApprovalStatusApproved && ticket.ApprovalStatus == models.ApprovalStatusAutoApproved {
		return nil
	}
	return appErrors.ErrNotPending
}

func (s *ApprovalService) recordActivity(ctx context.Context, storeID, actor, action, ticketID string, details interface{}) {
	if s.activity == nil {
		return
	}
	var payload []byte
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("failed to marshal activity details", zap.Error(err))
		} else {
			payload = raw
		}
	}
	entry := &models.ActivityLog{
		StoreID:    storeID,
		Actor:      actor,
		Action:     action,
		Resource:   "sale_ticket",
		ResourceID: &ticketID,
		Details:    payload,
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("action", action), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// approverSatisfies maps the required approval level onto who can decide
// it. Standard tickets accept an assigned performer or anyone of supervisor
// rank and above; escalated levels accept that rank or above only.
func approverSatisfies(level models.ApprovalLevel, roles models.RoleSet, isPerformer bool) bool {
	switch level {
	case models.LevelManager:
		return roles.HasAny(models.RoleManager, models.RoleOwner)
	case models.LevelSupervisor:
		return roles.HasAny(models.RoleSupervisor, models.RoleManager, models.RoleOwner)
	default:
		return isPerformer ||
			roles.HasAny(models.RoleSupervisor, models.RoleManager, models.RoleOwner)
	}
}
