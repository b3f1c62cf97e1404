package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/repository"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type fakeTicketRepo struct {
	ticket     *models.SaleTicket
	performers []string

	closeOK   bool
	approveOK bool
	rejectOK  bool
	expireOK  bool

	closeParams  *repository.CloseParams
	approveCalls int
	rejectCalls  int
	expireCalls  int
}

func (f *fakeTicketRepo) Get(context.Context, string) (*models.SaleTicket, error) {
	if f.ticket == nil {
		return nil, sql.ErrNoRows
	}
	snapshot := *f.ticket
	return &snapshot, nil
}

func (f *fakeTicketRepo) PerformerIDs(context.Context, string) ([]string, error) {
	return f.performers, nil
}

func (f *fakeTicketRepo) Close(_ context.Context, p repository.CloseParams) (bool, error) {
	f.closeParams = &p
	return f.closeOK, nil
}

func (f *fakeTicketRepo) Approve(context.Context, string, string, time.Time) (bool, error) {
	f.approveCalls++
	return f.approveOK, nil
}

func (f *fakeTicketRepo) Reject(context.Context, string, string, string, time.Time) (bool, error) {
	f.rejectCalls++
	return f.rejectOK, nil
}

func (f *fakeTicketRepo) Expire(context.Context, string, time.Time) (bool, error) {
	f.expireCalls++
	return f.expireOK, nil
}

func (f *fakeTicketRepo) ListPendingApprovals(context.Context, models.PendingApprovalFilter) ([]models.PendingApprovalTicket, int, error) {
	return nil, 0, nil
}

type fakeEmployeeRepo struct {
	employees map[string]*models.Employee
}

func (f *fakeEmployeeRepo) FindByID(_ context.Context, id string) (*models.Employee, error) {
	employee, ok := f.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return employee, nil
}

type fakeActivityRepo struct {
	entries []models.ActivityLog
}

func (f *fakeActivityRepo) Insert(_ context.Context, log *models.ActivityLog) error {
	f.entries = append(f.entries, *log)
	return nil
}

func activeEmployee(id string, roles ...models.Role) *models.Employee {
	return &models.Employee{ID: id, DisplayName: id, Roles: roles, Active: true, PayType: models.PayTypeHourly}
}

func openTicket(id string) *models.SaleTicket {
	return &models.SaleTicket{
		ID:             id,
		StoreID:        "store-1",
		OpenedAt:       time.Date(2024, 3, 6, 14, 0, 0, 0, time.UTC),
		ApprovalStatus: models.ApprovalStatusNone,
	}
}

func pendingTicket(id, closedBy string, level models.ApprovalLevel, solo bool) *models.SaleTicket {
	closedAt := time.Date(2024, 3, 6, 17, 0, 0, 0, time.UTC)
	deadline := closedAt.Add(48 * time.Hour)
	return &models.SaleTicket{
		ID:                             id,
		StoreID:                        "store-1",
		OpenedAt:                       closedAt.Add(-2 * time.Hour),
		ClosedAt:                       &closedAt,
		ClosedBy:                       &closedBy,
		ApprovalStatus:                 models.ApprovalStatusPending,
		ApprovalDeadline:               &deadline,
		ApprovalRequiredLevel:          &level,
		PerformedAndClosedBySamePerson: solo,
	}
}

func newApprovalService(tickets *fakeTicketRepo, employees *fakeEmployeeRepo, activity *fakeActivityRepo, events *Events) *ApprovalService {
	svc := NewApprovalService(tickets, employees, activity, events, nil, 48*time.Hour, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 6, 17, 0, 0, 0, time.UTC) }
	return svc
}

func TestCloseTicketRoutesAndSnapshotsRoles(t *testing.T) {
	tickets := &fakeTicketRepo{
		ticket:     openTicket("t-1"),
		performers: []string{"sup-1"},
		closeOK:    true,
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"sup-1": activeEmployee("sup-1", models.RoleSupervisor, models.RoleTechnician),
	}}
	activity := &fakeActivityRepo{}
	events := NewEvents(nil)

	var dispatched *models.TicketClosedEvent
	events.OnTicketClosed(func(_ context.Context, ev models.TicketClosedEvent) error {
		dispatched = &ev
		return nil
	})

	svc := newApprovalService(tickets, employees, activity, events)
	_, err := svc.CloseTicket(context.Background(), "t-1", "sup-1")
	require.NoError(t, err)

	require.NotNil(t, tickets.closeParams)
	assert.Equal(t, models.LevelManager, tickets.closeParams.Decision.Level)
	assert.True(t, tickets.closeParams.Decision.SoloControl)
	assert.Equal(t, models.RoleSet{models.RoleSupervisor, models.RoleTechnician}, tickets.closeParams.ClosedByRoles)
	assert.Equal(t, tickets.closeParams.ClosedAt.Add(48*time.Hour), tickets.closeParams.Deadline)

	require.NotNil(t, dispatched)
	assert.Equal(t, "t-1", dispatched.TicketID)
	assert.Equal(t, []string{"sup-1"}, dispatched.PerformerIDs)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityTicketClosed, activity.entries[0].Action)
	assert.Equal(t, "sup-1", activity.entries[0].Actor)
}

func TestCloseTicketAlreadyClosed(t *testing.T) {
	tickets := &fakeTicketRepo{ticket: pendingTicket("t-1", "recep-1", models.LevelTechnician, false)}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"recep-2": activeEmployee("recep-2", models.RoleReceptionist),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)
	_, err := svc.CloseTicket(context.Background(), "t-1", "recep-2")
	assert.ErrorIs(t, err, appErrors.ErrTicketNotOpen)
	assert.Nil(t, tickets.closeParams)
}

func TestApproveByEligiblePeer(t *testing.T) {
	tickets := &fakeTicketRepo{
		ticket:     pendingTicket("t-1", "recep-1", models.LevelTechnician, false),
		performers: []string{"tech-1"},
		approveOK:  true,
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	activity := &fakeActivityRepo{}

	svc := newApprovalService(tickets, employees, activity, nil)
	require.NoError(t, svc.Approve(context.Background(), "t-1", "tech-1"))
	assert.Equal(t, 1, tickets.approveCalls)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityTicketApproved, activity.entries[0].Action)
}

func TestApproveCloserIsRefused(t *testing.T) {
	tickets := &fakeTicketRepo{
		ticket:     pendingTicket("t-1", "recep-1", models.LevelTechnician, false),
		performers: []string{"tech-1"},
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"recep-1": activeEmployee("recep-1", models.RoleReceptionist, models.RoleSupervisor),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)
	err := svc.Approve(context.Background(), "t-1", "recep-1")
	assert.ErrorIs(t, err, appErrors.ErrSelfApproval)
	assert.Zero(t, tickets.approveCalls)
}

func TestApproveNonPerformerTechnicianFailsLevelCheck(t *testing.T) {
	tickets := &fakeTicketRepo{
		ticket:     pendingTicket("t-1", "recep-1", models.LevelTechnician, false),
		performers: []string{"tech-1"},
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-2": activeEmployee("tech-2", models.RoleTechnician),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)
	err := svc.Approve(context.Background(), "t-1", "tech-2")
	assert.ErrorIs(t, err, appErrors.ErrApprovalLevel)
}

func TestApproveManagerLevelRequiresManagerOrOwner(t *testing.T) {
	tickets := &fakeTicketRepo{
		ticket:     pendingTicket("t-1", "sup-1", models.LevelManager, true),
		performers: []string{"sup-1"},
		approveOK:  true,
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"sup-2": activeEmployee("sup-2", models.RoleSupervisor),
		"mgr-1": activeEmployee("mgr-1", models.RoleManager),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)

	err := svc.Approve(context.Background(), "t-1", "sup-2")
	assert.ErrorIs(t, err, appErrors.ErrApprovalLevel)

	require.NoError(t, svc.Approve(context.Background(), "t-1", "mgr-1"))
}

func TestApproveConflictedPerformerNeedsManager(t *testing.T) {
	ticket := pendingTicket("t-1", "emp-1", models.LevelSupervisor, true)
	tickets := &fakeTicketRepo{
		ticket:     ticket,
		performers: []string{"emp-1", "sup-2"},
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"sup-2": activeEmployee("sup-2", models.RoleSupervisor, models.RoleTechnician),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)
	err := svc.Approve(context.Background(), "t-1", "sup-2")
	assert.ErrorIs(t, err, appErrors.ErrConflictOfInterest)
}

func TestApproveTerminalStatesAreIdempotent(t *testing.T) {
	approved := pendingTicket("t-1", "recep-1", models.LevelTechnician, false)
	approved.ApprovalStatus = models.ApprovalStatusApproved
	tickets := &fakeTicketRepo{ticket: approved, performers: []string{"tech-1"}}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}

	svc := newApprovalService(tickets, employees, &fakeActivityRepo{}, nil)
	require.NoError(t, svc.Approve(context.Background(), "t-1", "tech-1"))
	assert.Zero(t, tickets.approveCalls)

	rejected := pendingTicket("t-2", "recep-1", models.LevelTechnician, false)
	rejected.ApprovalStatus = models.ApprovalStatusRejected
	tickets.ticket = rejected
	err := svc.Approve(context.Background(), "t-2", "tech-1")
	assert.ErrorIs(t, err, appErrors.ErrNotPending)
}

func TestRejectRequiresReason(t *testing.T) {
	svc := newApprovalService(&fakeTicketRepo{}, &fakeEmployeeRepo{}, &fakeActivityRepo{}, nil)
	err := svc.Reject(context.Background(), "t-1", "tech-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRejectUsesTechnicianLevelEligibility(t *testing.T) {
	// Manager-level ticket, but a performer may still reject it.
	tickets := &fakeTicketRepo{
		ticket:     pendingTicket("t-1", "recep-1", models.LevelManager, false),
		performers: []string{"tech-1"},
		rejectOK:   true,
	}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	activity := &fakeActivityRepo{}

	svc := newApprovalService(tickets, employees, activity, nil)
	require.NoError(t, svc.Reject(context.Background(), "t-1", "tech-1", "wrong services billed"))
	assert.Equal(t, 1, tickets.rejectCalls)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityTicketRejected, activity.entries[0].Action)
}

func TestExpireLapsedTicket(t *testing.T) {
	ticket := pendingTicket("t-1", "recep-1", models.LevelTechnician, false)
	lapsed := time.Date(2024, 3, 6, 16, 0, 0, 0, time.UTC)
	ticket.ApprovalDeadline = &lapsed
	tickets := &fakeTicketRepo{ticket: ticket, expireOK: true}
	activity := &fakeActivityRepo{}

	svc := newApprovalService(tickets, &fakeEmployeeRepo{}, activity, nil)
	require.NoError(t, svc.ExpireTicket(context.Background(), "t-1"))
	assert.Equal(t, 1, tickets.expireCalls)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.SystemActor, activity.entries[0].Actor)
	assert.Equal(t, models.ActivityTicketAutoApproved, activity.entries[0].Action)
}

func TestExpireBeforeDeadlineIsRefused(t *testing.T) {
	ticket := pendingTicket("t-1", "recep-1", models.LevelTechnician, false)
	tickets := &fakeTicketRepo{ticket: ticket}

	svc := newApprovalService(tickets, &fakeEmployeeRepo{}, &fakeActivityRepo{}, nil)
	err := svc.ExpireTicket(context.Background(), "t-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, tickets.expireCalls)
}

func TestExpireIsIdempotent(t *testing.T) {
	ticket := pendingTicket("t-1", "recep-1", models.LevelTechnician, false)
	ticket.ApprovalStatus = models.ApprovalStatusAutoApproved
	tickets := &fakeTicketRepo{ticket: ticket}

	svc := newApprovalService(tickets, &fakeEmployeeRepo{}, &fakeActivityRepo{}, nil)
	require.NoError(t, svc.ExpireTicket(context.Background(), "t-1"))
	require.NoError(t, svc.ExpireTicket(context.Background(), "t-1"))
	assert.Zero(t, tickets.expireCalls)
}
