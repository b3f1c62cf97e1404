package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type fakeQueueRepo struct {
	entries map[string]models.TechnicianQueueEntry
	ready   []models.TechnicianQueueEntry
	busy    []models.BusyTechnician

	upserted    *models.TechnicianQueueEntry
	removed     []string
	clearResult int
	clearCalls  int
}

func (f *fakeQueueRepo) Get(_ context.Context, employeeID, _ string) (*models.TechnicianQueueEntry, error) {
	entry, ok := f.entries[employeeID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeQueueRepo) UpsertReady(_ context.Context, employeeID, storeID string, readyAt time.Time) (*models.TechnicianQueueEntry, error) {
	entry := models.TechnicianQueueEntry{
		EmployeeID: employeeID,
		StoreID:    storeID,
		Status:     models.QueueStatusReady,
		ReadyAt:    readyAt,
	}
	f.upserted = &entry
	return &entry, nil
}

func (f *fakeQueueRepo) Remove(_ context.Context, employeeID, _ string) error {
	f.removed = append(f.removed, employeeID)
	return nil
}

func (f *fakeQueueRepo) RemovePerformers(context.Context, string) error { return nil }

func (f *fakeQueueRepo) ClearStore(context.Context, string) (int, error) {
	f.clearCalls++
	return f.clearResult, nil
}

func (f *fakeQueueRepo) ListReady(context.Context, string) ([]models.TechnicianQueueEntry, error) {
	return f.ready, nil
}

func (f *fakeQueueRepo) BusyTechnicians(context.Context, string) ([]models.BusyTechnician, error) {
	return f.busy, nil
}

type fakeQueueEmployees struct {
	employees map[string]*models.Employee
	eligible  []models.EligibleTechnician
}

func (f *fakeQueueEmployees) FindByID(_ context.Context, id string) (*models.Employee, error) {
	if employee, ok := f.employees[id]; ok {
		return employee, nil
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeQueueEmployees) AssignedToStore(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeQueueEmployees) ListEligibleTechnicians(context.Context, string) ([]models.EligibleTechnician, error) {
	return f.eligible, nil
}

type fakeAttendanceReader struct {
	session *models.AttendanceRecord
}

func (f *fakeAttendanceReader) OpenSession(context.Context, string, string) (*models.AttendanceRecord, error) {
	return f.session, nil
}

type fakeQueueTickets struct {
	openItems []string
	completed []string
}

func (f *fakeQueueTickets) CompleteOpenItemsFor(context.Context, string, string, time.Time) ([]string, error) {
	return f.openItems, nil
}

func (f *fakeQueueTickets) MarkTicketCompleted(_ context.Context, ticketID, _ string, _ time.Time) (bool, error) {
	f.completed = append(f.completed, ticketID)
	return true, nil
}

type fakeStores struct {
	schedule models.StoreSchedule
}

func (f *fakeStores) Schedule(context.Context, string) (models.StoreSchedule, error) {
	return f.schedule, nil
}

func wednesdaySchedule(opensAt, closesAt string) models.StoreSchedule {
	return models.StoreSchedule{
		time.Wednesday: {StoreID: "store-1", Weekday: time.Wednesday, OpensAt: opensAt, ClosesAt: closesAt},
	}
}

// Wednesday 2024-03-06.
func queueTestClock(hh, mm int) func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 6, hh, mm, 0, 0, time.UTC) }
}

func newQueueServiceForTest(queue *fakeQueueRepo, employees *fakeQueueEmployees, attendance *fakeAttendanceReader, tickets *fakeQueueTickets, stores *fakeStores) *QueueService {
	svc := NewQueueService(queue, employees, attendance, tickets, stores, nil, nil, nil,
		time.UTC, 15*time.Minute, time.Minute, nil)
	svc.now = queueTestClock(10, 0)
	return svc
}

func TestJoinReadyRequiresOpenSession(t *testing.T) {
	queue := &fakeQueueRepo{}
	employees := &fakeQueueEmployees{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	svc := newQueueServiceForTest(queue, employees, &fakeAttendanceReader{}, &fakeQueueTickets{},
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")})

	_, err := svc.JoinReady(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrCheckInRequired)
	assert.Nil(t, queue.upserted)
}

func TestJoinReadyBeforeStoreWindow(t *testing.T) {
	queue := &fakeQueueRepo{}
	employees := &fakeQueueEmployees{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	attendance := &fakeAttendanceReader{session: &models.AttendanceRecord{EmployeeID: "tech-1"}}
	svc := newQueueServiceForTest(queue, employees, attendance, &fakeQueueTickets{},
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")})
	svc.now = queueTestClock(8, 30)

	_, err := svc.JoinReady(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrStoreClosed)

	// 08:45 is exactly opening minus the early window.
	svc.now = queueTestClock(8, 45)
	_, err = svc.JoinReady(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
}

func TestJoinReadyWithoutSchedule(t *testing.T) {
	employees := &fakeQueueEmployees{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	attendance := &fakeAttendanceReader{session: &models.AttendanceRecord{EmployeeID: "tech-1"}}
	svc := newQueueServiceForTest(&fakeQueueRepo{}, employees, attendance, &fakeQueueTickets{}, &fakeStores{})

	_, err := svc.JoinReady(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrScheduleUnavailable)
}

func TestJoinReadyCompletesOpenItemsFirst(t *testing.T) {
	queue := &fakeQueueRepo{}
	employees := &fakeQueueEmployees{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	attendance := &fakeAttendanceReader{session: &models.AttendanceRecord{EmployeeID: "tech-1"}}
	tickets := &fakeQueueTickets{openItems: []string{"t-1", "t-2"}}
	svc := newQueueServiceForTest(queue, employees, attendance, tickets,
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")})

	entry, err := svc.JoinReady(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, tickets.completed)
	assert.Equal(t, models.QueueStatusReady, entry.Status)
	assert.Equal(t, queueTestClock(10, 0)().UTC(), entry.ReadyAt)
}

func TestJoinReadyRefusesInactiveEmployee(t *testing.T) {
	inactive := activeEmployee("tech-1", models.RoleTechnician)
	inactive.Active = false
	employees := &fakeQueueEmployees{employees: map[string]*models.Employee{"tech-1": inactive}}
	svc := newQueueServiceForTest(&fakeQueueRepo{}, employees, &fakeAttendanceReader{}, &fakeQueueTickets{},
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")})

	_, err := svc.JoinReady(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestCheckStatusBusyOverridesStaleReadyRow(t *testing.T) {
	queue := &fakeQueueRepo{
		entries: map[string]models.TechnicianQueueEntry{
			"tech-1": {EmployeeID: "tech-1", Status: models.QueueStatusReady},
		},
		busy: []models.BusyTechnician{{EmployeeID: "tech-1", OldestOpenTicketID: "t-1"}},
	}
	svc := newQueueServiceForTest(queue, &fakeQueueEmployees{}, &fakeAttendanceReader{}, &fakeQueueTickets{}, &fakeStores{})

	status, err := svc.CheckStatus(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
	assert.Equal(t, models.TechnicianStatusBusy, status)

	status, err = svc.CheckStatus(context.Background(), "tech-2", "store-1")
	require.NoError(t, err)
	assert.Equal(t, models.TechnicianStatusNeutral, status)
}

func TestOrderedViewSegmentsAndPositions(t *testing.T) {
	base := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	queue := &fakeQueueRepo{
		ready: []models.TechnicianQueueEntry{
			{EmployeeID: "ready-late", ReadyAt: base.Add(30 * time.Minute)},
			{EmployeeID: "ready-early", ReadyAt: base.Add(10 * time.Minute)},
			// Stale ready row for a technician who is actually busy.
			{EmployeeID: "busy-old", ReadyAt: base},
		},
		busy: []models.BusyTechnician{
			{EmployeeID: "busy-new", OldestOpenTicketID: "t-2", OldestOpenTicketAt: base.Add(20 * time.Minute)},
			{EmployeeID: "busy-old", OldestOpenTicketID: "t-1", OldestOpenTicketAt: base},
		},
	}
	employees := &fakeQueueEmployees{eligible: []models.EligibleTechnician{
		{ID: "busy-new", DisplayName: "Dana"},
		{ID: "ready-late", DisplayName: "Alice"},
		{ID: "neutral-1", DisplayName: "Bob"},
		{ID: "busy-old", DisplayName: "Carol"},
		{ID: "ready-early", DisplayName: "Eve"},
	}}
	svc := newQueueServiceForTest(queue, employees, &fakeAttendanceReader{}, &fakeQueueTickets{}, &fakeStores{})

	view, err := svc.OrderedView(context.Background(), "store-1")
	require.NoError(t, err)
	require.Len(t, view, 5)

	var order []string
	for i, row := range view {
		order = append(order, row.EmployeeID)
		assert.Equal(t, i+1, row.Position)
	}
	// Ready FIFO, then neutral by name, then busy by oldest open ticket.
	assert.Equal(t, []string{"ready-early", "ready-late", "neutral-1", "busy-old", "busy-new"}, order)

	assert.Equal(t, models.TechnicianStatusBusy, view[3].Status)
	require.NotNil(t, view[3].CurrentTicketID)
	assert.Equal(t, "t-1", *view[3].CurrentTicketID)
	assert.Equal(t, models.TechnicianStatusNeutral, view[2].Status)
}

func TestClearStoreQueueSkipsAuditWhenEmpty(t *testing.T) {
	queue := &fakeQueueRepo{clearResult: 0}
	activity := &fakeActivityRepo{}
	svc := NewQueueService(queue, &fakeQueueEmployees{}, &fakeAttendanceReader{}, &fakeQueueTickets{}, &fakeStores{},
		nil, activity, nil, time.UTC, 15*time.Minute, time.Minute, nil)

	removed, err := svc.ClearStoreQueue(context.Background(), "store-1", models.SystemActor)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Empty(t, activity.entries)

	queue.clearResult = 3
	removed, err = svc.ClearStoreQueue(context.Background(), "store-1", models.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityQueueCleared, activity.entries[0].Action)
	assert.Equal(t, models.SystemActor, activity.entries[0].Actor)
}

func TestHandleTicketItemAssignedEvictsPerformer(t *testing.T) {
	queue := &fakeQueueRepo{}
	svc := newQueueServiceForTest(queue, &fakeQueueEmployees{}, &fakeAttendanceReader{}, &fakeQueueTickets{}, &fakeStores{})

	err := svc.HandleTicketItemAssigned(context.Background(), models.TicketItemAssignedEvent{
		TicketID:   "t-1",
		StoreID:    "store-1",
		EmployeeID: "tech-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-1"}, queue.removed)
}
