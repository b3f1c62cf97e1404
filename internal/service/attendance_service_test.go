package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	session     *models.AttendanceRecord
	checkInErr  error
	checkedIn   *models.AttendanceRecord
	closeOK     bool
	closedHours float64
	closedAt    *time.Time
}

func (f *fakeAttendanceRepo) OpenSession(context.Context, string, string) (*models.AttendanceRecord, error) {
	return f.session, nil
}

func (f *fakeAttendanceRepo) CheckIn(_ context.Context, employeeID, storeID string, payType models.PayType, at time.Time) (*models.AttendanceRecord, error) {
	if f.checkInErr != nil {
		return nil, f.checkInErr
	}
	record := &models.AttendanceRecord{
		ID:          "sess-1",
		EmployeeID:  employeeID,
		StoreID:     storeID,
		CheckInTime: at,
		Status:      models.AttendanceStatusCheckedIn,
		PayType:     payType,
	}
	f.checkedIn = record
	return record, nil
}

func (f *fakeAttendanceRepo) CloseSession(_ context.Context, _ string, checkOut time.Time, _ models.AttendanceStatus, totalHours float64, _ time.Time) (bool, error) {
	f.closedAt = &checkOut
	f.closedHours = totalHours
	return f.closeOK, nil
}

func newAttendanceServiceForTest(repo *fakeAttendanceRepo, employees *fakeEmployeeRepo, stores *fakeStores, queue *fakeQueueClearer, activity *fakeActivityRepo) *AttendanceService {
	svc := NewAttendanceService(repo, employees, stores, queue, activity, time.UTC, 15*time.Minute, nil)
	svc.now = queueTestClock(10, 0)
	return svc
}

func TestCheckInHappyPath(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	activity := &fakeActivityRepo{}
	svc := newAttendanceServiceForTest(repo, employees,
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")}, &fakeQueueClearer{}, activity)

	record, err := svc.CheckIn(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusCheckedIn, record.Status)
	assert.Equal(t, models.PayTypeHourly, record.PayType)
	assert.Equal(t, queueTestClock(10, 0)().UTC(), record.CheckInTime)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityCheckedIn, activity.entries[0].Action)
}

func TestCheckInBeforeWindowIsRefused(t *testing.T) {
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	svc := newAttendanceServiceForTest(&fakeAttendanceRepo{}, employees,
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")}, &fakeQueueClearer{}, &fakeActivityRepo{})
	svc.now = queueTestClock(8, 30)

	_, err := svc.CheckIn(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrStoreClosed)

	svc.now = queueTestClock(8, 45)
	_, err = svc.CheckIn(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
}

func TestCheckInOnClosedDay(t *testing.T) {
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	schedule := models.StoreSchedule{
		time.Monday: {Weekday: time.Monday, OpensAt: "09:00", ClosesAt: "17:30"},
	}
	svc := newAttendanceServiceForTest(&fakeAttendanceRepo{}, employees,
		&fakeStores{schedule: schedule}, &fakeQueueClearer{}, &fakeActivityRepo{})

	_, err := svc.CheckIn(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrStoreClosed)
}

func TestCheckInWithoutSchedule(t *testing.T) {
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	svc := newAttendanceServiceForTest(&fakeAttendanceRepo{}, employees, &fakeStores{}, &fakeQueueClearer{}, &fakeActivityRepo{})

	_, err := svc.CheckIn(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrScheduleUnavailable)
}

func TestCheckInTwiceIsRefused(t *testing.T) {
	repo := &fakeAttendanceRepo{checkInErr: sql.ErrNoRows}
	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{
		"tech-1": activeEmployee("tech-1", models.RoleTechnician),
	}}
	svc := newAttendanceServiceForTest(repo, employees,
		&fakeStores{schedule: wednesdaySchedule("09:00", "17:30")}, &fakeQueueClearer{}, &fakeActivityRepo{})

	_, err := svc.CheckIn(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCheckedIn)
}

func TestCheckOutClosesSessionAndDropsQueueEntry(t *testing.T) {
	checkIn := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	repo := &fakeAttendanceRepo{
		session: &models.AttendanceRecord{
			ID:          "sess-1",
			EmployeeID:  "tech-1",
			StoreID:     "store-1",
			CheckInTime: checkIn,
			Status:      models.AttendanceStatusCheckedIn,
		},
		closeOK: true,
	}
	queue := &fakeQueueClearer{}
	activity := &fakeActivityRepo{}
	svc := newAttendanceServiceForTest(repo, &fakeEmployeeRepo{}, &fakeStores{}, queue, activity)
	svc.now = queueTestClock(17, 15)

	record, err := svc.CheckOut(context.Background(), "tech-1", "store-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusCheckedOut, record.Status)
	require.NotNil(t, record.TotalHours)
	assert.InDelta(t, 8.25, *record.TotalHours, 0.001)
	assert.Equal(t, []string{"tech-1"}, queue.left)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.ActivityCheckedOut, activity.entries[0].Action)
}

func TestCheckOutWithoutOpenSession(t *testing.T) {
	svc := newAttendanceServiceForTest(&fakeAttendanceRepo{}, &fakeEmployeeRepo{}, &fakeStores{}, &fakeQueueClearer{}, &fakeActivityRepo{})

	_, err := svc.CheckOut(context.Background(), "tech-1", "store-1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCheckedOut)
}

func TestWorkedHours(t *testing.T) {
	in := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 8.5, WorkedHours(in, in.Add(8*time.Hour+30*time.Minute)))
	assert.Equal(t, 0.25, WorkedHours(in, in.Add(15*time.Minute)))
	// A checkout anchored before the check-in clamps to zero.
	assert.Equal(t, 0.0, WorkedHours(in, in.Add(-time.Hour)))
	// Rounded to two decimals.
	assert.Equal(t, 1.01, WorkedHours(in, in.Add(time.Hour+30*time.Second)))
}
