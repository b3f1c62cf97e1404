package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type attendanceRepo interface {
	OpenSession(ctx context.Context, employeeID, storeID string) (*models.AttendanceRecord, error)
	CheckIn(ctx context.Context, employeeID, storeID string, payType models.PayType, at time.Time) (*models.AttendanceRecord, error)
	CloseSession(ctx context.Context, sessionID string, checkOut time.Time, status models.AttendanceStatus, totalHours float64, now time.Time) (bool, error)
}

type scheduleReader interface {
	Schedule(ctx context.Context, storeID string) (models.StoreSchedule, error)
}

type queueLeaver interface {
	LeaveReady(ctx context.Context, employeeID, storeID string) error
}

// AttendanceService handles manual check-in and check-out. All wall-clock
// decisions are made in the store timezone; timestamps are stored in UTC.
type AttendanceService struct {
	attendance  attendanceRepo
	employees   approvalEmployeeRepo
	stores      scheduleReader
	queue       queueLeaver
	activity    activityWriter
	loc         *time.Location
	earlyWindow time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs the service. earlyWindow is how long
// before opening time check-in becomes available.
func NewAttendanceService(
	attendance attendanceRepo,
	employees approvalEmployeeRepo,
	stores scheduleReader,
	queue queueLeaver,
	activity activityWriter,
	loc *time.Location,
	earlyWindow time.Duration,
	logger *zap.Logger,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		attendance:  attendance,
		employees:   employees,
		stores:      stores,
		queue:       queue,
		activity:    activity,
		loc:         loc,
		earlyWindow: earlyWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// CheckIn opens an attendance session at the store. Check-in opens a short
// window before the store does and is refused on closed days and while an
// earlier session is still open.
func (s *AttendanceService) CheckIn(ctx context.Context, employeeID, storeID string) (*models.AttendanceRecord, error) {
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !employee.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	schedule, err := s.stores.Schedule(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load store schedule")
	}
	if len(schedule) == 0 {
		return nil, appErrors.ErrScheduleUnavailable
	}

	now := s.now()
	local := now.In(s.loc)
	hours, ok := schedule[local.Weekday()]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrStoreClosed, "store is closed today")
	}
	opens, err := models.ResolveClock(hours.OpensAt, local, s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid store schedule")
	}
	if now.Before(opens.Add(-s.earlyWindow)) {
		return nil, appErrors.ErrStoreClosed
	}

	record, err := s.attendance.CheckIn(ctx, employeeID, storeID, employee.PayType, now.UTC())
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyCheckedIn
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in")
	}

	s.recordAttendanceActivity(ctx, storeID, employeeID, models.ActivityCheckedIn, record.ID)
	return record, nil
}

// CheckOut closes the employee's open session and drops them from the ready
// queue. Checking out without an open session fails.
func (s *AttendanceService) CheckOut(ctx context.Context, employeeID, storeID string) (*models.AttendanceRecord, error) {
	session, err := s.attendance.OpenSession(ctx, employeeID, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if session == nil {
		return nil, appErrors.ErrAlreadyCheckedOut
	}

	now := s.now().UTC()
	total := WorkedHours(session.CheckInTime, now)
	ok, err := s.attendance.CloseSession(ctx, session.ID, now, models.AttendanceStatusCheckedOut, total, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}
	if !ok {
		return nil, appErrors.ErrAlreadyCheckedOut
	}

	if s.queue != nil {
		if err := s.queue.LeaveReady(ctx, employeeID, storeID); err != nil {
			s.logger.Warn("failed to drop queue entry on checkout",
				zap.String("employee_id", employeeID), zap.Error(err))
		}
	}

	session.CheckOutTime = &now
	session.Status = models.AttendanceStatusCheckedOut
	session.TotalHours = &total
	s.recordAttendanceActivity(ctx, storeID, employeeID, models.ActivityCheckedOut, session.ID)
	return session, nil
}

func (s *AttendanceService) recordAttendanceActivity(ctx context.Context, storeID, actor, action, sessionID string) {
	if s.activity == nil {
		return
	}
	id := sessionID
	entry := &models.ActivityLog{
		StoreID:    storeID,
		Actor:      actor,
		Action:     action,
		Resource:   "attendance_record",
		ResourceID: &id,
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record attendance activity",
			zap.String("action", action), zap.Error(err))
	}
}

// WorkedHours computes hours between check-in and checkout, clamped at zero
// and rounded to two decimals. A checkout anchored before check-in (a late
// inactivity sweep) never yields negative hours.
func WorkedHours(checkIn, checkOut time.Time) float64 {
	d := checkOut.Sub(checkIn)
	if d < 0 {
		d = 0
	}
	return math.Round(d.Hours()*100) / 100
}
