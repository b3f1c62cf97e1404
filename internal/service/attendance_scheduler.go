package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

type schedulerStoreRepo interface {
	ListActive(ctx context.Context) ([]models.Store, error)
	Schedule(ctx context.Context, storeID string) (models.StoreSchedule, error)
}

type schedulerAttendanceRepo interface {
	ListOpenSessions(ctx context.Context, storeID string) ([]models.AttendanceRecord, error)
	ListOpenDailySessions(ctx context.Context, storeID string) ([]models.AttendanceRecord, error)
	CloseSession(ctx context.Context, sessionID string, checkOut time.Time, status models.AttendanceStatus, totalHours float64, now time.Time) (bool, error)
}

type lastCompletionReader interface {
	LastCompletionsForDay(ctx context.Context, storeID string, dayStart, dayEnd time.Time) ([]models.LastCompletion, error)
}

type queueClearer interface {
	ClearStoreQueue(ctx context.Context, storeID, actor string) (int, error)
	LeaveReady(ctx context.Context, employeeID, storeID string) error
}

type checkoutMetrics interface {
	AutoCheckout(trigger string)
}

// Checkout trigger labels.
const (
	TriggerClosing    = "closing"
	TriggerInactivity = "inactivity"
)

// AttendanceScheduler runs the two automatic checkout sweeps. Closing
// checkout fires once per store inside a tolerance window after closing
// time, evaluated on the store's civil clock so DST transitions shift the
// sweep with the wall clock. Inactivity checkout retires daily-paid
// employees whose last completed service is older than the timeout,
// anchoring the checkout at that completion.
//
// A schedule fault skips that store only, and a session fault skips that
// row only; one bad store or row never stalls the rest of the sweep.
type AttendanceScheduler struct {
	stores     schedulerStoreRepo
	attendance schedulerAttendanceRepo
	tickets    lastCompletionReader
	queue      queueClearer
	activity   activityWriter
	metrics    checkoutMetrics
	loc        *time.Location
	tolerance  time.Duration
	inactivity time.Duration
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time
	cancel     context.CancelFunc
}

// NewAttendanceScheduler constructs the scheduler.
func NewAttendanceScheduler(
	stores schedulerStoreRepo,
	attendance schedulerAttendanceRepo,
	tickets lastCompletionReader,
	queue queueClearer,
	activity activityWriter,
	metrics checkoutMetrics,
	loc *time.Location,
	tolerance, inactivity, interval time.Duration,
	logger *zap.Logger,
) *AttendanceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if tolerance <= 0 {
		tolerance = 30 * time.Minute
	}
	if inactivity <= 0 {
		inactivity = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AttendanceScheduler{
		stores:     stores,
		attendance: attendance,
		tickets:    tickets,
		queue:      queue,
		activity:   activity,
		metrics:    metrics,
		loc:        loc,
		tolerance:  tolerance,
		inactivity: inactivity,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the sweep loop.
func (s *AttendanceScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunClosingCheckouts(ctx)
				s.RunInactivityCheckouts(ctx)
			}
		}
	}()
	s.logger.Info("attendance scheduler started",
		zap.Duration("interval", s.interval), zap.String("timezone", s.loc.String()))
}

// Stop halts the sweep loop.
func (s *AttendanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// RunClosingCheckouts checks every active store out at closing time. Every
// open session regardless of pay type is closed at the store's closing
// instant, and the ready queue is emptied.
func (s *AttendanceScheduler) RunClosingCheckouts(ctx context.Context) {
	stores, err := s.stores.ListActive(ctx)
	if err != nil {
		s.logger.Error("closing sweep: failed to list stores", zap.Error(err))
		return
	}
	now := s.now()

	for _, store := range stores {
		closing, ok := s.closingInstant(ctx, store.ID, now)
		if !ok {
			continue
		}
		if now.Before(closing) || !now.Before(closing.Add(s.tolerance)) {
			continue
		}

		sessions, err := s.attendance.ListOpenSessions(ctx, store.ID)
		if err != nil {
			s.logger.Error("closing sweep: failed to list sessions",
				zap.String("store_id", store.ID), zap.Error(err))
			continue
		}
		for _, session := range sessions {
			s.closeSession(ctx, session, closing.UTC(), TriggerClosing, now)
		}

		if s.queue != nil {
			if _, err := s.queue.ClearStoreQueue(ctx, store.ID, models.SystemActor); err != nil {
				s.logger.Error("closing sweep: failed to clear queue",
					zap.String("store_id", store.ID), zap.Error(err))
			}
		}
	}
}

// RunInactivityCheckouts checks out daily-paid employees whose most recent
// completed service today is older than the inactivity timeout. The checkout
// is anchored at that last completion, not at sweep time, so a late sweep
// never inflates the recorded day. Employees with no completion today are
// left alone.
func (s *AttendanceScheduler) RunInactivityCheckouts(ctx context.Context) {
	stores, err := s.stores.ListActive(ctx)
	if err != nil {
		s.logger.Error("inactivity sweep: failed to list stores", zap.Error(err))
		return
	}
	now := s.now()

	for _, store := range stores {
		sessions, err := s.attendance.ListOpenDailySessions(ctx, store.ID)
		if err != nil {
			s.logger.Error("inactivity sweep: failed to list sessions",
				zap.String("store_id", store.ID), zap.Error(err))
			continue
		}
		if len(sessions) == 0 {
			continue
		}

		local := now.In(s.loc)
		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
		completions, err := s.tickets.LastCompletionsForDay(ctx, store.ID, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC())
		if err != nil {
			s.logger.Error("inactivity sweep: failed to load completions",
				zap.String("store_id", store.ID), zap.Error(err))
			continue
		}
		lastByEmployee := make(map[string]time.Time, len(completions))
		for _, c := range completions {
			lastByEmployee[c.EmployeeID] = c.CompletedAt
		}

		for _, session := range sessions {
			last, ok := lastByEmployee[session.EmployeeID]
			if !ok {
				continue
			}
			if now.Sub(last) < s.inactivity {
				continue
			}
			s.closeSession(ctx, session, last.UTC(), TriggerInactivity, now)
			if s.queue != nil {
				if err := s.queue.LeaveReady(ctx, session.EmployeeID, store.ID); err != nil {
					s.logger.Warn("inactivity sweep: failed to drop queue entry",
						zap.String("employee_id", session.EmployeeID), zap.Error(err))
				}
			}
		}
	}
}

// closingInstant resolves today's closing time for the store on its civil
// clock. Returns false on closed days and schedule faults.
func (s *AttendanceScheduler) closingInstant(ctx context.Context, storeID string, now time.Time) (time.Time, bool) {
	schedule, err := s.stores.Schedule(ctx, storeID)
	if err != nil {
		s.logger.Error("closing sweep: failed to load schedule",
			zap.String("store_id", storeID), zap.Error(err))
		return time.Time{}, false
	}
	local := now.In(s.loc)
	hours, ok := schedule[local.Weekday()]
	if !ok {
		return time.Time{}, false
	}
	closing, err := models.ResolveClock(hours.ClosesAt, local, s.loc)
	if err != nil {
		s.logger.Error("closing sweep: invalid schedule",
			zap.String("store_id", storeID), zap.String("closes_at", hours.ClosesAt), zap.Error(err))
		return time.Time{}, false
	}
	return closing, true
}

func (s *AttendanceScheduler) closeSession(ctx context.Context, session models.AttendanceRecord, checkOut time.Time, trigger string, now time.Time) {
	total := WorkedHours(session.CheckInTime, checkOut)
	ok, err := s.attendance.CloseSession(ctx, session.ID, checkOut, models.AttendanceStatusAutoCheckedOut, total, now.UTC())
	if err != nil {
		s.logger.Error("auto checkout failed",
			zap.String("session_id", session.ID),
			zap.String("employee_id", session.EmployeeID),
			zap.String("trigger", trigger),
			zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if s.metrics != nil {
		s.metrics.AutoCheckout(trigger)
	}
	if s.activity != nil {
		id := session.ID
		entry := &models.ActivityLog{
			StoreID:    session.StoreID,
			Actor:      models.SystemActor,
			Action:     models.ActivityAutoCheckedOut,
			Resource:   "attendance_record",
			ResourceID: &id,
			Details:    []byte(`{"trigger":"` + trigger + `"}`),
		}
		if err := s.activity.Insert(ctx, entry); err != nil {
			s.logger.Warn("failed to record auto checkout activity",
				zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	s.logger.Info("auto checkout",
		zap.String("employee_id", session.EmployeeID),
		zap.String("store_id", session.StoreID),
		zap.String("trigger", trigger),
		zap.Float64("total_hours", total))
}
