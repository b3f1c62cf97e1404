package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

const queueViewKeyPrefix = "queue:view:"

type queueRepo interface {
	Get(ctx context.Context, employeeID, storeID string) (*models.TechnicianQueueEntry, error)
	UpsertReady(ctx context.Context, employeeID, storeID string, readyAt time.Time) (*models.TechnicianQueueEntry, error)
	Remove(ctx context.Context, employeeID, storeID string) error
	RemovePerformers(ctx context.Context, ticketID string) error
	ClearStore(ctx context.Context, storeID string) (int, error)
	ListReady(ctx context.Context, storeID string) ([]models.TechnicianQueueEntry, error)
	BusyTechnicians(ctx context.Context, storeID string) ([]models.BusyTechnician, error)
}

type queueEmployeeRepo interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	AssignedToStore(ctx context.Context, employeeID, storeID string) (bool, error)
	ListEligibleTechnicians(ctx context.Context, storeID string) ([]models.EligibleTechnician, error)
}

type openSessionReader interface {
	OpenSession(ctx context.Context, employeeID, storeID string) (*models.AttendanceRecord, error)
}

type queueTicketRepo interface {
	CompleteOpenItemsFor(ctx context.Context, employeeID, storeID string, at time.Time) ([]string, error)
	MarkTicketCompleted(ctx context.Context, ticketID, by string, at time.Time) (bool, error)
}

// QueueViewCache abstracts the Redis-backed cache for the ordered view.
type QueueViewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type queueMetrics interface {
	QueueJoined()
	QueueCleared(removed int)
}

type storeScheduleReader interface {
	Schedule(ctx context.Context, storeID string) (models.StoreSchedule, error)
}

// QueueService manages the per-store technician ready queue and derives the
// ordered floor view. Ready state is explicit opt-in; busy state is derived
// from open ticket items, so a technician can never be both.
type QueueService struct {
	queue       queueRepo
	employees   queueEmployeeRepo
	attendance  openSessionReader
	tickets     queueTicketRepo
	stores      storeScheduleReader
	cache       QueueViewCache
	activity    activityWriter
	metrics     queueMetrics
	loc         *time.Location
	earlyWindow time.Duration
	viewTTL     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewQueueService constructs the service. cache may be nil to disable the
// view cache entirely.
func NewQueueService(
	queue queueRepo,
	employees queueEmployeeRepo,
	attendance openSessionReader,
	tickets queueTicketRepo,
	stores storeScheduleReader,
	cache QueueViewCache,
	activity activityWriter,
	metrics queueMetrics,
	loc *time.Location,
	earlyWindow, viewTTL time.Duration,
	logger *zap.Logger,
) *QueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if viewTTL <= 0 {
		viewTTL = 15 * time.Second
	}
	return &QueueService{
		queue:       queue,
		employees:   employees,
		attendance:  attendance,
		tickets:     tickets,
		stores:      stores,
		cache:       cache,
		activity:    activity,
		metrics:     metrics,
		loc:         loc,
		earlyWindow: earlyWindow,
		viewTTL:     viewTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// JoinReady appends the employee to the back of the store's ready queue.
// Joining requires an open attendance session. Re-joining always yields a
// fresh, later readyAt; any service lines the employee still had open at the
// store are completed first, since tapping ready asserts the chair is free.
func (s *QueueService) JoinReady(ctx context.Context, employeeID, storeID string) (*models.TechnicianQueueEntry, error) {
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

	assigned, err := s.employees.AssignedToStore(ctx, employeeID, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check store assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "employee is not assigned to this store")
	}

	session, err := s.attendance.OpenSession(ctx, employeeID, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if session == nil {
		return nil, appErrors.ErrCheckInRequired
	}

	if err := s.checkStoreWindow(ctx, storeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ticketIDs, err := s.tickets.CompleteOpenItemsFor(ctx, employeeID, storeID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete open items")
	}
	for _, ticketID := range ticketIDs {
		if _, err := s.tickets.MarkTicketCompleted(ctx, ticketID, employeeID, now); err != nil {
			s.logger.Warn("failed to mark ticket completed on rejoin",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	entry, err := s.queue.UpsertReady(ctx, employeeID, storeID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join ready queue")
	}

	if s.metrics != nil {
		s.metrics.QueueJoined()
	}
	s.recordQueueActivity(ctx, storeID, employeeID, models.ActivityQueueJoined, employeeID)
	s.invalidateView(ctx, storeID)
	return entry, nil
}

// LeaveReady removes the employee from the queue, returning them to neutral.
// Leaving while not queued is a no-op.
func (s *QueueService) LeaveReady(ctx context.Context, employeeID, storeID string) error {
	if err := s.queue.Remove(ctx, employeeID, storeID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave ready queue")
	}
	s.recordQueueActivity(ctx, storeID, employeeID, models.ActivityQueueLeft, employeeID)
	s.invalidateView(ctx, storeID)
	return nil
}

// CheckStatus reports the employee's derived floor status at the store.
func (s *QueueService) CheckStatus(ctx context.Context, employeeID, storeID string) (models.TechnicianStatus, error) {
	busy, err := s.queue.BusyTechnicians(ctx, storeID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive busy set")
	}
	for _, b := range busy {
		if b.EmployeeID == employeeID {
			return models.TechnicianStatusBusy, nil
		}
	}

	entry, err := s.queue.Get(ctx, employeeID, storeID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue entry")
	}
	if entry != nil {
		return models.TechnicianStatusReady, nil
	}
	return models.TechnicianStatusNeutral, nil
}

// OrderedView builds the store's floor view: ready technicians in FIFO
// order, then neutral technicians by name, then busy technicians ordered by
// the age of their oldest open ticket. Served from cache when fresh.
func (s *QueueService) OrderedView(ctx context.Context, storeID string) ([]models.TechnicianView, error) {
	key := queueViewKeyPrefix + storeID
	if s.cache != nil {
		var cached []models.TechnicianView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !stdErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("queue view cache read failed", zap.Error(err))
		}
	}

	view, err := s.buildView(ctx, storeID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.viewTTL); err != nil {
			s.logger.Warn("queue view cache write failed", zap.Error(err))
		}
	}
	return view, nil
}

func (s *QueueService) buildView(ctx context.Context, storeID string) ([]models.TechnicianView, error) {
	eligible, err := s.employees.ListEligibleTechnicians(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list technicians")
	}
	readyEntries, err := s.queue.ListReady(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ready queue")
	}
	busyRows, err := s.queue.BusyTechnicians(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive busy set")
	}

	readyByID := make(map[string]models.TechnicianQueueEntry, len(readyEntries))
	for _, e := range readyEntries {
		readyByID[e.EmployeeID] = e
	}
	busyByID := make(map[string]models.BusyTechnician, len(busyRows))
	for _, b := range busyRows {
		busyByID[b.EmployeeID] = b
	}

	var ready, busy, neutral []models.TechnicianView
	for _, tech := range eligible {
		row := models.TechnicianView{EmployeeID: tech.ID, DisplayName: tech.DisplayName}
		// Busy wins: an open item overrides a stale ready row.
		if b, ok := busyByID[tech.ID]; ok {
			row.Status = models.TechnicianStatusBusy
			ticketID := b.OldestOpenTicketID
			at := b.OldestOpenTicketAt
			row.CurrentTicketID = &ticketID
			row.OldestOpenTicketAt = &at
			busy = append(busy, row)
			continue
		}
		if e, ok := readyByID[tech.ID]; ok {
			row.Status = models.TechnicianStatusReady
			readyAt := e.ReadyAt
			row.ReadyAt = &readyAt
			ready = append(ready, row)
			continue
		}
		row.Status = models.TechnicianStatusNeutral
		neutral = append(neutral, row)
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if !ready[i].ReadyAt.Equal(*ready[j].ReadyAt) {
			return ready[i].ReadyAt.Before(*ready[j].ReadyAt)
		}
		return ready[i].DisplayName < ready[j].DisplayName
	})
	sort.SliceStable(busy, func(i, j int) bool {
		if !busy[i].OldestOpenTicketAt.Equal(*busy[j].OldestOpenTicketAt) {
			return busy[i].OldestOpenTicketAt.Before(*busy[j].OldestOpenTicketAt)
		}
		return busy[i].DisplayName < busy[j].DisplayName
	})
	sort.SliceStable(neutral, func(i, j int) bool {
		return neutral[i].DisplayName < neutral[j].DisplayName
	})

	// Ready first, neutral before busy: the view answers "who takes the
	// next customer", and a neutral technician is available sooner than a
	// busy one.
	view := make([]models.TechnicianView, 0, len(eligible))
	view = append(view, ready...)
	view = append(view, neutral...)
	view = append(view, busy...)
	for i := range view {
		view[i].Position = i + 1
	}
	return view, nil
}

// ClearStoreQueue empties the store's queue, recording who or what cleared
// it. The closing checkout sweep calls this with the system actor.
func (s *QueueService) ClearStoreQueue(ctx context.Context, storeID, actor string) (int, error) {
	removed, err := s.queue.ClearStore(ctx, storeID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear store queue")
	}
	if removed > 0 {
		if s.metrics != nil {
			s.metrics.QueueCleared(removed)
		}
		s.recordQueueActivity(ctx, storeID, actor, models.ActivityQueueCleared, storeID)
		s.invalidateView(ctx, storeID)
	}
	return removed, nil
}

// HandleTicketItemAssigned removes the performer from the ready queue when a
// service line is assigned to them.
func (s *QueueService) HandleTicketItemAssigned(ctx context.Context, ev models.TicketItemAssignedEvent) error {
	if err := s.queue.Remove(ctx, ev.EmployeeID, ev.StoreID); err != nil {
		return err
	}
	s.invalidateView(ctx, ev.StoreID)
	return nil
}

// HandleTicketItemCompleted refreshes the floor view; the performer stays
// neutral until they explicitly re-join.
func (s *QueueService) HandleTicketItemCompleted(ctx context.Context, ev models.TicketItemCompletedEvent) error {
	s.invalidateView(ctx, ev.StoreID)
	return nil
}

// HandleTicketClosed drops every performer of the closed ticket from the
// queue; closing a ticket never re-queues anyone automatically.
func (s *QueueService) HandleTicketClosed(ctx context.Context, ev models.TicketClosedEvent) error {
	if err := s.queue.RemovePerformers(ctx, ev.TicketID); err != nil {
		return err
	}
	s.invalidateView(ctx, ev.StoreID)
	return nil
}

// checkStoreWindow refuses joins before the store's check-in window opens:
// opening time minus the early-join window, on the store's civil clock.
func (s *QueueService) checkStoreWindow(ctx context.Context, storeID string) error {
	schedule, err := s.stores.Schedule(ctx, storeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load store schedule")
	}
	if len(schedule) == 0 {
		return appErrors.ErrScheduleUnavailable
	}

	local := s.now().In(s.loc)
	hours, ok := schedule[local.Weekday()]
	if !ok {
		return appErrors.Clone(appErrors.ErrStoreClosed, "store is closed today")
	}
	opens, err := models.ResolveClock(hours.OpensAt, local, s.loc)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid store schedule")
	}
	if local.Before(opens.Add(-s.earlyWindow)) {
		return appErrors.ErrStoreClosed
	}
	return nil
}

func (s *QueueService) invalidateView(ctx context.Context, storeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, queueViewKeyPrefix+storeID); err != nil {
		s.logger.Warn("queue view cache invalidation failed",
			zap.String("store_id", storeID), zap.Error(err))
	}
}

func (s *QueueService) recordQueueActivity(ctx context.Context, storeID, actor, action, resourceID string) {
	if s.activity == nil {
		return
	}
	id := resourceID
	entry := &models.ActivityLog{
		StoreID:    storeID,
		Actor:      actor,
		Action:     action,
		Resource:   "technician_queue",
		ResourceID: &id,
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record queue activity",
			zap.String("action", action), zap.Error(err))
	}
}
