package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/repository"
	"github.com/noah-isme/salon-pos-api/pkg/jobs"
)

const jobTypeExpireTicket = "approval.expire"

type overdueLister interface {
	ListOverduePending(ctx context.Context, now time.Time) ([]repository.OverdueTicketRef, error)
}

// ApprovalSweeper periodically auto-approves pending tickets whose deadline
// lapsed. Each overdue ticket becomes one job so a poison row never stalls
// the rest of the sweep, and the conditional update inside ExpireTicket makes
// overlapping sweeps converge.
type ApprovalSweeper struct {
	tickets  overdueLister
	approval *ApprovalService
	interval time.Duration
	queue    *jobs.Queue
	logger   *zap.Logger
	now      func() time.Time
	cancel   context.CancelFunc
}

// NewApprovalSweeper constructs the sweeper with its own worker queue.
func NewApprovalSweeper(tickets overdueLister, approval *ApprovalService, interval time.Duration, workers int, logger *zap.Logger) *ApprovalSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	s := &ApprovalSweeper{
		tickets:  tickets,
		approval: approval,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	s.queue = jobs.NewQueue("approval-sweeper", s.handleJob, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start launches the queue workers and the sweep ticker.
func (s *ApprovalSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("approval sweep failed", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("approval sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and drains the workers.
func (s *ApprovalSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Stop()
}

// SweepOnce enqueues one expiry job per overdue pending ticket.
func (s *ApprovalSweeper) SweepOnce(ctx context.Context) error {
	refs, err := s.tickets.ListOverduePending(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	for _, ref := range refs {
		job := jobs.Job{ID: ref.ID, Type: jobTypeExpireTicket, Payload: ref}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue expiry",
				zap.String("ticket_id", ref.ID), zap.Error(err))
		}
	}
	if len(refs) > 0 {
		s.logger.Info("approval sweep enqueued overdue tickets", zap.Int("count", len(refs)))
	}
	return nil
}

func (s *ApprovalSweeper) handleJob(ctx context.Context, job jobs.Job) error {
	ref, ok := job.Payload.(repository.OverdueTicketRef)
	if !ok {
		s.logger.Error("unexpected sweep payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.approval.ExpireTicket(ctx, ref.ID)
}
