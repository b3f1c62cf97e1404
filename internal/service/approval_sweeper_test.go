package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/repository"
)

// sweeperTicketStore backs both the overdue listing and the expiry
// transition, guarded for the worker goroutines.
type sweeperTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*models.SaleTicket
	expired []string
}

func (f *sweeperTicketStore) ListOverduePending(_ context.Context, now time.Time) ([]repository.OverdueTicketRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []repository.OverdueTicketRef
	for id, ticket := range f.tickets {
		if ticket.ApprovalStatus == models.ApprovalStatusPending &&
			ticket.ApprovalDeadline != nil && !ticket.ApprovalDeadline.After(now) {
			refs = append(refs, repository.OverdueTicketRef{ID: id, StoreID: ticket.StoreID})
		}
	}
	return refs, nil
}

func (f *sweeperTicketStore) Get(_ context.Context, id string) (*models.SaleTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *f.tickets[id]
	return &snapshot, nil
}

func (f *sweeperTicketStore) PerformerIDs(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *sweeperTicketStore) Close(context.Context, repository.CloseParams) (bool, error) {
	return false, nil
}

func (f *sweeperTicketStore) Approve(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

func (f *sweeperTicketStore) Reject(context.Context, string, string, string, time.Time) (bool, error) {
	return false, nil
}

func (f *sweeperTicketStore) Expire(_ context.Context, ticketID string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket := f.tickets[ticketID]
	if ticket.ApprovalStatus != models.ApprovalStatusPending {
		return false, nil
	}
	ticket.ApprovalStatus = models.ApprovalStatusAutoApproved
	f.expired = append(f.expired, ticketID)
	return true, nil
}

func (f *sweeperTicketStore) ListPendingApprovals(context.Context, models.PendingApprovalFilter) ([]models.PendingApprovalTicket, int, error) {
	return nil, 0, nil
}

func (f *sweeperTicketStore) expiredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.expired...)
}

func TestSweepExpiresOnlyOverdueTickets(t *testing.T) {
	now := time.Date(2024, 3, 8, 18, 0, 0, 0, time.UTC)
	store := &sweeperTicketStore{tickets: map[string]*models.SaleTicket{
		"overdue":      pendingTicket("overdue", "recep-1", models.LevelTechnician, false),
		"still-inside": pendingTicket("still-inside", "recep-1", models.LevelTechnician, false),
	}}
	lapsed := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	store.tickets["overdue"].ApprovalDeadline = &lapsed
	store.tickets["still-inside"].ApprovalDeadline = &future

	approval := NewApprovalService(store, &fakeEmployeeRepo{}, nil, nil, nil, 48*time.Hour, nil)
	approval.now = func() time.Time { return now }

	sweeper := NewApprovalSweeper(store, approval, time.Hour, 2, nil)
	sweeper.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)
	defer sweeper.Stop()

	require.NoError(t, sweeper.SweepOnce(ctx))
	require.Eventually(t, func() bool {
		return len(store.expiredIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"overdue"}, store.expiredIDs())

	// A second sweep finds nothing left to do.
	require.NoError(t, sweeper.SweepOnce(ctx))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"overdue"}, store.expiredIDs())
}
