package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type ticketItemRepo interface {
	Get(ctx context.Context, id string) (*models.SaleTicket, error)
	Items(ctx context.Context, ticketID string) ([]models.TicketItem, error)
	AddItem(ctx context.Context, item *models.TicketItem) (*models.TicketItem, error)
	CompleteItem(ctx context.Context, itemID, by string, at time.Time) (bool, error)
	MarkTicketCompleted(ctx context.Context, ticketID, by string, at time.Time) (bool, error)
}

// AddItemRequest is the payload for attaching a service line to a ticket.
type AddItemRequest struct {
	TicketID   string  `json:"ticket_id" validate:"required"`
	EmployeeID string  `json:"employee_id" validate:"required"`
	ServiceID  string  `json:"service_id" validate:"required"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
}

// TicketService manages ticket items: assignment of a service line to a
// performer and its per-line completion. Both mutations dispatch domain
// events so the queue reacts without database triggers.
type TicketService struct {
	tickets  ticketItemRepo
	events   *Events
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(tickets ticketItemRepo, events *Events, validate *validator.Validate, logger *zap.Logger) *TicketService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:  tickets,
		events:   events,
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
}

// GetTicket loads one ticket with its items.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.SaleTicket, []models.TicketItem, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}
	items, err := s.tickets.Items(ctx, ticketID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket items")
	}
	return ticket, items, nil
}

// AddItem attaches a service line to an open ticket and attributes it to a
// performer. Assigning against a closed ticket fails with ErrTicketNotOpen.
func (s *TicketService) AddItem(ctx context.Context, req AddItemRequest) (*models.TicketItem, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket item")
	}

	ticket, err := s.tickets.Get(ctx, req.TicketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}
	if !ticket.Open() {
		return nil, appErrors.ErrTicketNotOpen
	}

	item, err := s.tickets.AddItem(ctx, &models.TicketItem{
		TicketID:   req.TicketID,
		EmployeeID: req.EmployeeID,
		ServiceID:  req.ServiceID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
	})
	if err != nil {
		// The open check above raced with a concurrent close.
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrTicketNotOpen
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add ticket item")
	}

	if s.events != nil {
		s.events.TicketItemAssigned(ctx, models.TicketItemAssignedEvent{
			TicketID:   ticket.ID,
			StoreID:    ticket.StoreID,
			EmployeeID: item.EmployeeID,
			At:         item.CreatedAt,
		})
	}
	return item, nil
}

// CompleteItem marks one service line done on behalf of byID, stopping the
// performer's timer without touching the parent ticket's open state. When it
// was the last open line the ticket is marked completed as well. Completing
// an already completed line is a no-op.
func (s *TicketService) CompleteItem(ctx context.Context, ticketID, itemID, byID string) error {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}

	items, err := s.tickets.Items(ctx, ticketID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket items")
	}
	var target *models.TicketItem
	for i := range items {
		if items[i].ID == itemID {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "ticket item not found")
	}

	now := s.now().UTC()
	ok, err := s.tickets.CompleteItem(ctx, itemID, byID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete ticket item")
	}
	if !ok {
		return nil
	}

	if s.events != nil {
		s.events.TicketItemCompleted(ctx, models.TicketItemCompletedEvent{
			TicketID:   ticket.ID,
			StoreID:    ticket.StoreID,
			EmployeeID: target.EmployeeID,
			At:         now,
		})
	}

	// The guard inside MarkTicketCompleted keeps this a no-op while any
	// sibling line is still open.
	if _, err := s.tickets.MarkTicketCompleted(ctx, ticketID, byID, now); err != nil {
		s.logger.Warn("failed to mark ticket completed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return nil
}
