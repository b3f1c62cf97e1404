package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// Events is a synchronous in-process dispatcher for ticket domain events.
// It replaces the legacy trigger-style reactive updates: the operation that
// causes a change dispatches the event inline, and listeners react in plain
// sight. Listener errors are logged and never abort the causing operation.
type Events struct {
	mu                sync.RWMutex
	closedListeners   []func(context.Context, models.TicketClosedEvent) error
	assignListeners   []func(context.Context, models.TicketItemAssignedEvent) error
	completeListeners []func(context.Context, models.TicketItemCompletedEvent) error
	logger            *zap.Logger
}

// NewEvents constructs a dispatcher.
func NewEvents(logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{logger: logger}
}

// OnTicketClosed registers a listener for ticket-closed events.
func (e *Events) OnTicketClosed(fn func(context.Context, models.TicketClosedEvent) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closedListeners = append(e.closedListeners, fn)
}

// OnTicketItemAssigned registers a listener for item-assigned events.
func (e *Events) OnTicketItemAssigned(fn func(context.Context, models.TicketItemAssignedEvent) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assignListeners = append(e.assignListeners, fn)
}

// OnTicketItemCompleted registers a listener for item-completed events.
func (e *Events) OnTicketItemCompleted(fn func(context.Context, models.TicketItemCompletedEvent) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completeListeners = append(e.completeListeners, fn)
}

// TicketClosed dispatches a ticket-closed event to all listeners.
func (e *Events) TicketClosed(ctx context.Context, ev models.TicketClosedEvent) {
	e.mu.RLock()
	listeners := e.closedListeners
	e.mu.RUnlock()
	for _, fn := range listeners {
		if err := fn(ctx, ev); err != nil {
			e.logger.Warn("ticket closed listener failed",
				zap.String("ticket_id", ev.TicketID), zap.Error(err))
		}
	}
}

// TicketItemAssigned dispatches an item-assigned event to all listeners.
func (e *Events) TicketItemAssigned(ctx context.Context, ev models.TicketItemAssignedEvent) {
	e.mu.RLock()
	listeners := e.assignListeners
	e.mu.RUnlock()
	for _, fn := range listeners {
		if err := fn(ctx, ev); err != nil {
			e.logger.Warn("ticket item assigned listener failed",
				zap.String("ticket_id", ev.TicketID), zap.String("employee_id", ev.EmployeeID), zap.Error(err))
		}
	}
}

// TicketItemCompleted dispatches an item-completed event to all listeners.
func (e *Events) TicketItemCompleted(ctx context.Context, ev models.TicketItemCompletedEvent) {
	e.mu.RLock()
	listeners := e.completeListeners
	e.mu.RUnlock()
	for _, fn := range listeners {
		if err := fn(ctx, ev); err != nil {
			e.logger.Warn("ticket item completed listener failed",
				zap.String("ticket_id", ev.TicketID), zap.String("employee_id", ev.EmployeeID), zap.Error(err))
		}
	}
}
