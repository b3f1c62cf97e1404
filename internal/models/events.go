package models

import "time"

// Domain events replace the trigger-style reactive updates of the legacy
// system: the operation that causes a change dispatches the event
// synchronously, and queue/workflow listeners consume it in plain sight.

// TicketClosedEvent fires when a ticket transitions from open to
// pending approval.
type TicketClosedEvent struct {
	TicketID     string
	StoreID      string
	ClosedBy     string
	PerformerIDs []string
	At           time.Time
}

// TicketItemAssignedEvent fires when a ticket item referencing an open
// ticket is created for an employee.
type TicketItemAssignedEvent struct {
	TicketID   string
	StoreID    string
	EmployeeID string
	At         time.Time
}

// TicketItemCompletedEvent fires when a ticket item is marked completed.
type TicketItemCompletedEvent struct {
	TicketID   string
	StoreID    string
	EmployeeID string
	At         time.Time
}
