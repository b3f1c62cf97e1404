package models

import "time"

// SystemActor is recorded on activity rows produced by background sweeps.
const SystemActor = "system"

// Activity action constants.
const (
	ActivityTicketClosed       = "TICKET_CLOSED"
	ActivityTicketApproved     = "TICKET_APPROVED"
	ActivityTicketRejected     = "TICKET_REJECTED"
	ActivityTicketAutoApproved = "TICKET_AUTO_APPROVED"
	ActivityQueueJoined        = "QUEUE_JOINED"
	ActivityQueueLeft          = "QUEUE_LEFT"
	ActivityQueueCleared       = "QUEUE_CLEARED"
	ActivityCheckedIn          = "CHECKED_IN"
	ActivityCheckedOut         = "CHECKED_OUT"
	ActivityAutoCheckedOut     = "AUTO_CHECKED_OUT"
)

// ActivityLog is one audit trail row for a workflow transition or scheduler
// action. Actor is the employee ID, or SystemActor for automatic triggers.
type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	StoreID    string    `db:"store_id" json:"store_id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
