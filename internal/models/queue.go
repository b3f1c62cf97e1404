package models

import "time"

// QueueStatus is the stored state of a technician queue entry. "Neutral" is
// represented by the absence of a row, never by a status value.
type QueueStatus string

const (
	QueueStatusReady QueueStatus = "READY"
	QueueStatusBusy  QueueStatus = "BUSY"
)

// TechnicianQueueEntry is the single per-(employee, store) queue row.
type TechnicianQueueEntry struct {
	ID                  string      `db:"id" json:"id"`
	EmployeeID          string      `db:"employee_id" json:"employee_id"`
	StoreID             string      `db:"store_id" json:"store_id"`
	Status              QueueStatus `db:"status" json:"status"`
	ReadyAt             time.Time   `db:"ready_at" json:"ready_at"`
	CurrentOpenTicketID *string     `db:"current_open_ticket_id" json:"current_open_ticket_id,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
}

// TechnicianStatus is the derived floor status shown in the ordered view.
type TechnicianStatus string

const (
	TechnicianStatusReady   TechnicianStatus = "READY"
	TechnicianStatusBusy    TechnicianStatus = "BUSY"
	TechnicianStatusNeutral TechnicianStatus = "NEUTRAL"
)

// TechnicianView is one row of the ordered floor view: every eligible
// technician at the store annotated with their derived status.
type TechnicianView struct {
	EmployeeID         string           `json:"employee_id"`
	DisplayName        string           `json:"display_name"`
	Status             TechnicianStatus `json:"status"`
	Position           int              `json:"position"`
	ReadyAt            *time.Time       `json:"ready_at,omitempty"`
	CurrentTicketID    *string          `json:"current_ticket_id,omitempty"`
	OldestOpenTicketAt *time.Time       `json:"oldest_open_ticket_at,omitempty"`
}

// BusyTechnician pairs a technician with the oldest open-and-not-completed
// ticket they are attached to at a store. Used as the ETA ordering key.
type BusyTechnician struct {
	EmployeeID         string    `db:"employee_id"`
	OldestOpenTicketID string    `db:"oldest_open_ticket_id"`
	OldestOpenTicketAt time.Time `db:"oldest_open_ticket_at"`
}
