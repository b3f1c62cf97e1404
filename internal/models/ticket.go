package models

import "time"

// ApprovalStatus is the lifecycle state of a closed ticket's approval.
type ApprovalStatus string

const (
	ApprovalStatusNone         ApprovalStatus = "NONE"
	ApprovalStatusPending      ApprovalStatus = "PENDING_APPROVAL"
	ApprovalStatusApproved     ApprovalStatus = "APPROVED"
	ApprovalStatusRejected     ApprovalStatus = "REJECTED"
	ApprovalStatusAutoApproved ApprovalStatus = "AUTO_APPROVED"
)

// Terminal reports whether the approval reached a final state.
func (s ApprovalStatus) Terminal() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusAutoApproved:
		return true
	default:
		return false
	}
}

// ApprovalLevel is the minimum approver rank a routed ticket requires.
type ApprovalLevel string

const (
	LevelTechnician ApprovalLevel = "TECHNICIAN"
	LevelSupervisor ApprovalLevel = "SUPERVISOR"
	LevelManager    ApprovalLevel = "MANAGER"
)

// SaleTicket is one customer visit at one store. Approval fields stay unset
// while the ticket is open; closedByRoles is a snapshot taken at close time
// and never recomputed afterwards.
type SaleTicket struct {
	ID      string `db:"id" json:"id"`
	StoreID string `db:"store_id" json:"store_id"`

	OpenedAt      time.Time  `db:"opened_at" json:"opened_at"`
	ClosedAt      *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy      *string    `db:"closed_by" json:"closed_by,omitempty"`
	ClosedByRoles RoleSet    `db:"closed_by_roles" json:"closed_by_roles,omitempty"`

	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *string    `db:"completed_by" json:"completed_by,omitempty"`

	ApprovalStatus                 ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovalDeadline               *time.Time     `db:"approval_deadline" json:"approval_deadline,omitempty"`
	ApprovalRequiredLevel          *ApprovalLevel `db:"approval_required_level" json:"approval_required_level,omitempty"`
	ApprovalReason                 *string        `db:"approval_reason" json:"approval_reason,omitempty"`
	RequiresHigherApproval         bool           `db:"requires_higher_approval" json:"requires_higher_approval"`
	PerformedAndClosedBySamePerson bool           `db:"performed_and_closed_by_same_person" json:"performed_and_closed_by_same_person"`
	ApprovedBy                     *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt                     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason                *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RequiresAdminReview            bool           `db:"requires_admin_review" json:"requires_admin_review"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the ticket has not been closed yet.
func (t *SaleTicket) Open() bool {
	return t.ClosedAt == nil
}

// TicketItem is one service line on a ticket. A per-line completion marker
// stops the technician's timer without closing the parent ticket.
type TicketItem struct {
	ID          string     `db:"id" json:"id"`
	TicketID    string     `db:"ticket_id" json:"ticket_id"`
	EmployeeID  string     `db:"employee_id" json:"employee_id"`
	ServiceID   string     `db:"service_id" json:"service_id"`
	Quantity    int        `db:"quantity" json:"quantity"`
	UnitPrice   float64    `db:"unit_price" json:"unit_price"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *string    `db:"completed_by" json:"completed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// RoutingDecision is the outcome of routing a closed ticket.
type RoutingDecision struct {
	Level          ApprovalLevel `json:"level"`
	Reason         string        `json:"reason"`
	RequiresHigher bool          `json:"requires_higher"`
	SoloControl    bool          `json:"performed_and_closed_by_same_person"`
}

// PendingApprovalTicket is a pending ticket annotated for approver work lists.
type PendingApprovalTicket struct {
	SaleTicket
	ClosedByName string   `db:"closed_by_name" json:"closed_by_name"`
	PerformerIDs []string `db:"-" json:"performer_ids"`
}

// PendingApprovalFilter scopes the approver work list query.
type PendingApprovalFilter struct {
	StoreID  string
	Level    *ApprovalLevel
	Page     int
	PageSize int
}
