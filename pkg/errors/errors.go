package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is matches typed errors by code, so a sentinel compares equal to clones
// of itself carrying contextual messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid employee id or pin")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "employee is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Approval workflow preconditions. Returned to the UI as structured reasons
// rather than opaque failures.
var (
	ErrTicketNotOpen      = New("TICKET_NOT_OPEN", http.StatusConflict, "ticket is not open")
	ErrNotPending         = New("NOT_PENDING_APPROVAL", http.StatusConflict, "ticket is not pending approval")
	ErrSelfApproval       = New("SELF_APPROVAL", http.StatusForbidden, "the closer of a ticket cannot approve or reject it")
	ErrApprovalLevel      = New("APPROVAL_LEVEL", http.StatusForbidden, "approver does not satisfy the required approval level")
	ErrConflictOfInterest = New("CONFLICT_OF_INTEREST", http.StatusForbidden, "a conflicted performer needs a manager or owner to approve this ticket")
)

// Queue and attendance preconditions.
var (
	ErrCheckInRequired     = New("CHECK_IN_REQUIRED", http.StatusPreconditionFailed, "check in before joining the ready queue")
	ErrStoreClosed         = New("STORE_CLOSED", http.StatusPreconditionFailed, "store check-in window is not open yet")
	ErrAlreadyCheckedIn    = New("ALREADY_CHECKED_IN", http.StatusConflict, "an open attendance session already exists")
	ErrAlreadyCheckedOut   = New("ALREADY_CHECKED_OUT", http.StatusConflict, "attendance session already closed")
	ErrScheduleUnavailable = New("SCHEDULE_UNAVAILABLE", http.StatusNotFound, "store schedule is not configured")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
