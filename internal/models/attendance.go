package models

import (
	"fmt"
	"time"
)

// AttendanceStatus is the state of one attendance session.
type AttendanceStatus string

const (
	AttendanceStatusCheckedIn      AttendanceStatus = "CHECKED_IN"
	AttendanceStatusCheckedOut     AttendanceStatus = "CHECKED_OUT"
	AttendanceStatusAutoCheckedOut AttendanceStatus = "AUTO_CHECKED_OUT"
)

// AttendanceRecord is one check-in/check-out session for an employee at a
// store. Sessions are multiple-per-day; a session is closed exactly once,
// either manually or by one of the scheduler's automatic triggers.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	EmployeeID   string           `db:"employee_id" json:"employee_id"`
	StoreID      string           `db:"store_id" json:"store_id"`
	CheckInTime  time.Time        `db:"check_in_time" json:"check_in_time"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	Status       AttendanceStatus `db:"status" json:"status"`
	TotalHours   *float64         `db:"total_hours" json:"total_hours,omitempty"`
	PayType      PayType          `db:"pay_type" json:"pay_type"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// Store is the minimal store identity the core needs.
type Store struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// StoreDayHours holds a store's opening and closing wall-clock times for one
// weekday, as "HH:MM" civil time. They are interpreted in the configured
// timezone at evaluation time, never stored pre-converted.
type StoreDayHours struct {
	StoreID  string       `db:"store_id" json:"store_id"`
	Weekday  time.Weekday `db:"weekday" json:"weekday"`
	OpensAt  string       `db:"opens_at" json:"opens_at"`
	ClosesAt string       `db:"closes_at" json:"closes_at"`
}

// StoreSchedule maps weekdays onto opening hours for one store. A missing
// weekday means the store is closed that day.
type StoreSchedule map[time.Weekday]StoreDayHours

// ResolveClock anchors an "HH:MM" wall-clock string onto the given date in
// the given location, applying that day's DST rules.
func ResolveClock(clock string, day time.Time, loc *time.Location) (time.Time, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(clock, "%d:%d", &hh, &mm); err != nil {
		return time.Time{}, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return time.Time{}, fmt.Errorf("invalid clock %q", clock)
	}
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, hh, mm, 0, 0, loc), nil
}

// LastCompletion is the most recent completed service marker for a
// daily-paid employee, used by the inactivity checkout.
type LastCompletion struct {
	EmployeeID  string    `db:"employee_id"`
	CompletedAt time.Time `db:"completed_at"`
}
