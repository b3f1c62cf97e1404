package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// AttendanceRepository persists attendance sessions. Sessions close exactly
// once; every closing path is guarded on check_out_time IS NULL.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, employee_id, store_id, check_in_time, check_out_time, status, total_hours, pay_type, created_at, updated_at`

// OpenSession returns the employee's open session at the store, or nil.
func (r *AttendanceRepository) OpenSession(ctx context.Context, employeeID, storeID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE employee_id = $1 AND store_id = $2 AND check_out_time IS NULL
ORDER BY check_in_time DESC LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, employeeID, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return &record, nil
}

// CheckIn opens a new session unless one is already open for the employee at
// the store. Returns sql.ErrNoRows when an open session exists.
func (r *AttendanceRepository) CheckIn(ctx context.Context, employeeID, storeID string, payType models.PayType, at time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`INSERT INTO attendance_records (id, employee_id, store_id, check_in_time, status, pay_type, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $4, $4
WHERE NOT EXISTS (SELECT 1 FROM attendance_records
                  WHERE employee_id = $2 AND store_id = $3 AND check_out_time IS NULL)
RETURNING %s`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), employeeID, storeID, at, models.AttendanceStatusCheckedIn, payType); err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}
	return &record, nil
}

// CloseSession closes one session with the given checkout facts. Returns
// false when the session was already closed.
func (r *AttendanceRepository) CloseSession(ctx context.Context, sessionID string, checkOut time.Time, status models.AttendanceStatus, totalHours float64, now time.Time) (bool, error) {
	query := `UPDATE attendance_records
SET check_out_time = $2, status = $3, total_hours = $4, updated_at = $5
WHERE id = $1 AND check_out_time IS NULL`
	res, err := r.db.ExecContext(ctx, query, sessionID, checkOut, status, totalHours, now)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	return affected(res)
}

// ListOpenSessions returns every still-open session at the store.
func (r *AttendanceRepository) ListOpenSessions(ctx context.Context, storeID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE store_id = $1 AND check_out_time IS NULL
ORDER BY check_in_time ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, storeID); err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	return records, nil
}

// ListOpenDailySessions returns open sessions of daily-paid employees at the
// store, the population subject to inactivity checkout.
func (r *AttendanceRepository) ListOpenDailySessions(ctx context.Context, storeID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE store_id = $1 AND check_out_time IS NULL AND pay_type = $2
ORDER BY check_in_time ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, storeID, models.PayTypeDaily); err != nil {
		return nil, fmt.Errorf("list open daily sessions: %w", err)
	}
	return records, nil
}

// DayReportRow is one line of the daily attendance-hours report.
type DayReportRow struct {
	EmployeeID   string                  `db:"employee_id"`
	DisplayName  string                  `db:"display_name"`
	CheckInTime  time.Time               `db:"check_in_time"`
	CheckOutTime *time.Time              `db:"check_out_time"`
	Status       models.AttendanceStatus `db:"status"`
	TotalHours   *float64                `db:"total_hours"`
}

// DayReport returns all sessions for the store within [dayStart, dayEnd).
func (r *AttendanceRepository) DayReport(ctx context.Context, storeID string, dayStart, dayEnd time.Time) ([]DayReportRow, error) {
	query := `SELECT a.employee_id, e.display_name, a.check_in_time, a.check_out_time, a.status, a.total_hours
FROM attendance_records a
JOIN employees e ON e.id = a.employee_id
WHERE a.store_id = $1 AND a.check_in_time >= $2 AND a.check_in_time < $3
ORDER BY e.display_name ASC, a.check_in_time ASC`
	var rows []DayReportRow
	if err := r.db.SelectContext(ctx, &rows, query, storeID, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("day report: %w", err)
	}
	return rows, nil
}
