package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/salon-pos-api/internal/models"
)

// EmployeeRepository reads employee identity and role facts.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns an employee with their current role set.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT e.id, e.display_name, e.pay_type, e.active, e.pin_hash,
        COALESCE(json_agg(er.role ORDER BY er.position) FILTER (WHERE er.role IS NOT NULL), '[]') AS roles
FROM employees e
LEFT JOIN employee_roles er ON er.employee_id = e.id
WHERE e.id = $1
GROUP BY e.id`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &employee, nil
}

// AssignedToStore reports whether the employee works at the given store.
func (r *EmployeeRepository) AssignedToStore(ctx context.Context, employeeID, storeID string) (bool, error) {
	var assigned bool
	query := `SELECT EXISTS (SELECT 1 FROM employee_stores WHERE employee_id = $1 AND store_id = $2)`
	if err := r.db.GetContext(ctx, &assigned, query, employeeID, storeID); err != nil {
		return false, fmt.Errorf("check store assignment: %w", err)
	}
	return assigned, nil
}

// ListEligibleTechnicians returns every active employee at the store who
// holds a service-capable or supervising role, sorted by display name.
func (r *EmployeeRepository) ListEligibleTechnicians(ctx context.Context, storeID string) ([]models.EligibleTechnician, error) {
	query := `SELECT e.id, e.display_name,
        COALESCE(json_agg(er.role ORDER BY er.position) FILTER (WHERE er.role IS NOT NULL), '[]') AS roles
FROM employees e
JOIN employee_stores es ON es.employee_id = e.id AND es.store_id = $1
LEFT JOIN employee_roles er ON er.employee_id = e.id
WHERE e.active = TRUE
  AND EXISTS (SELECT 1 FROM employee_roles x
              WHERE x.employee_id = e.id AND x.role IN ('TECHNICIAN', 'SUPERVISOR', 'SPA_EXPERT'))
GROUP BY e.id
ORDER BY e.display_name ASC`
	var rows []models.EligibleTechnician
	if err := r.db.SelectContext(ctx, &rows, query, storeID); err != nil {
		return nil, fmt.Errorf("list eligible technicians: %w", err)
	}
	return rows, nil
}
