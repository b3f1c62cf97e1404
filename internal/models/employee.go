package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Role is a single job role an employee may hold. Roles are never exclusive;
// rule evaluation always considers the employee's full set.
type Role string

const (
	RoleTechnician   Role = "TECHNICIAN"
	RoleSpaExpert    Role = "SPA_EXPERT"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleSupervisor   Role = "SUPERVISOR"
	RoleManager      Role = "MANAGER"
	RoleOwner        Role = "OWNER"
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleTechnician, RoleSpaExpert, RoleReceptionist, RoleSupervisor, RoleManager, RoleOwner:
		return true
	default:
		return false
	}
}

// PermissionTier is the coarse access tier derived from an employee's roles.
type PermissionTier string

const (
	TierTechnician   PermissionTier = "TECHNICIAN"
	TierReceptionist PermissionTier = "RECEPTIONIST"
	TierAdmin        PermissionTier = "ADMIN"
)

// PayType distinguishes hourly from daily-paid employees. Daily-paid
// employees are subject to the inactivity auto-checkout.
type PayType string

const (
	PayTypeHourly PayType = "HOURLY"
	PayTypeDaily  PayType = "DAILY"
)

// RoleSet is an ordered set of roles. It round-trips through the database as
// a JSON array so that role snapshots taken at ticket close time stay
// immutable even when the employee's live roles change later.
type RoleSet []Role

// Has reports whether the set contains the given role.
func (rs RoleSet) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether the set contains at least one of the given roles.
func (rs RoleSet) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if rs.Has(role) {
			return true
		}
	}
	return false
}

// CanPerformServices reports whether the set includes a service-capable role.
func (rs RoleSet) CanPerformServices() bool {
	return rs.HasAny(RoleTechnician, RoleSpaExpert)
}

// Tier maps the role set onto the coarse permission tier.
func (rs RoleSet) Tier() PermissionTier {
	if rs.HasAny(RoleSupervisor, RoleManager, RoleOwner) {
		return TierAdmin
	}
	if rs.Has(RoleReceptionist) {
		return TierReceptionist
	}
	return TierTechnician
}

// Value implements driver.Valuer.
func (rs RoleSet) Value() (driver.Value, error) {
	if rs == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("marshal role set: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (rs *RoleSet) Scan(src interface{}) error {
	if src == nil {
		*rs = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported role set source %T", src)
	}
	if len(raw) == 0 {
		*rs = nil
		return nil
	}
	return json.Unmarshal(raw, rs)
}

// Employee is the identity the core consumes from the staff collaborator.
type Employee struct {
	ID          string  `db:"id" json:"id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	Roles       RoleSet `db:"roles" json:"roles"`
	PayType     PayType `db:"pay_type" json:"pay_type"`
	Active      bool    `db:"active" json:"active"`
	PINHash     string  `db:"pin_hash" json:"-"`
}

// EligibleTechnician is an employee row scoped to one store's floor: any
// active employee holding a service-capable or supervising role.
type EligibleTechnician struct {
	ID          string  `db:"id" json:"id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	Roles       RoleSet `db:"roles" json:"roles"`
}
