package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds the PIN credentials for authenticating an employee at
// a store terminal.
type LoginRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	PIN        string `json:"pin" validate:"required,min=4"`
	StoreID    string `json:"store_id" validate:"required"`
}

// LoginResponse returns the issued token and employee info.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	Employee    EmployeeInfo `json:"employee"`
	IssuedAt    time.Time    `json:"issued_at"`
}

// EmployeeInfo describes the authenticated employee in responses.
type EmployeeInfo struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Roles       RoleSet        `json:"roles"`
	Tier        PermissionTier `json:"tier"`
	StoreID     string         `json:"store_id"`
}

// JWTClaims represents the JWT payload for access tokens. The store ID is
// fixed at login so that every core operation receives an explicit
// (employee, store) context instead of ambient session state.
type JWTClaims struct {
	EmployeeID  string         `json:"employee_id"`
	StoreID     string         `json:"store_id"`
	Tier        PermissionTier `json:"tier"`
	Roles       RoleSet        `json:"roles"`
	DisplayName string         `json:"display_name"`
	jwt.RegisteredClaims
}
