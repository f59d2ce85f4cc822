package model

import (
	"time"

	"github.com/google/uuid"
)

// User role constants
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// User mirrors an identity owned by the auth provider. Rows exist locally
// for joins against subscriptions and recipient tracking.
type User struct {
	ID                        uuid.UUID `json:"id" db:"id"`
	Email                     string    `json:"email" db:"email"`
	Name                      string    `json:"name" db:"name"`
	Role                      string    `json:"role" db:"role"`
	AvailabilityAlertsEnabled bool      `json:"availability_alerts_enabled" db:"availability_alerts_enabled"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// TokenClaims is the identity carried by a bearer token.
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
}

// UpdatePreferencesRequest toggles the caller's alert preference.
type UpdatePreferencesRequest struct {
	AvailabilityAlertsEnabled *bool `json:"availability_alerts_enabled" binding:"required"`
}

// PromoteUserRequest promotes a user to admin by email.
type PromoteUserRequest struct {
	Email string `json:"email" binding:"required,email"`
}
