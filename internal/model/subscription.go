package model

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is one browser push endpoint. A user may hold several
// (one per device); an endpoint belongs to exactly one user.
type PushSubscription struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Endpoint   string    `json:"endpoint" db:"endpoint"`
	P256dh     string    `json:"p256dh" db:"p256dh"`
	Auth       string    `json:"auth" db:"auth"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastUsedAt time.Time `json:"last_used_at" db:"last_used_at"`
}

// SubscriptionKeys carries the browser's encryption keys.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// SubscribeRequest registers a push endpoint for the caller.
type SubscribeRequest struct {
	Endpoint string           `json:"endpoint" binding:"required,url"`
	Keys     SubscriptionKeys `json:"keys" binding:"required"`
}

// UnsubscribeRequest removes a push endpoint of the caller.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}
