// Package push sends Web Push messages authenticated with VAPID keys.
package push

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
)

// ErrSubscriptionGone signals a 404/410 from the push service: the browser
// dropped the subscription and the row should be removed.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Payload is the JSON document handed to the service worker.
type Payload struct {
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	URL            string    `json:"url,omitempty"`
	NotificationID uuid.UUID `json:"notification_id"`
}

// Sender delivers one encrypted push message to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload []byte) error
}
