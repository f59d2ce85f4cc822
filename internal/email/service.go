// Package email delivers the fallback channel for recipients that could
// not be reached by push.
package email

import (
	"context"

	"github.com/openfield/notify-api/internal/model"
)

type Service interface {
	SendSlotSummary(ctx context.Context, to string, n *model.Notification) error
}
