package messaging

import (
	"context"
)

// Event channels published by the API.
const (
	ChannelNotificationDispatched = "notification.dispatched"
	ChannelRecipientAction        = "recipient.action"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
