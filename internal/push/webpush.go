package push

import (
	"context"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/pkg/circuitbreaker"
)

type Config struct {
	// Subscriber is the contact address presented to the push service,
	// e.g. "mailto:ops@example.org".
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTL             int
}

// WebPushSender sends through the subscription's push service, behind a
// circuit breaker so a degraded provider fails fast instead of piling up.
type WebPushSender struct {
	cfg Config
	cb  *circuitbreaker.CircuitBreaker
}

func NewWebPushSender(cfg Config) (*WebPushSender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("VAPID keys are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30
	}

	return &WebPushSender{
		cfg: cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "push-provider",
			MaxFailures: 10,
			Timeout:     30 * time.Second,
		}),
	}, nil
}

// GenerateVAPIDKeys mints a fresh key pair for first-time setup.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

func (s *WebPushSender) Send(ctx context.Context, sub *model.PushSubscription, payload []byte) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	// Rejections tied to this one subscription (gone endpoint, bad keys)
	// must not trip the breaker; only transport and provider failures do.
	var sendErr error
	err := s.cb.Execute(func() error {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
			Subscriber:      s.cfg.Subscriber,
			VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
			TTL:             s.cfg.TTL,
		})
		if err != nil {
			return fmt.Errorf("push send failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			sendErr = ErrSubscriptionGone
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("push service unavailable: %s", resp.Status)
		case resp.StatusCode >= http.StatusBadRequest:
			sendErr = fmt.Errorf("push service rejected request: %s", resp.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return sendErr
}
