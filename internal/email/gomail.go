package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/openfield/notify-api/internal/model"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type gomailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg Config) Service {
	return &gomailService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *gomailService) SendSlotSummary(ctx context.Context, to string, n *model.Notification) error {
	subject := subjectFor(n.Type)

	body := fmt.Sprintf(
		"%s\n\nDate: %s\nTime: %s - %s\nLocation: %s\n",
		bodyFor(n.Type),
		n.SlotDate.Format("2006-01-02"),
		n.StartTime,
		n.EndTime,
		n.Location,
	)
	if n.Description != "" {
		body += "\n" + n.Description + "\n"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func subjectFor(t model.NotificationType) string {
	switch t {
	case model.NotificationTypeSlotProposal:
		return "Preaching slot proposal"
	case model.NotificationTypeSlotAvailable:
		return "A preaching slot is available"
	case model.NotificationTypeSlotCancelled:
		return "Preaching slot cancelled"
	default:
		return "Preaching slot update"
	}
}

func bodyFor(t model.NotificationType) string {
	switch t {
	case model.NotificationTypeSlotProposal:
		return "You have been proposed for a preaching slot."
	case model.NotificationTypeSlotAvailable:
		return "A preaching slot matching your availability alert opened up."
	case model.NotificationTypeSlotCancelled:
		return "A preaching slot you accepted has been cancelled."
	default:
		return "There is an update on a preaching slot."
	}
}
