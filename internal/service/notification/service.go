// Package notification implements the dispatch and recipient-tracking
// workflow: resolve recipients, persist the notification and its tracking
// rows, attempt Web Push delivery, and aggregate per-recipient metrics.
package notification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/openfield/notify-api/internal/email"
	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/push"
	"github.com/openfield/notify-api/internal/repository"
	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/logger"
	"github.com/openfield/notify-api/pkg/messaging"
	"github.com/openfield/notify-api/pkg/metrics"
)

const defaultMaxParallel = 8

// marshalPayload is replaced in tests to exercise encode failures.
var marshalPayload = json.Marshal

type Config struct {
	// MaxParallel caps concurrent push sends per dispatch.
	MaxParallel int
	// FrontendURL is the SPA origin used for click-through links.
	FrontendURL string
}

type Service struct {
	notifications repository.NotificationRepository
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	pusher        push.Sender
	mailer        email.Service    // nil disables the email fallback
	broker        messaging.Broker // nil disables event publishing
	metrics       *metrics.Metrics
	logger        *logger.Logger
	cfg           Config
}

func NewService(
	notifications repository.NotificationRepository,
	subscriptions repository.SubscriptionRepository,
	users repository.UserRepository,
	pusher push.Sender,
	mailer email.Service,
	broker messaging.Broker,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	return &Service{
		notifications: notifications,
		subscriptions: subscriptions,
		users:         users,
		pusher:        pusher,
		mailer:        mailer,
		broker:        broker,
		metrics:       m,
		logger:        log,
		cfg:           cfg,
	}
}

// Dispatch runs the full workflow for one send request and returns the
// itemized delivery report. The sender's admin role is checked once here,
// not per row.
func (s *Service) Dispatch(ctx context.Context, senderID uuid.UUID, req *model.SendNotificationRequest) (*model.DeliveryReport, error) {
	timer := prometheus.NewTimer(s.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	sender, err := s.users.Get(ctx, senderID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(err)
		}
		return nil, errors.Internal(err)
	}
	if !sender.IsAdmin() {
		return nil, errors.Forbidden("admin role required", nil)
	}

	slotDate, err := time.Parse("2006-01-02", req.Slot.Date)
	if err != nil {
		return nil, errors.BadRequest("invalid slot date", err)
	}

	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, errors.BadRequest("notification has no recipients", nil)
	}
	s.metrics.RecipientsResolved.Observe(float64(len(recipients)))

	n := &model.Notification{
		Type:        req.Type,
		SlotDate:    slotDate,
		StartTime:   req.Slot.StartTime,
		EndTime:     req.Slot.EndTime,
		Location:    req.Slot.Location,
		Description: req.Slot.Description,
		SenderID:    senderID,
	}
	if err := s.notifications.CreateWithRecipients(ctx, n, recipients); err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("create_notification", "error").Inc()
		return nil, errors.Internal(err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("create_notification", "success").Inc()

	report := s.deliver(ctx, n, recipients)

	status := model.NotificationStatusSent
	if report.PushNotificationsSent == 0 {
		status = model.NotificationStatusFailed
	}
	if err := s.notifications.UpdateStatus(ctx, n.ID, status); err != nil {
		s.logger.Error(err, "failed to update notification status",
			"notification_id", n.ID.String())
	}
	s.metrics.NotificationsDispatched.WithLabelValues(string(n.Type), string(status)).Inc()

	s.publish(ctx, messaging.ChannelNotificationDispatched, map[string]interface{}{
		"notification_id":  n.ID,
		"type":             n.Type,
		"total_recipients": report.TotalRecipients,
		"sent":             report.PushNotificationsSent,
		"failed":           report.FailedDeliveries,
	})

	return report, nil
}

// resolveRecipients computes the deduplicated target set per type policy.
func (s *Service) resolveRecipients(ctx context.Context, req *model.SendNotificationRequest) ([]uuid.UUID, error) {
	switch req.Type {
	case model.NotificationTypeSlotProposal:
		if len(req.RecipientIDs) == 0 {
			return nil, errors.BadRequest("recipientIds is required for a slot proposal", nil)
		}
		ids := dedupe(req.RecipientIDs)
		if len(ids) > model.MaxProposalRecipients {
			return nil, errors.BadRequest(
				fmt.Sprintf("a slot proposal is limited to %d recipients", model.MaxProposalRecipients), nil)
		}
		return ids, nil

	case model.NotificationTypeSlotAvailable:
		// Snapshot at dispatch time; later preference changes do not
		// retarget an already-dispatched notification.
		ids, err := s.users.ListAlertSubscriberIDs(ctx)
		if err != nil {
			return nil, errors.Internal(err)
		}
		return ids, nil

	case model.NotificationTypeSlotCancelled:
		if req.SlotID == nil {
			return nil, errors.BadRequest("slotId is required for a cancellation", nil)
		}
		ids, err := s.notifications.ListAcceptedUserIDs(ctx, *req.SlotID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		return ids, nil

	default:
		return nil, errors.BadRequest("unknown notification type", nil)
	}
}

// deliver fans out one push per subscription with bounded parallelism and
// folds the outcomes into a per-recipient report. A recipient counts as
// delivered when at least one of their subscriptions accepted the push.
// No retries happen here.
func (s *Service) deliver(ctx context.Context, n *model.Notification, recipients []uuid.UUID) *model.DeliveryReport {
	report := &model.DeliveryReport{
		NotificationID:  n.ID,
		TotalRecipients: len(recipients),
	}

	subs, err := s.subscriptions.ListForUsers(ctx, recipients)
	if err != nil {
		s.logger.Error(err, "failed to load subscriptions",
			"notification_id", n.ID.String())
		report.FailedDeliveries = len(recipients)
		for _, userID := range recipients {
			report.Failures = append(report.Failures, model.DeliveryFailure{
				UserID: userID,
				Reason: "failed to load subscriptions",
			})
		}
		return report
	}

	byUser := make(map[uuid.UUID][]*model.PushSubscription, len(recipients))
	for _, sub := range subs {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}

	payload, err := marshalPayload(s.buildPayload(n))
	if err != nil {
		report.FailedDeliveries = len(recipients)
		for _, userID := range recipients {
			report.Failures = append(report.Failures, model.DeliveryFailure{
				UserID: userID,
				Reason: "failed to encode push payload",
			})
		}
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)

	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			delivered, failures := s.deliverToUser(gctx, n, userID, byUser[userID], payload)

			mu.Lock()
			defer mu.Unlock()
			if delivered {
				report.PushNotificationsSent++
			} else {
				report.FailedDeliveries++
			}
			report.Failures = append(report.Failures, failures...)
			return nil
		})
	}
	g.Wait()

	return report
}

func (s *Service) deliverToUser(ctx context.Context, n *model.Notification, userID uuid.UUID, subs []*model.PushSubscription, payload []byte) (bool, []model.DeliveryFailure) {
	if len(subs) == 0 {
		s.emailFallback(ctx, userID, n)
		return false, []model.DeliveryFailure{{
			UserID: userID,
			Reason: "no active subscriptions",
		}}
	}

	delivered := false
	var failures []model.DeliveryFailure

	for _, sub := range subs {
		err := s.pusher.Send(ctx, sub, payload)
		if err == nil {
			s.metrics.PushSendTotal.WithLabelValues("success").Inc()
			delivered = true
			continue
		}

		if stderrors.Is(err, push.ErrSubscriptionGone) {
			s.metrics.PushSendTotal.WithLabelValues("gone").Inc()
			if delErr := s.subscriptions.Delete(ctx, sub.ID); delErr != nil {
				s.logger.Error(delErr, "failed to remove dead subscription",
					"subscription_id", sub.ID.String())
			} else {
				s.metrics.DeadSubscriptionsRemoved.Inc()
			}
		} else {
			s.metrics.PushSendTotal.WithLabelValues("failure").Inc()
		}

		failures = append(failures, model.DeliveryFailure{
			UserID:   userID,
			Endpoint: sub.Endpoint,
			Reason:   err.Error(),
		})
	}

	if delivered {
		if err := s.notifications.MarkReceived(ctx, n.ID, userID); err != nil {
			s.logger.Error(err, "failed to mark recipient received",
				"notification_id", n.ID.String(), "user_id", userID.String())
		}
	} else {
		s.emailFallback(ctx, userID, n)
	}

	return delivered, failures
}

func (s *Service) emailFallback(ctx context.Context, userID uuid.UUID, n *model.Notification) {
	if s.mailer == nil {
		return
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logger.Error(err, "email fallback: unknown user", "user_id", userID.String())
		return
	}

	if err := s.mailer.SendSlotSummary(ctx, u.Email, n); err != nil {
		s.logger.Error(err, "email fallback failed", "user_id", userID.String())
		return
	}
	s.metrics.EmailFallbacksSent.Inc()
}

func (s *Service) buildPayload(n *model.Notification) *push.Payload {
	p := &push.Payload{
		NotificationID: n.ID,
		URL:            s.cfg.FrontendURL + "/notifications",
	}

	when := fmt.Sprintf("%s %s-%s, %s",
		n.SlotDate.Format("Mon 02 Jan"), n.StartTime, n.EndTime, n.Location)

	switch n.Type {
	case model.NotificationTypeSlotProposal:
		p.Title = "Preaching slot proposal"
		p.Body = "You have been proposed for " + when
	case model.NotificationTypeSlotAvailable:
		p.Title = "Preaching slot available"
		p.Body = "A slot opened up: " + when
	case model.NotificationTypeSlotCancelled:
		p.Title = "Preaching slot cancelled"
		p.Body = "Cancelled: " + when
	}
	return p
}

// History returns every notification with its aggregated recipient counts,
// newest-sent-first. Counts are recomputed on every call.
func (s *Service) History(ctx context.Context) ([]*model.NotificationWithMetrics, error) {
	rows, err := s.notifications.ListWithMetrics(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return rows, nil
}

// ListForUser returns the caller's notifications with their own
// recipient state.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserNotification, error) {
	rows, err := s.notifications.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return rows, nil
}

// MarkRead sets the notification status to READ.
func (s *Service) MarkRead(ctx context.Context, notificationID uuid.UUID) error {
	if err := s.notifications.UpdateStatus(ctx, notificationID, model.NotificationStatusRead); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.BadRequest("unknown notification", err)
		}
		return errors.Internal(err)
	}
	return nil
}

// MarkClicked records a click on the (notification, user) recipient row.
// Repeated clicks keep the first timestamp.
func (s *Service) MarkClicked(ctx context.Context, notificationID, userID uuid.UUID) error {
	if err := s.notifications.MarkClicked(ctx, notificationID, userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.BadRequest("unknown notification or recipient", err)
		}
		return errors.Internal(err)
	}

	s.publish(ctx, messaging.ChannelRecipientAction, map[string]interface{}{
		"notification_id": notificationID,
		"user_id":         userID,
		"event":           "clicked",
	})
	return nil
}

// Respond records the caller's accept/refuse; a second response overwrites
// the first, leaving only the latest action and timestamp.
func (s *Service) Respond(ctx context.Context, notificationID, userID uuid.UUID, action model.RecipientAction) error {
	if err := s.notifications.SetRecipientAction(ctx, notificationID, userID, action); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("recipient row", err)
		}
		return errors.Internal(err)
	}

	s.publish(ctx, messaging.ChannelRecipientAction, map[string]interface{}{
		"notification_id": notificationID,
		"user_id":         userID,
		"event":           "responded",
		"action":          action,
	})
	return nil
}

// publish is best-effort; event delivery never fails a request.
func (s *Service) publish(ctx context.Context, channel string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, channel, payload); err != nil {
		s.logger.Error(err, "failed to publish event", "channel", channel)
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
