package notification

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/push"
	"github.com/openfield/notify-api/internal/repository"
	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/logger"
	"github.com/openfield/notify-api/pkg/metrics"
)

type fakeUserRepo struct {
	mu               sync.Mutex
	users            map[uuid.UUID]*model.User
	alertSubscribers []uuid.UUID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) add(role string, alertsEnabled bool) uuid.UUID {
	id := uuid.New()
	r.users[id] = &model.User{
		ID:                        id,
		Email:                     id.String() + "@example.org",
		Role:                      role,
		AvailabilityAlertsEnabled: alertsEnabled,
	}
	if alertsEnabled {
		r.alertSubscribers = append(r.alertSubscribers, id)
	}
	return id
}

func (r *fakeUserRepo) Ensure(ctx context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

func (r *fakeUserRepo) ListAlertSubscriberIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.alertSubscribers, nil
}

func (r *fakeUserRepo) UpdateAlertPreference(ctx context.Context, id uuid.UUID, enabled bool) error {
	return nil
}

func (r *fakeUserRepo) PromoteByEmail(ctx context.Context, email string) error {
	return nil
}

type fakeSubscriptionRepo struct {
	mu      sync.Mutex
	subs    []*model.PushSubscription
	deleted []uuid.UUID
	listErr error
}

func (r *fakeSubscriptionRepo) add(userID uuid.UUID, endpoint string) *model.PushSubscription {
	sub := &model.PushSubscription{
		ID:       uuid.New(),
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   "p256dh",
		Auth:     "auth",
	}
	r.subs = append(r.subs, sub)
	return sub
}

func (r *fakeSubscriptionRepo) Upsert(ctx context.Context, sub *model.PushSubscription) (bool, error) {
	return true, nil
}

func (r *fakeSubscriptionRepo) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return nil
}

func (r *fakeSubscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeSubscriptionRepo) ListForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*model.PushSubscription, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	wanted := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []*model.PushSubscription
	for _, sub := range r.subs {
		if wanted[sub.UserID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu         sync.Mutex
	created    *model.Notification
	recipients []uuid.UUID
	status     model.NotificationStatus
	received   []uuid.UUID
	accepted   []uuid.UUID
	clickErr   error
	actionErr  error
}

func (r *fakeNotificationRepo) CreateWithRecipients(ctx context.Context, n *model.Notification, userIDs []uuid.UUID) error {
	n.ID = uuid.New()
	n.Status = model.NotificationStatusPending
	r.created = n
	r.recipients = userIDs
	return nil
}

func (r *fakeNotificationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	if r.created == nil || r.created.ID != id {
		return nil, fmt.Errorf("notification not found")
	}
	return r.created, nil
}

func (r *fakeNotificationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) error {
	if r.created == nil || r.created.ID != id {
		return fmt.Errorf("notification not found")
	}
	r.status = status
	return nil
}

func (r *fakeNotificationRepo) MarkReceived(ctx context.Context, notificationID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, userID)
	return nil
}

func (r *fakeNotificationRepo) MarkClicked(ctx context.Context, notificationID, userID uuid.UUID) error {
	return r.clickErr
}

func (r *fakeNotificationRepo) SetRecipientAction(ctx context.Context, notificationID, userID uuid.UUID, action model.RecipientAction) error {
	return r.actionErr
}

func (r *fakeNotificationRepo) ListAcceptedUserIDs(ctx context.Context, notificationID uuid.UUID) ([]uuid.UUID, error) {
	return r.accepted, nil
}

func (r *fakeNotificationRepo) ListWithMetrics(ctx context.Context) ([]*model.NotificationWithMetrics, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserNotification, error) {
	return nil, nil
}

type fakePusher struct {
	mu    sync.Mutex
	sends int
	// errs maps an endpoint to the error its sends should return.
	errs map[string]error
}

func (p *fakePusher) Send(ctx context.Context, sub *model.PushSubscription, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends++
	if err, ok := p.errs[sub.Endpoint]; ok {
		return err
	}
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendSlotSummary(ctx context.Context, to string, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type fixture struct {
	svc    *Service
	users  *fakeUserRepo
	subs   *fakeSubscriptionRepo
	repo   *fakeNotificationRepo
	pusher *fakePusher
	mailer *fakeMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  newFakeUserRepo(),
		subs:   &fakeSubscriptionRepo{},
		repo:   &fakeNotificationRepo{},
		pusher: &fakePusher{},
		mailer: &fakeMailer{},
	}
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	f.svc = NewService(f.repo, f.subs, f.users, f.pusher, f.mailer, nil, m, log, Config{
		FrontendURL: "https://app.example.org",
	})
	return f
}

func validSlot() model.SlotDetails {
	return model.SlotDetails{
		Date:      "2026-09-12",
		StartTime: "10:00",
		EndTime:   "12:00",
		Location:  "Market square",
	}
}

func TestDispatchProposalDeliversToAllRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	var recipients []uuid.UUID
	for i := 0; i < 3; i++ {
		id := f.users.add(model.UserRoleUser, false)
		f.subs.add(id, fmt.Sprintf("https://push.example.org/%d", i))
		recipients = append(recipients, id)
	}

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: recipients,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRecipients)
	assert.Equal(t, 3, report.PushNotificationsSent)
	assert.Equal(t, 0, report.FailedDeliveries)
	assert.Empty(t, report.Failures)

	require.NotNil(t, f.repo.created)
	assert.Len(t, f.repo.recipients, 3)
	assert.Equal(t, model.NotificationStatusSent, f.repo.status)
	assert.Len(t, f.repo.received, 3)
}

func TestDispatchProposalDeduplicatesRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	target := f.users.add(model.UserRoleUser, false)
	f.subs.add(target, "https://push.example.org/a")

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{target, target, target},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalRecipients)
	assert.Len(t, f.repo.recipients, 1)
}

func TestDispatchProposalRejectsTooManyRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	ids := make([]uuid.UUID, model.MaxProposalRecipients+1)
	for i := range ids {
		ids[i] = uuid.New()
	}

	_, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: ids,
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
	assert.Nil(t, f.repo.created, "nothing should be written when the cap is exceeded")
}

func TestDispatchProposalRequiresRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	_, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type: model.NotificationTypeSlotProposal,
		Slot: validSlot(),
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestDispatchUnknownSenderIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Dispatch(context.Background(), uuid.New(), &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
}

func TestDispatchRejectsNonAdminSender(t *testing.T) {
	f := newFixture(t)
	sender := f.users.add(model.UserRoleUser, false)

	_, err := f.svc.Dispatch(context.Background(), sender, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, appErr.Code)
	assert.Nil(t, f.repo.created)
}

func TestDispatchRejectsInvalidSlotDate(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	slot := validSlot()
	slot.Date = "12/09/2026"

	_, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         slot,
		RecipientIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestDispatchAvailableTargetsAlertSubscribers(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	subscribed := f.users.add(model.UserRoleUser, true)
	f.users.add(model.UserRoleUser, false)
	f.subs.add(subscribed, "https://push.example.org/a")

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type: model.NotificationTypeSlotAvailable,
		Slot: validSlot(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalRecipients)
	assert.Equal(t, []uuid.UUID{subscribed}, f.repo.recipients)
}

func TestDispatchAvailableWithNoSubscribersFails(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	_, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type: model.NotificationTypeSlotAvailable,
		Slot: validSlot(),
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestDispatchCancelledTargetsAcceptedRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	acceptor := f.users.add(model.UserRoleUser, false)
	f.subs.add(acceptor, "https://push.example.org/a")
	f.repo.accepted = []uuid.UUID{acceptor}

	slotID := uuid.New()
	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:   model.NotificationTypeSlotCancelled,
		Slot:   validSlot(),
		SlotID: &slotID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalRecipients)
	assert.Equal(t, []uuid.UUID{acceptor}, f.repo.recipients)
}

func TestDispatchCancelledRequiresSlotID(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)

	_, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type: model.NotificationTypeSlotCancelled,
		Slot: validSlot(),
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestDispatchRemovesGoneSubscriptions(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	target := f.users.add(model.UserRoleUser, false)
	dead := f.subs.add(target, "https://push.example.org/dead")
	f.pusher.errs = map[string]error{
		"https://push.example.org/dead": push.ErrSubscriptionGone,
	}

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{target},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.PushNotificationsSent)
	assert.Equal(t, 1, report.FailedDeliveries)
	assert.Equal(t, []uuid.UUID{dead.ID}, f.subs.deleted)
	assert.Equal(t, model.NotificationStatusFailed, f.repo.status)
}

func TestDispatchOneLiveSubscriptionCountsDelivered(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	target := f.users.add(model.UserRoleUser, false)
	f.subs.add(target, "https://push.example.org/dead")
	f.subs.add(target, "https://push.example.org/live")
	f.pusher.errs = map[string]error{
		"https://push.example.org/dead": push.ErrSubscriptionGone,
	}

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{target},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.PushNotificationsSent)
	assert.Equal(t, 0, report.FailedDeliveries)
	assert.Len(t, report.Failures, 1, "the dead endpoint is still itemized")
	assert.Equal(t, []uuid.UUID{target}, f.repo.received)
	assert.Empty(t, f.mailer.sent, "no fallback when push got through")
}

func TestDispatchFallsBackToEmailWithoutSubscriptions(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	target := f.users.add(model.UserRoleUser, false)

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{target},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.PushNotificationsSent)
	assert.Equal(t, 1, report.FailedDeliveries)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "no active subscriptions", report.Failures[0].Reason)
	assert.Equal(t, []string{target.String() + "@example.org"}, f.mailer.sent)
}

func TestDispatchPayloadEncodeFailureItemizesRecipients(t *testing.T) {
	f := newFixture(t)
	admin := f.users.add(model.UserRoleAdmin, false)
	target := f.users.add(model.UserRoleUser, false)
	f.subs.add(target, "https://push.example.org/a")

	orig := marshalPayload
	marshalPayload = func(v interface{}) ([]byte, error) { return nil, fmt.Errorf("encode failed") }
	defer func() { marshalPayload = orig }()

	report, err := f.svc.Dispatch(context.Background(), admin, &model.SendNotificationRequest{
		Type:         model.NotificationTypeSlotProposal,
		Slot:         validSlot(),
		RecipientIDs: []uuid.UUID{target},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.PushNotificationsSent)
	assert.Equal(t, 1, report.FailedDeliveries)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, target, report.Failures[0].UserID)
	assert.Equal(t, "failed to encode push payload", report.Failures[0].Reason)
	assert.Equal(t, model.NotificationStatusFailed, f.repo.status)
}

func TestMarkClickedUnknownRecipientIsBadRequest(t *testing.T) {
	f := newFixture(t)
	f.repo.clickErr = fmt.Errorf("recipient row: %w", repository.ErrNotFound)

	err := f.svc.MarkClicked(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
}

func TestMarkClickedRepositoryFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.repo.clickErr = fmt.Errorf("connection refused")

	err := f.svc.MarkClicked(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrInternal, appErr.Code)
}

func TestRespondUnknownRecipientIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.repo.actionErr = fmt.Errorf("recipient row: %w", repository.ErrNotFound)

	err := f.svc.Respond(context.Background(), uuid.New(), uuid.New(), model.RecipientActionAccepted)
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestRespondRepositoryFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.repo.actionErr = fmt.Errorf("connection refused")

	err := f.svc.Respond(context.Background(), uuid.New(), uuid.New(), model.RecipientActionRefused)
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrInternal, appErr.Code)
}
