package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository maintains the local mirror of auth-provider users.
	UserRepository interface {
		Ensure(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListAlertSubscriberIDs(ctx context.Context) ([]uuid.UUID, error)
		UpdateAlertPreference(ctx context.Context, id uuid.UUID, enabled bool) error
		PromoteByEmail(ctx context.Context, email string) error
	}

	// SubscriptionRepository handles browser push endpoints.
	SubscriptionRepository interface {
		Upsert(ctx context.Context, sub *model.PushSubscription) (created bool, err error)
		DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*model.PushSubscription, error)
	}

	// NotificationRepository handles dispatch events and recipient tracking.
	NotificationRepository interface {
		CreateWithRecipients(ctx context.Context, n *model.Notification, userIDs []uuid.UUID) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) error
		MarkReceived(ctx context.Context, notificationID, userID uuid.UUID) error
		MarkClicked(ctx context.Context, notificationID, userID uuid.UUID) error
		SetRecipientAction(ctx context.Context, notificationID, userID uuid.UUID, action model.RecipientAction) error
		ListAcceptedUserIDs(ctx context.Context, notificationID uuid.UUID) ([]uuid.UUID, error)
		ListWithMetrics(ctx context.Context) ([]*model.NotificationWithMetrics, error)
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserNotification, error)
	}
)
