package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
)

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: base}
}

// CreateWithRecipients inserts the notification and its recipient rows in
// one transaction, so a notification can never exist with zero recipients.
func (r *notificationRepository) CreateWithRecipients(ctx context.Context, n *model.Notification, userIDs []uuid.UUID) error {
	now := time.Now()
	n.ID = uuid.New()
	n.Status = model.NotificationStatusPending
	n.SentAt = now
	n.CreatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO notifications (
				id, type, status, slot_date, start_time, end_time,
				location, description, sender_id, sent_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			n.ID,
			n.Type,
			n.Status,
			n.SlotDate,
			n.StartTime,
			n.EndTime,
			n.Location,
			n.Description,
			n.SenderID,
			n.SentAt,
			n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}

		recipientQuery := `
			INSERT INTO notification_recipients (id, notification_id, user_id, received, clicked, created_at)
			VALUES ($1, $2, $3, false, false, $4)
		`
		for _, userID := range userIDs {
			if _, err := tx.ExecContext(ctx, recipientQuery, uuid.New(), n.ID, userID, now); err != nil {
				return fmt.Errorf("failed to create recipient row: %w", err)
			}
		}
		return nil
	})
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `
		SELECT id, type, status, slot_date, start_time, end_time,
			   location, description, sender_id, sent_at, created_at
		FROM notifications
		WHERE id = $1
	`
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) error {
	query := `
		UPDATE notifications
		SET status = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *notificationRepository) MarkReceived(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		UPDATE notification_recipients
		SET received = true,
			received_at = COALESCE(received_at, $1)
		WHERE notification_id = $2 AND user_id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), notificationID, userID); err != nil {
		return fmt.Errorf("failed to mark recipient received: %w", err)
	}
	return nil
}

// MarkClicked is idempotent: the first click wins the timestamp.
func (r *notificationRepository) MarkClicked(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		UPDATE notification_recipients
		SET clicked = true,
			clicked_at = COALESCE(clicked_at, $1)
		WHERE notification_id = $2 AND user_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark recipient clicked: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recipient row: %w", repository.ErrNotFound)
	}
	return nil
}

// SetRecipientAction overwrites any previous response: only the latest
// action and its timestamp remain.
func (r *notificationRepository) SetRecipientAction(ctx context.Context, notificationID, userID uuid.UUID, action model.RecipientAction) error {
	query := `
		UPDATE notification_recipients
		SET action = $1, action_at = $2
		WHERE notification_id = $3 AND user_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, action, time.Now(), notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to set recipient action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recipient row: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *notificationRepository) ListAcceptedUserIDs(ctx context.Context, notificationID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM notification_recipients
		WHERE notification_id = $1 AND action = $2
	`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, notificationID, model.RecipientActionAccepted); err != nil {
		return nil, fmt.Errorf("failed to list accepted recipients: %w", err)
	}
	return ids, nil
}

// ListWithMetrics folds recipient rows into counts per notification.
// Metrics are never stored; this recomputes them on every call.
func (r *notificationRepository) ListWithMetrics(ctx context.Context) ([]*model.NotificationWithMetrics, error) {
	query := `
		SELECT n.id, n.type, n.status, n.slot_date, n.start_time, n.end_time,
			   n.location, n.description, n.sender_id, n.sent_at, n.created_at,
			   COUNT(r.id) AS total_recipients,
			   COUNT(*) FILTER (WHERE r.received) AS received_count,
			   COUNT(*) FILTER (WHERE r.clicked) AS clicked_count,
			   COUNT(*) FILTER (WHERE r.action = 'ACCEPTED') AS accepted_count,
			   COUNT(*) FILTER (WHERE r.action = 'REFUSED') AS refused_count
		FROM notifications n
		LEFT JOIN notification_recipients r ON r.notification_id = n.id
		GROUP BY n.id
		ORDER BY n.sent_at DESC
	`
	var rows []*model.NotificationWithMetrics
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list notifications with metrics: %w", err)
	}
	return rows, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.UserNotification, error) {
	query := `
		SELECT n.id, n.type, n.status, n.slot_date, n.start_time, n.end_time,
			   n.location, n.description, n.sender_id, n.sent_at, n.created_at,
			   r.received, r.clicked, r.action, r.action_at
		FROM notifications n
		JOIN notification_recipients r ON r.notification_id = n.id
		WHERE r.user_id = $1
		ORDER BY n.sent_at DESC
	`
	var rows []*model.UserNotification
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user notifications: %w", err)
	}
	return rows, nil
}
