package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
)

type subscriptionRepository struct {
	*BaseRepository
}

func NewSubscriptionRepository(base *BaseRepository) repository.SubscriptionRepository {
	return &subscriptionRepository{BaseRepository: base}
}

// Upsert registers an endpoint, or refreshes keys, owner and last_used_at
// when the endpoint is already known. Endpoint uniqueness is enforced by
// the database, so concurrent duplicate registrations collapse into one
// row. The xmax check reports whether this call inserted the row.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.PushSubscription) (bool, error) {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			last_used_at = EXCLUDED.last_used_at
		RETURNING id, created_at, (xmax = 0) AS inserted
	`
	now := time.Now()
	sub.ID = uuid.New()
	sub.CreatedAt = now
	sub.LastUsedAt = now

	var row struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		Inserted  bool      `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &row, query,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		sub.CreatedAt,
		sub.LastUsedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	sub.ID = row.ID
	sub.CreatedAt = row.CreatedAt
	return row.Inserted, nil
}

func (r *subscriptionRepository) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	query := `
		DELETE FROM push_subscriptions
		WHERE user_id = $1 AND endpoint = $2
	`
	result, err := r.db.ExecContext(ctx, query, userID, endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM push_subscriptions
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) ListForUsers(ctx context.Context, userIDs []uuid.UUID) ([]*model.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, endpoint, p256dh, auth, created_at, last_used_at
		FROM push_subscriptions
		WHERE user_id = ANY($1::uuid[])
	`
	var subs []*model.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, uuidArray(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
