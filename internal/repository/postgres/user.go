package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
)

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(base *BaseRepository) repository.UserRepository {
	return &userRepository{BaseRepository: base}
}

// Ensure mirrors an auth-provider identity locally. Existing rows keep
// their role and alert preference; only the profile fields refresh.
func (r *userRepository) Ensure(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, role, availability_alerts_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if user.Role == "" {
		user.Role = model.UserRoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.AvailabilityAlertsEnabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, name, role, availability_alerts_enabled, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, name, role, availability_alerts_enabled, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListAlertSubscriberIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE availability_alerts_enabled = true
	`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list alert subscribers: %w", err)
	}
	return ids, nil
}

func (r *userRepository) UpdateAlertPreference(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `
		UPDATE users
		SET availability_alerts_enabled = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update alert preference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *userRepository) PromoteByEmail(ctx context.Context, email string) error {
	query := `
		UPDATE users
		SET role = $1, updated_at = $2
		WHERE email = $3
	`
	result, err := r.db.ExecContext(ctx, query, model.UserRoleAdmin, time.Now(), email)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	return nil
}
