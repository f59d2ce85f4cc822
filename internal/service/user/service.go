package user

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
	"github.com/openfield/notify-api/pkg/errors"
)

type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// EnsureUser mirrors an authenticated identity locally. This replaces the
// signup trigger of the hosted database: the first authenticated request
// from a user creates their row.
func (s *Service) EnsureUser(ctx context.Context, claims *model.TokenClaims) error {
	u := &model.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}
	if err := s.repo.Ensure(ctx, u); err != nil {
		return fmt.Errorf("failed to mirror user: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("user", err)
		}
		return nil, errors.Internal(err)
	}
	return u, nil
}

// IsAdmin reports whether the user holds the admin role in the mirror,
// which is authoritative over the token's role claim.
func (s *Service) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return u.IsAdmin(), nil
}

func (s *Service) UpdateAlertPreference(ctx context.Context, id uuid.UUID, enabled bool) error {
	if err := s.repo.UpdateAlertPreference(ctx, id, enabled); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("user", err)
		}
		return errors.Internal(err)
	}
	return nil
}

// PromoteByEmail grants the admin role, the API-side counterpart of the
// promote_to_admin database function.
func (s *Service) PromoteByEmail(ctx context.Context, email string) error {
	if err := s.repo.PromoteByEmail(ctx, email); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("user", err)
		}
		return errors.Internal(err)
	}
	return nil
}
