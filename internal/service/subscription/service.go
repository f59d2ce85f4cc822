package subscription

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
	"github.com/openfield/notify-api/pkg/errors"
)

type Service struct {
	repo repository.SubscriptionRepository
}

func NewService(repo repository.SubscriptionRepository) *Service {
	return &Service{repo: repo}
}

// RegisterResult distinguishes a fresh registration from a refresh of an
// endpoint the service already knew.
type RegisterResult struct {
	Subscription *model.PushSubscription
	Created      bool
}

// Register stores a browser push endpoint for the user. Re-registering a
// known endpoint refreshes its keys and last_used_at without creating a
// duplicate row; the write is a single upsert, safe under concurrent
// duplicate requests.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, req *model.SubscribeRequest) (*RegisterResult, error) {
	if !strings.HasPrefix(req.Endpoint, "https://") {
		return nil, errors.BadRequest("endpoint must be an https URL", nil)
	}

	sub := &model.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}

	created, err := s.repo.Upsert(ctx, sub)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &RegisterResult{Subscription: sub, Created: created}, nil
}

// Unregister removes the endpoint for the user; unknown endpoints are a
// not-found, matching the browser-initiated unsubscribe flow.
func (s *Service) Unregister(ctx context.Context, userID uuid.UUID, endpoint string) error {
	if err := s.repo.DeleteByEndpoint(ctx, userID, endpoint); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("subscription", err)
		}
		return errors.Internal(err)
	}
	return nil
}
