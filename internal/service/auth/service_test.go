package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield/notify-api/internal/config"
	"github.com/openfield/notify-api/internal/model"
)

func newService(secret string) *Service {
	return NewService(config.JWTConfig{Secret: secret, ExpiryHours: 1})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newService("test-secret")
	user := &model.User{
		ID:    uuid.New(),
		Email: "ana@example.org",
		Name:  "Ana",
		Role:  model.UserRoleAdmin,
	}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Name, claims.Name)
	assert.Equal(t, model.UserRoleAdmin, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := newService("secret-a").GenerateToken(&model.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = newService("secret-b").ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := newService("test-secret").ValidateToken(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenDefaultsMissingRole(t *testing.T) {
	svc := newService("test-secret")

	token, err := svc.GenerateToken(&model.User{ID: uuid.New(), Email: "u@example.org"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleUser, claims.Role)
}
