package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield/notify-api/internal/config"
	"github.com/openfield/notify-api/internal/handler"
	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/service/auth"
	"github.com/openfield/notify-api/internal/service/user"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Ensure(ctx context.Context, u *model.User) error {
	if existing, ok := r.users[u.ID]; ok {
		existing.Email = u.Email
		existing.Name = u.Name
		return nil
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, fmt.Errorf("user not found")
}

func (r *fakeUserRepo) ListAlertSubscriberIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *fakeUserRepo) UpdateAlertPreference(ctx context.Context, id uuid.UUID, enabled bool) error {
	return nil
}

func (r *fakeUserRepo) PromoteByEmail(ctx context.Context, email string) error { return nil }

func newTestStack(t *testing.T) (*gin.Engine, *auth.Service, *fakeUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authSvc := auth.NewService(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1})
	repo := newFakeUserRepo()
	m := NewAuthMiddleware(authSvc, user.NewService(repo))

	engine := gin.New()
	engine.GET("/me", m.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(handler.ContextUserID)})
	})
	engine.GET("/admin", m.Authenticate(), m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return engine, authSvc, repo
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	engine, _, _ := newTestStack(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	engine, _, _ := newTestStack(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateMirrorsUserAndSetsContext(t *testing.T) {
	engine, authSvc, repo := newTestStack(t)

	u := &model.User{ID: uuid.New(), Email: "ana@example.org", Name: "Ana", Role: model.UserRoleUser}
	token, err := authSvc.GenerateToken(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), u.ID.String())

	mirrored, err := repo.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", mirrored.Email)
}

func TestRequireAdminForbidsRegularUser(t *testing.T) {
	engine, authSvc, _ := newTestStack(t)

	token, err := authSvc.GenerateToken(&model.User{ID: uuid.New(), Role: model.UserRoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminTrustsMirrorOverToken(t *testing.T) {
	engine, authSvc, repo := newTestStack(t)

	// The token claims admin, but the mirrored row says user.
	id := uuid.New()
	repo.users[id] = &model.User{ID: id, Role: model.UserRoleUser}

	token, err := authSvc.GenerateToken(&model.User{ID: id, Role: model.UserRoleAdmin})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	engine, authSvc, repo := newTestStack(t)

	id := uuid.New()
	repo.users[id] = &model.User{ID: id, Role: model.UserRoleAdmin}

	token, err := authSvc.GenerateToken(&model.User{ID: id, Role: model.UserRoleAdmin})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
