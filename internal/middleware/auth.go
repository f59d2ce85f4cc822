package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/openfield/notify-api/internal/handler"
	"github.com/openfield/notify-api/internal/service/auth"
	"github.com/openfield/notify-api/internal/service/user"
	"github.com/openfield/notify-api/pkg/httputil"
)

const (
	roleCacheTTL     = 5 * time.Minute
	roleCacheCleanup = 15 * time.Minute
)

type AuthMiddleware struct {
	authService *auth.Service
	userService *user.Service
	// roleCache keeps recent admin-role lookups out of the hot path.
	// A promotion becomes visible within roleCacheTTL.
	roleCache *gocache.Cache
}

func NewAuthMiddleware(authService *auth.Service, userService *user.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userService: userService,
		roleCache:   gocache.New(roleCacheTTL, roleCacheCleanup),
	}
}

// Authenticate verifies the bearer token, mirrors the identity locally and
// sets the caller's id, email and role in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			m.abortUnauthorized(c, "invalid token")
			return
		}

		if err := m.userService.EnsureUser(c.Request.Context(), claims); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Response{
				Success: false,
				Error:   &httputil.Error{Code: http.StatusInternalServerError, Message: "internal server error"},
			})
			return
		}

		c.Set(handler.ContextUserID, claims.UserID.String())
		c.Set(handler.ContextEmail, claims.Email)
		c.Set(handler.ContextRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin checks the admin role against the local user mirror, which
// is authoritative over the token's role claim.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetString(handler.ContextUserID))
		if err != nil {
			m.abortUnauthorized(c, "invalid user ID")
			return
		}

		isAdmin, err := m.isAdmin(c, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Response{
				Success: false,
				Error:   &httputil.Error{Code: http.StatusInternalServerError, Message: "failed to check role"},
			})
			return
		}

		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, httputil.Response{
				Success: false,
				Error:   &httputil.Error{Code: http.StatusForbidden, Message: "admin role required"},
			})
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) isAdmin(c *gin.Context, userID uuid.UUID) (bool, error) {
	key := userID.String()
	if cached, ok := m.roleCache.Get(key); ok {
		return cached.(bool), nil
	}

	isAdmin, err := m.userService.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		return false, err
	}
	m.roleCache.Set(key, isAdmin, gocache.DefaultExpiration)
	return isAdmin, nil
}

func (m *AuthMiddleware) abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.Response{
		Success: false,
		Error:   &httputil.Error{Code: http.StatusUnauthorized, Message: message},
	})
}
