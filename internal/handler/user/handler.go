package user

import (
	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/internal/handler"
	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/service/user"
	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/httputil"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

// Me returns the caller's mirrored profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	u, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

// UpdatePreferences toggles the caller's availability alert flag.
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid preferences payload", err))
		return
	}

	if err := h.service.UpdateAlertPreference(c.Request.Context(), userID, *req.AvailabilityAlertsEnabled); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// Promote grants the admin role to a user by email.
func (h *Handler) Promote(c *gin.Context) {
	var req model.PromoteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid promote payload", err))
		return
	}

	if err := h.service.PromoteByEmail(c.Request.Context(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// RegisterRoutes mounts the authenticated user routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/me", h.Me)
	r.PUT("/users/preferences", h.UpdatePreferences)
}

// RegisterAdminRoutes mounts the admin-only routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/users/promote", h.Promote)
}
