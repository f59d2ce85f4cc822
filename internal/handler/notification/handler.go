package notification

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openfield/notify-api/internal/handler"
	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/service/notification"
	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/httputil"
)

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

// Send dispatches a notification and returns the delivery report.
func (h *Handler) Send(c *gin.Context) {
	senderID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid notification payload", err))
		return
	}

	report, err := h.service.Dispatch(c.Request.Context(), senderID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}

// History lists all notifications with aggregated recipient metrics.
func (h *Handler) History(c *gin.Context) {
	rows, err := h.service.History(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rows)
}

// Mine lists the caller's notifications with their recipient state.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	rows, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rows)
}

// TrackClick records a click. The route enforces no token; the row
// predicate on (notification_id, user_id) is the only check, matching the
// original trust boundary.
func (h *Handler) TrackClick(c *gin.Context) {
	var req model.TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid click payload", err))
		return
	}

	if err := h.service.MarkClicked(c.Request.Context(), req.NotificationID, req.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// TrackRead marks a notification read by the caller.
func (h *Handler) TrackRead(c *gin.Context) {
	if _, ok := handler.UserID(c); !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.TrackReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid read payload", err))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), req.NotificationID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// Respond records the caller's accept/refuse for a notification.
func (h *Handler) Respond(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid notification ID", err))
		return
	}

	var req model.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid response payload", err))
		return
	}

	if err := h.service.Respond(c.Request.Context(), notificationID, userID, req.Action); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// RegisterPublicRoutes mounts the routes that need no token.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/notifications/track-click", h.TrackClick)
}

// RegisterRoutes mounts the authenticated user routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications/track-read", h.TrackRead)
	r.GET("/notifications/mine", h.Mine)
	r.POST("/notifications/:id/respond", h.Respond)
}

// RegisterAdminRoutes mounts the admin-only routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.Send)
	r.GET("/notifications", h.History)
}
