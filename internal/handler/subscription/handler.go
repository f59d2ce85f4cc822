package subscription

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/internal/handler"
	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/service/subscription"
	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/httputil"
)

type Handler struct {
	service        *subscription.Service
	vapidPublicKey string
}

func NewHandler(service *subscription.Service, vapidPublicKey string) *Handler {
	return &Handler{service: service, vapidPublicKey: vapidPublicKey}
}

// GetVAPIDKey hands the public key to the service worker. Unauthenticated.
func (h *Handler) GetVAPIDKey(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"publicKey": h.vapidPublicKey})
}

func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid subscription payload", err))
		return
	}

	result, err := h.service.Register(c.Request.Context(), userID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.RespondWithStatus(c, status, gin.H{"id": result.Subscription.ID})
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid unsubscribe payload", err))
		return
	}

	if err := h.service.Unregister(c.Request.Context(), userID, req.Endpoint); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

// RegisterPublicRoutes mounts the routes that need no token.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/push/vapid-key", h.GetVAPIDKey)
}

// RegisterRoutes mounts the authenticated subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/push/subscribe", h.Subscribe)
	r.DELETE("/push/unsubscribe", h.Unsubscribe)
}
