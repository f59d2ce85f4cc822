package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/pkg/errors"
	"github.com/openfield/notify-api/pkg/httputil"
)

// ErrorHandler responds for handlers that attached an error without
// writing a body themselves. Handlers normally respond directly through
// httputil; this is the safety net for anything that slipped through.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := err.(*errors.AppError); ok {
			httputil.RespondWithError(c, appErr)
			return
		}
		httputil.RespondWithError(c, errors.Internal(err))
	}
}
