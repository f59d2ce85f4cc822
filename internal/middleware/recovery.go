package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/pkg/httputil"
	"github.com/openfield/notify-api/pkg/logger"
)

// Recovery converts panics into opaque 500 responses.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Zerolog().Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString("requestID")).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Response{
					Success: false,
					Error:   &httputil.Error{Code: http.StatusInternalServerError, Message: "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
