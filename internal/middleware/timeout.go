package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/pkg/httputil"
)

// Timeout bounds the request context. Handlers observe the deadline
// through c.Request.Context(); the database and push clients all take it.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, httputil.Response{
				Success: false,
				Error:   &httputil.Error{Code: http.StatusGatewayTimeout, Message: "request timeout"},
			})
		}
	}
}
