package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfield/notify-api/pkg/logger"
)

// Logger emits one structured line per request.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		event := log.Zerolog().Info()
		if c.Writer.Status() >= 500 {
			event = log.Zerolog().Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Zerolog().Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString("requestID"))

		if len(c.Errors) > 0 {
			event.Str("errors", c.Errors.String())
		}
		event.Msg("request")
	}
}
