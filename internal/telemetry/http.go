package telemetry

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per HTTP request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Err)
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "http: request", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "http: request", attrs...)
		default:
			slog.InfoContext(ctx, "http: request", attrs...)
		}
	}
}
