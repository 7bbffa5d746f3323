package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"autoinc/pkg/logger"
)

// Logger logs every request with timing and status. The request context
// carries a logger enriched with trace ids for downstream layers.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLog := log.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if subject := c.GetString(KeySubject); subject != "" {
			fields = append(fields, "subject", subject)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		if status >= 500 {
			reqLog.Warnw("http request", fields...)
			return
		}
		reqLog.Infow("http request", fields...)
	}
}
