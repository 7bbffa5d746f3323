// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"autoinc/internal/core/apperror"
	"autoinc/pkg/logger"
)

// Recovery turns a handler panic into an internal error response.
// The stack trace is logged and never sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", rec,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(
					apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
						WithDetail("request_id", c.GetString(KeyRequestID)),
				)
				c.Abort()
				writeError(c)
			}
		}()
		c.Next()
	}
}
