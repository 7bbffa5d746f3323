package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"autoinc/internal/core/apperror"
	appctx "autoinc/internal/core/context"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Caller, error)
}

// Auth requires a valid bearer token and puts the caller into the context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		caller, err := validator.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setCaller(c, caller)
		c.Next()
	}
}

// OptionalAuth validates a token if present but doesn't require it.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if caller, err := validator.ValidateToken(token); err == nil && caller != nil {
				setCaller(c, caller)
			}
		}
		c.Next()
	}
}

// RequireRole passes callers holding any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetCaller(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		for _, role := range roles {
			if appctx.HasRole(ctx, role) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setCaller(c *gin.Context, caller *appctx.Caller) {
	c.Request = c.Request.WithContext(appctx.WithCaller(c.Request.Context(), caller))
	c.Set(KeySubject, caller.Subject)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
