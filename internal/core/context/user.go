// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// Caller contains the authenticated API caller.
type Caller struct {
	Subject string
	Roles   []string
}

type callerContextKey struct{}

// WithCaller adds Caller to context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// GetCaller returns Caller from context.
func GetCaller(ctx context.Context) *Caller {
	if v, ok := ctx.Value(callerContextKey{}).(*Caller); ok {
		return v
	}
	return nil
}

// GetSubject returns caller subject from context or empty string.
func GetSubject(ctx context.Context) string {
	if c := GetCaller(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// HasRole checks if caller has specific role.
func HasRole(ctx context.Context, role string) bool {
	c := GetCaller(ctx)
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}
