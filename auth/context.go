package auth

import (
	"context"
)

type contextKey int

const sessionKey contextKey = iota

// WithSession returns a new context with the given session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext retrieves the session from the context.
// Returns nil if no session is present.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// UserIDFromContext retrieves the authenticated user id.
// Returns empty string if no session is present.
func UserIDFromContext(ctx context.Context) string {
	s := SessionFromContext(ctx)
	if s == nil {
		return ""
	}
	return s.UserID
}

// InRole reports whether the request's session holds role.
// It is false when the request is unauthenticated.
func InRole(ctx context.Context, role string) bool {
	return SessionFromContext(ctx).HasRole(role)
}
