package auth

import (
	"context"
	"errors"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const (
	principalKey contextKey = "principal"
	resolvedKey  contextKey = "session-resolved"
)

// ErrUnauthenticated is returned when no Principal exists in the request context.
// Handlers should return 401 when this error occurs.
var ErrUnauthenticated = errors.New("no authenticated principal in context")

// Principal is the authenticated user of a request.
type Principal struct {
	// UserID is the external user id.
	UserID string
	// Role is the currently selected role; empty when none is selected.
	Role string
	// SessionID is the selected academic session; zero when none is selected.
	SessionID int64
}

// HasRole reports whether the principal's selected role is one of roles.
func (p *Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// PrincipalFromCtx extracts the authenticated principal from the request context.
func PrincipalFromCtx(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil || p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// WithPrincipal returns a new context with p attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// markResolved records that the session of the request has been read, so
// later middleware does not read it again when no principal was found.
func markResolved(ctx context.Context) context.Context {
	return context.WithValue(ctx, resolvedKey, true)
}

func resolved(ctx context.Context) bool {
	v, _ := ctx.Value(resolvedKey).(bool)
	return v
}
