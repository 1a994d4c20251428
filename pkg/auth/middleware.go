package auth

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/ghuser/timetable/pkg/httpx"
	"github.com/ghuser/timetable/pkg/logger"
)

const (
	sessionName = "timetable_session"

	sessionUserKey     = "uid"
	sessionRoleKey     = "role"
	sessionAcademicKey = "sid"
)

// LoadPrincipal reads the principal stored in the request's session cookie.
// It reports false for a missing or invalid session and for a session that
// carries no user id.
func LoadPrincipal(store sessions.Store, r *http.Request) (*Principal, bool) {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return nil, false
	}
	uid, _ := session.Values[sessionUserKey].(string)
	if uid == "" {
		return nil, false
	}
	p := &Principal{UserID: uid}
	p.Role, _ = session.Values[sessionRoleKey].(string)
	p.SessionID, _ = session.Values[sessionAcademicKey].(int64)
	return p, true
}

// SavePrincipal stores p in the request's session and writes the cookie.
func SavePrincipal(store sessions.Store, w http.ResponseWriter, r *http.Request, p *Principal) error {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Values[sessionUserKey] = p.UserID
	if p.Role != "" {
		session.Values[sessionRoleKey] = p.Role
	} else {
		delete(session.Values, sessionRoleKey)
	}
	if p.SessionID != 0 {
		session.Values[sessionAcademicKey] = p.SessionID
	} else {
		delete(session.Values, sessionAcademicKey)
	}
	return session.Save(r, w)
}

// Authenticate reads the session once and places the principal, if any, on
// the request context. IdentityResolver and RequireAuth running after it reuse
// that result instead of reading the session store again.
func Authenticate(store sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := markResolved(r.Context())
			if p, ok := LoadPrincipal(store, r); ok {
				ctx = WithPrincipal(ctx, p)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalOf returns the principal of r, reading the session only when
// Authenticate has not already done so.
func principalOf(store sessions.Store, r *http.Request) (*Principal, bool) {
	if p, err := PrincipalFromCtx(r.Context()); err == nil {
		return p, true
	}
	if resolved(r.Context()) {
		return nil, false
	}
	return LoadPrincipal(store, r)
}

// IdentityResolver adapts the session store to the logging context populator.
// A principal already placed on the context wins over the session cookie.
func IdentityResolver(store sessions.Store) logger.IdentityResolver {
	return func(r *http.Request) (*logger.Identity, bool) {
		p, ok := principalOf(store, r)
		if !ok {
			return nil, false
		}
		return &logger.Identity{UserID: p.UserID, Role: p.Role, SessionID: p.SessionID}, true
	}
}

// RequireAuth rejects requests without an authenticated session with 401 and
// otherwise puts the principal on the context, so handlers can call
// PrincipalFromCtx.
func RequireAuth(store sessions.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalOf(store, r)
			if !ok {
				log.WarnContext(r.Context(), "request without authenticated session", "path", r.URL.Path)
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects requests whose principal has none of roles with 403.
// It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := PrincipalFromCtx(r.Context())
			if err != nil {
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.HasRole(roles...) {
				httpx.JSONError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
