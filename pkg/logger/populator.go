package logger

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Tag prefixes pushed by the Populator, in push order.
const (
	TagUser    = "uid:"
	TagRole    = "role:"
	TagSession = "sid:"
	TagHost    = "host:"
)

// Identity is the authenticated principal of a request as seen by logging.
type Identity struct {
	// UserID is the external user id of the principal.
	UserID string
	// Role is the selected authority; empty when none is selected.
	Role string
	// SessionID is the selected academic session; zero when none is selected.
	SessionID int64
}

// IdentityResolver extracts the principal of r. ok is false for anonymous requests.
type IdentityResolver func(r *http.Request) (id *Identity, ok bool)

// Populator stamps identity and host tags onto the logging context of a request.
// The hostname is resolved once at construction.
type Populator struct {
	host string
}

// NewPopulator resolves the local hostname and returns a Populator. When the
// hostname cannot be resolved the host tag stays absent for the process lifetime.
func NewPopulator() *Populator {
	return newPopulator(os.Hostname)
}

func newPopulator(hostname func() (string, error)) *Populator {
	p := &Populator{}
	if h, err := hostname(); err == nil {
		p.host = shortHost(h)
	}
	return p
}

// Host returns the first label of the local hostname, or "" if unresolved.
func (p *Populator) Host() string {
	return p.host
}

// OnRequestStart returns a context carrying a new tag stack populated from id.
// id may be nil for anonymous requests. Tag resolution never fails the request.
func (p *Populator) OnRequestStart(ctx context.Context, id *Identity) (context.Context, *Tags) {
	ctx, tags := WithTags(ctx)
	if id != nil && id.UserID != "" {
		tags.Push(TagUser + id.UserID)
		if id.Role != "" {
			tags.Push(TagRole + id.Role)
		}
		if id.SessionID != 0 {
			tags.Push(TagSession + strconv.FormatInt(id.SessionID, 10))
		}
	}
	if p.host != "" {
		tags.Push(TagHost + p.host)
	}
	return ctx, tags
}

// OnRequestEnd clears every tag pushed for the request.
func (p *Populator) OnRequestEnd(tags *Tags) {
	tags.Clear()
}

// ContextMiddleware returns a chi-compatible middleware that populates the
// request tags before calling next and clears them on every exit path,
// panics included.
func ContextMiddleware(p *Populator, resolve IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, tags := p.OnRequestStart(r.Context(), safeResolve(resolve, r))
			defer p.OnRequestEnd(tags)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func safeResolve(resolve IdentityResolver, r *http.Request) (id *Identity) {
	if resolve == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			id = nil
		}
	}()
	if got, ok := resolve(r); ok {
		return got
	}
	return nil
}

// shortHost keeps only the first label of a dotted hostname.
func shortHost(h string) string {
	h = strings.TrimSpace(h)
	if first, _, ok := strings.Cut(h, "."); ok {
		return first
	}
	return h
}
