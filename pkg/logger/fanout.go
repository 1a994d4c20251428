package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrAppenderExists is returned by AddAppender when the name is already taken.
var ErrAppenderExists = errors.New("logger: appender already registered")

type namedHandler struct {
	name    string
	handler slog.Handler
}

// registry is the shared, mutable set of appenders. Loggers derived with
// With/WithGroup keep pointing at the same registry, so appenders added later
// still receive their records.
type registry struct {
	mu        sync.RWMutex
	appenders []namedHandler
}

func (r *registry) add(name string, h slog.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appenders {
		if a.name == name {
			return fmt.Errorf("%w: %s", ErrAppenderExists, name)
		}
	}
	r.appenders = append(slices.Clone(r.appenders), namedHandler{name: name, handler: h})
	return nil
}

func (r *registry) remove(name string) (slog.Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.appenders {
		if a.name == name {
			r.appenders = slices.Delete(slices.Clone(r.appenders), i, i+1)
			return a.handler, true
		}
	}
	return nil, false
}

func (r *registry) snapshot() []namedHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.appenders
}

func (r *registry) names() []string {
	apps := r.snapshot()
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.name
	}
	return out
}

// handlerOp replays a WithAttrs/WithGroup call onto an appender.
type handlerOp func(slog.Handler) slog.Handler

// fanoutHandler writes every record to the primary handler and to each
// registered appender that accepts the record's level.
type fanoutHandler struct {
	primary slog.Handler
	reg     *registry
	ops     []handlerOp
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary.Enabled(ctx, level) {
		return true
	}
	for _, a := range h.reg.snapshot() {
		if a.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, a := range h.reg.snapshot() {
		ah := a.handler
		for _, op := range h.ops {
			ah = op(ah)
		}
		if !ah.Enabled(ctx, r.Level) {
			continue
		}
		if err := ah.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("appender %s: %w", a.name, err))
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(h.primary.WithAttrs(attrs), func(a slog.Handler) slog.Handler {
		return a.WithAttrs(attrs)
	})
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.primary.WithGroup(name), func(a slog.Handler) slog.Handler {
		return a.WithGroup(name)
	})
}

func (h *fanoutHandler) derive(primary slog.Handler, op handlerOp) *fanoutHandler {
	return &fanoutHandler{
		primary: primary,
		reg:     h.reg,
		ops:     append(slices.Clone(h.ops), op),
	}
}
