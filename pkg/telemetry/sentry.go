package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/lifecycle"
)

const sentryFlushTimeout = 2 * time.Second

// Request headers never sent to Sentry. The session cookie alone is enough to
// impersonate a user.
var scrubbedHeaders = []string{"Cookie", "Authorization", "X-Forwarded-For"}

// SetupSentry initializes the Sentry SDK. An empty DSN disables it.
func SetupSentry(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.ServiceName + "@" + cfg.ServiceVersion,
		AttachStacktrace: true,
		TracesSampleRate: 0.2,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	event.Request.Cookies = ""
	for _, h := range scrubbedHeaders {
		delete(event.Request.Headers, h)
	}
	return event
}

// SentryFlush waits up to 2s for buffered events before the process exits.
func SentryFlush() {
	sentry.Flush(sentryFlushTimeout)
}

// SentryMiddleware captures panics and re-panics so Recovery still writes
// the 500.
func SentryMiddleware() func(http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: sentryFlushTimeout,
	}).Handle
}

// CaptureStartupFailure reports a degraded startup tagged with the failing
// step. It is a no-op when Sentry is not initialized.
func CaptureStartupFailure(err error) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("lifecycle.phase", "startup")
		var le *lifecycle.Error
		if errors.As(err, &le) {
			scope.SetTag("lifecycle.step", le.Step)
		}
		scope.SetLevel(sentry.LevelFatal)
	})
	hub.CaptureException(err)
}
