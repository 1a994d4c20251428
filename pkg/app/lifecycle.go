package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/lifecycle"
	"github.com/ghuser/timetable/pkg/logger"
)

// MessageLogAppender is the name the diagnostic appender is registered under.
const MessageLogAppender = "message-log"

// Persistence is the session factory opened first and closed last.
type Persistence interface {
	Initialize(ctx context.Context) error
	Close() error
}

// scoped is implemented by *database.Factory. Startup steps then share one
// connection that is released when startup returns.
type scoped interface {
	NewScope() *database.Scope
}

// AppenderHost is the root logger's appender registry.
type AppenderHost interface {
	AddAppender(name string, h slog.Handler) error
	RemoveAppender(name string) (slog.Handler, bool)
}

// Appender is a named log handler that owns background resources.
type Appender interface {
	slog.Handler
	Close(ctx context.Context) error
}

// Service is a subsystem with a start and a stop.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

// Interruptible is a background task that is signalled to stop without a join.
type Interruptible interface {
	Start(ctx context.Context) error
	Interrupt()
}

// Stopper is a subsystem started by its owner and stopped by the coordinator.
type Stopper interface {
	Stop()
}

// Subsystems lists everything the coordinator starts and stops. Nil optional
// members turn their steps into skipped ones.
type Subsystems struct {
	Persistence Persistence
	// ApplyLogging reads persisted settings and applies the logging levels.
	ApplyLogging func(ctx context.Context) error
	Appenders    AppenderHost
	MessageLog   Appender
	// RoomAvailability is nil when no endpoint is configured.
	RoomAvailability Service
	// RefreshPreferences reloads the sectioning preference cache.
	RefreshPreferences func(ctx context.Context) (int, error)
	LogDir             string
	LogRetention       time.Duration
	Expiration         Interruptible
	InfoCache          Stopper
	ConfigListener     Stopper
	Queue              Stopper

	Report lifecycle.Reporter
	Logger logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewCoordinator builds the process startup and shutdown sequences.
func NewCoordinator(s Subsystems) *lifecycle.Coordinator {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	log := s.Logger

	startup := []lifecycle.Step{
		{Name: "database", Run: s.Persistence.Initialize},
		{Name: "logging", Run: s.ApplyLogging},
		{Name: MessageLogAppender, Run: optional(s.MessageLog != nil && s.Appenders != nil, func(context.Context) error {
			return s.Appenders.AddAppender(MessageLogAppender, s.MessageLog)
		})},
		{Name: "room-availability", Run: optional(s.RoomAvailability != nil, func(ctx context.Context) error {
			return s.RoomAvailability.Start(ctx)
		})},
		{Name: "sectioning-preferences", Run: optional(s.RefreshPreferences != nil, func(ctx context.Context) error {
			n, err := s.RefreshPreferences(ctx)
			if err != nil {
				return err
			}
			log.Info("sectioning preferences cached", "students", n)
			return nil
		})},
		{Name: "log-purge", Run: optional(s.LogDir != "", func(context.Context) error {
			n, err := logger.PurgeExpiredFiles(s.LogDir, s.LogRetention, now())
			if n > 0 {
				log.Info("expired log files removed", "dir", s.LogDir, "removed", n)
			}
			return err
		})},
		{Name: "event-expiration", Run: optional(s.Expiration != nil, func(ctx context.Context) error {
			return s.Expiration.Start(ctx)
		})},
	}

	shutdown := []lifecycle.Step{
		{Name: "event-expiration", Run: optional(s.Expiration != nil, func(context.Context) error {
			s.Expiration.Interrupt()
			return nil
		})},
		{Name: "info-cache", Run: stopStep(s.InfoCache)},
		{Name: "config-listener", Run: stopStep(s.ConfigListener)},
		{Name: "room-availability", Run: optional(s.RoomAvailability != nil, func(context.Context) error {
			return s.RoomAvailability.Stop()
		})},
		{Name: "queue", Run: stopStep(s.Queue)},
		{Name: MessageLogAppender, Run: optional(s.MessageLog != nil && s.Appenders != nil, func(ctx context.Context) error {
			s.Appenders.RemoveAppender(MessageLogAppender)
			if err := s.MessageLog.Close(ctx); err != nil {
				return fmt.Errorf("close appender: %w", err)
			}
			return nil
		})},
		{Name: "database", Run: func(context.Context) error { return s.Persistence.Close() }},
	}

	opts := lifecycle.Options{
		Startup:  startup,
		Shutdown: shutdown,
		Report:   s.Report,
		Logger:   log,
	}
	if sp, ok := s.Persistence.(scoped); ok {
		opts.BeginStartup = func(ctx context.Context) (context.Context, func()) {
			scope := sp.NewScope()
			return database.WithScope(ctx, scope), func() {
				if err := scope.CloseCurrentSessions(); err != nil {
					log.Warn("release startup connection", "error", err)
				}
			}
		}
	}
	return lifecycle.New(opts)
}

func optional(enabled bool, run func(ctx context.Context) error) func(ctx context.Context) error {
	if !enabled {
		return nil
	}
	return run
}

func stopStep(s Stopper) func(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return func(context.Context) error {
		s.Stop()
		return nil
	}
}
