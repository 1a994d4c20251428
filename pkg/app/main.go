package app

import (
	"github.com/gorilla/sessions"

	"github.com/ghuser/timetable/pkg/cache"
	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/events"
	"github.com/ghuser/timetable/pkg/logger"
	"github.com/ghuser/timetable/pkg/queue"
	"github.com/ghuser/timetable/pkg/telemetry"
	"github.com/ghuser/timetable/services/course/domain/models"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to every service's route function during server initialization.
//
// Logging: app.Logger is backed by a trace-aware handler. Use slog's context
// methods and trace_id, span_id, request_id and the request tags are injected
// automatically:
//
//	app.Logger.InfoContext(ctx, "label computed", "class_id", id)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Config   *config.Config
	Db       *database.Factory
	Logger   *logger.Root
	EventBus *events.EventBus
	Redis    *cache.RedisClient
	// SessionStore is the Redis-backed session store; nil in the worker process.
	SessionStore sessions.Store
	Queue        *queue.Processor
	Preferences  *cache.PreferenceCache
	LabelCache   *cache.InfoCache[*models.ClassLabels]
	Metrics      *telemetry.Metrics
}
