package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ghuser/timetable/pkg/app"
	"github.com/ghuser/timetable/pkg/auth"
	"github.com/ghuser/timetable/pkg/cache"
	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/errhttp"
	"github.com/ghuser/timetable/pkg/events"
	"github.com/ghuser/timetable/pkg/httpx"
	"github.com/ghuser/timetable/pkg/logger"
	"github.com/ghuser/timetable/pkg/queue"
	"github.com/ghuser/timetable/pkg/roomavail"
	"github.com/ghuser/timetable/pkg/settings"
	"github.com/ghuser/timetable/pkg/telemetry"
	courseApi "github.com/ghuser/timetable/services/course/application/api"
	"github.com/ghuser/timetable/services/course/domain/models"
	eventsvcs "github.com/ghuser/timetable/services/event/application/services"
	eventpg "github.com/ghuser/timetable/services/event/infrastructure/persistence/postgres"
	sectioningApi "github.com/ghuser/timetable/services/sectioning/application/api"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	errhttp.HideInternalErrors(cfg.Environment == config.EnvProduction)

	// Telemetry: OTel tracing + metrics
	ctx := context.Background()
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	// Crash reporting: Sentry (optional, log and continue on failure)
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1) //nolint:gocritic // intentional: startup failure, deferred flushes are best-effort
	}

	// The pool is opened by the coordinator's first startup step.
	factory := database.NewFactory(func(ctx context.Context) (*database.Database, error) {
		return database.NewPool(ctx, cfg.DatabaseURL, log)
	})

	eventBus, err := events.NewEventBusWithForwarder(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	if err := eventBus.StartForwarder(ctx); err != nil {
		log.Error("failed to start event forwarder", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic // intentional: startup failure
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	sessionStore := auth.NewSessionStore(
		redisClient.Client(),
		[]byte(cfg.SessionAuthKey),
		[]byte(cfg.SessionEncryptionKey),
		cfg.Environment == config.EnvProduction,
		cfg.SessionTTL,
	)
	log.Info("session store initialized", "backend", "redis")

	tasks := queue.NewProcessor(cfg.QueueSize, log)
	tasks.SetObserver(metrics.TaskFinished)
	if err := tasks.Start(ctx); err != nil {
		log.Error("failed to start queue processor", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	labelCache := cache.NewInfoCache[*models.ClassLabels](cfg.InfoCacheTTL)
	labelCache.StartCleanup(cfg.InfoCacheCleanup)

	messageLogLevel := new(slog.LevelVar)
	messageLogLevel.Set(logger.ParseLevel(cfg.MessageLogLevel))
	messageLog := logger.NewMessageLogAppender(database.NewMessageLogStore(factory), messageLogLevel, cfg.MessageLogBuffer)

	settingsStore := settings.NewStore(factory)
	loggingTarget := settings.Logging{Root: log, MessageLog: messageLogLevel}
	listener := settings.NewListener(eventBus, settingsStore, loggingTarget, log)
	if err := listener.Start(ctx); err != nil {
		log.Warn("config listener not started, settings changes need a restart", "error", err)
	}

	prefs := cache.NewPreferenceCache(redisClient, cache.NewSQLPreferenceLoader(factory))

	expiration := eventsvcs.NewExpirationService(
		eventpg.NewEventRepository(factory, eventBus),
		cfg.EventExpirationInterval,
		log,
	)
	expiration.SetObserver(metrics.EventsExpired)

	subsystems := app.Subsystems{
		Persistence: factory,
		ApplyLogging: func(ctx context.Context) error {
			return settings.ApplyLogging(ctx, settingsStore, loggingTarget)
		},
		Appenders:          log,
		MessageLog:         messageLog,
		RefreshPreferences: prefs.Refresh,
		LogDir:             cfg.LogDir,
		LogRetention:       cfg.LogRetention(),
		Expiration:         expiration,
		InfoCache:          labelCache,
		ConfigListener:     listener,
		Queue:              tasks,
		Report:             telemetry.StartupReporter(metrics),
		Logger:             log,
	}
	if rooms := newRoomAvailability(cfg, redisClient, log); rooms != nil {
		subsystems.RoomAvailability = rooms
	}
	coordinator := app.NewCoordinator(subsystems)
	_ = coordinator.Startup(ctx) // failures are kept as the outcome and surface on /health

	appConfig := &app.Application{
		Config:       cfg,
		Db:           factory,
		Logger:       log,
		EventBus:     eventBus,
		Redis:        redisClient,
		SessionStore: sessionStore,
		Queue:        tasks,
		Preferences:  prefs,
		LabelCache:   labelCache,
		Metrics:      metrics,
	}

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		},
		httpx.Middlewares{
			Logger:   logger.Middleware(log),
			Recovery: logger.Recovery(log),
			Sentry:   telemetry.SentryMiddleware(),
			Otel:     otelhttp.NewMiddleware(cfg.ServiceName),
			Context:  requestContext(sessionStore),
		},
	)

	r.Get("/health", httpx.HealthHandler(httpx.HealthChecks{
		Database:   factory,
		Redis:      redisClient,
		EventBus:   eventBus,
		Startup:    coordinator,
		ShowErrors: cfg.Environment != config.EnvProduction,
	}))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, appConfig)
	})

	srv := httpx.NewServer(cfg.HTTPAddr, r)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "startup", coordinator.State().String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		log.Error("subsystem shutdown failed", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	log.Info("server stopped")
}

// registerRoutes mounts all service routes under /api.
// Add each new service's route function here.
func registerRoutes(r chi.Router, a *app.Application) {
	courseApi.CourseRoutes(r, a)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(a.SessionStore, a.Logger), auth.RequireRole(a.Config.AdminRole))
		sectioningApi.SectioningRoutes(r, a)
		r.Put("/admin/settings/{name}",
			settings.NewPutSettingHandler(settings.NewStore(a.Db), a.EventBus, a.Logger).Execute)
	})
}

// newRoomAvailability returns nil when no endpoint is configured or the
// configured one is unusable.
func newRoomAvailability(cfg *config.Config, r *cache.RedisClient, log logger.Logger) *roomavail.Service {
	if cfg.RoomAvailabilityURL == "" {
		return nil
	}
	svc, err := roomavail.NewService(
		cfg.RoomAvailabilityURL,
		cfg.RoomAvailabilityInterval,
		roomavail.NewRedisStore(r.Client(), 3*cfg.RoomAvailabilityInterval),
		log,
	)
	if err != nil {
		log.Warn("room availability disabled", "error", err)
		return nil
	}
	return svc
}

// requestContext reads the session once, then pushes the logging tags for
// the resolved identity.
func requestContext(store sessions.Store) func(http.Handler) http.Handler {
	authenticate := auth.Authenticate(store)
	tags := logger.ContextMiddleware(logger.NewPopulator(), auth.IdentityResolver(store))
	return func(next http.Handler) http.Handler {
		return authenticate(tags(next))
	}
}
