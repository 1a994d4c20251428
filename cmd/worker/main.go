package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/timetable/pkg/app"
	"github.com/ghuser/timetable/pkg/cache"
	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/events"
	"github.com/ghuser/timetable/pkg/logger"
	"github.com/ghuser/timetable/pkg/queue"
	"github.com/ghuser/timetable/pkg/settings"
	"github.com/ghuser/timetable/pkg/telemetry"
	eventEvents "github.com/ghuser/timetable/services/event/domain/events"
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

	ctx := context.Background()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	factory := database.NewFactory(func(ctx context.Context) (*database.Database, error) {
		return database.NewPool(ctx, cfg.DatabaseURL, log)
	})
	if err := factory.Initialize(ctx); err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer factory.Close() //nolint:errcheck
	log.Info("database pool connected")

	eventBus, err := events.NewEventBus(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	tasks := queue.NewProcessor(cfg.QueueSize, log)
	tasks.SetObserver(metrics.TaskFinished)
	if err := tasks.Start(ctx); err != nil {
		log.Error("failed to start queue processor", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	appConfig := &app.Application{
		Config:   cfg,
		Db:       factory,
		Logger:   log,
		EventBus: eventBus,
		Redis:    redisClient,
		Queue:    tasks,
		Metrics:  metrics,
	}

	settingsStore := settings.NewStore(factory)
	loggingTarget := settings.Logging{Root: log}
	if err := settings.ApplyLogging(ctx, settingsStore, loggingTarget); err != nil {
		log.Warn("persisted logging settings not applied", "error", err)
	}
	listener := settings.NewListener(eventBus, settingsStore, loggingTarget, log)
	if err := listener.Start(ctx); err != nil {
		log.Error("failed to start config listener", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	subCtx, cancelSubs := context.WithCancel(ctx)
	if err := registerSubscribers(subCtx, appConfig); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancelSubs()
	listener.Stop()
	tasks.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tasks.Wait(waitCtx); err != nil {
		log.Warn("queued task still running at shutdown", "error", err)
	}

	// EventBus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("worker stopped")
}

// registerSubscribers wires all domain event handlers.
// Add new topics here as more services publish events.
func registerSubscribers(ctx context.Context, a *app.Application) error {
	errCh, err := a.EventBus.Subscribe(ctx, eventEvents.TopicEventExpired, handleEventExpired(a))
	if err != nil {
		return err
	}

	// Drain subscriber errors in background so the channel never blocks.
	go func() {
		for err := range errCh {
			a.Logger.ErrorContext(ctx, "subscriber error",
				"topic", eventEvents.TopicEventExpired,
				"error", err,
			)
		}
	}()

	a.Logger.Info("event subscribers registered", "topics", []string{eventEvents.TopicEventExpired})
	return nil
}

// handleEventExpired returns a handler for event.expired messages.
// Handlers must be idempotent: EventBus retries up to 3x on failure.
// The notice is handed to the local queue so a slow follow-up never holds
// the subscription.
func handleEventExpired(a *app.Application) func(context.Context, *message.Message) error {
	return func(ctx context.Context, msg *message.Message) error {
		var evt eventEvents.EventExpiredEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			// Malformed payloads are not retried.
			a.Logger.WarnContext(ctx, "dropping malformed event.expired", "message_id", msg.UUID, "error", err)
			return nil
		}

		_, err := a.Queue.Enqueue("event-expired", func(ctx context.Context) error {
			a.Logger.InfoContext(ctx, "event approval expired",
				"event_id", evt.RoomEventID,
				"name", evt.Name,
				"expired_at", evt.ExpirationDate,
			)
			return nil
		})
		return err
	}
}
