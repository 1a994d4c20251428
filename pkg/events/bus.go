// Package events is the PostgreSQL-backed pub/sub bus built on Watermill's
// SQL transport.
//
// Subscribe joins the consumer group shared by every process with the same
// service name, so a message on event.expired is handled by a single
// instance. SubscribeBroadcast joins a group private to this process, so
// every process sees each config.changed message. Handlers must be
// idempotent: a failing handler is retried with exponential backoff and then
// Nacked for redelivery.
//
// Trace context travels in message metadata. Each delivery also carries
// request tags (topic:<name>, msg:<uuid>) so handler log records correlate
// the same way HTTP request records do.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ghuser/timetable/pkg/config"
	"github.com/ghuser/timetable/pkg/logger"
)

const (
	outboxTopic        = "_timetable_outbox"
	outboxGroup        = "timetable-outbox"
	handlerDrainWindow = 30 * time.Second
)

// EventBus publishes and consumes JSON events through PostgreSQL. Delivery
// uses FOR UPDATE SKIP LOCKED so competing consumers never see the same row.
type EventBus struct {
	db             *sql.DB
	log            logger.Logger
	wlog           *watermillLogger
	group          string
	broadcastGroup string
	outbox         bool
	retry          retryPolicy

	publisher  message.Publisher
	subscriber *watermillsql.Subscriber
	fwd        *forwarder.Forwarder

	mu          sync.Mutex
	broadcaster *watermillsql.Subscriber

	handlers sync.WaitGroup
}

// NewEventBus opens a pool on cfg.DatabaseURL and publishes directly to the
// target topics. Watermill creates its tables on first use.
func NewEventBus(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return open(cfg, log, false)
}

// NewEventBusWithForwarder returns a bus whose Publish writes to a durable
// outbox topic. A forwarder, started with StartForwarder, moves outbox rows to
// their target topics, so an event accepted by Publish survives a crash.
func NewEventBusWithForwarder(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return open(cfg, log, true)
}

func open(cfg *config.Config, log logger.Logger, outbox bool) (*EventBus, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}
	b := &EventBus{
		db:     db,
		log:    log.With("component", "event-bus"),
		group:          cfg.ServiceName + "-consumer",
		broadcastGroup: BroadcastGroup(cfg.ServiceName),
		outbox:         outbox,
		retry:          defaultRetry,
	}
	b.wlog = &watermillLogger{log: b.log}

	pub, err := watermillsql.NewPublisher(db, publisherConfig(true), b.wlog)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}
	sub, err := b.newSubscriber(b.group)
	if err != nil {
		_ = pub.Close()
		_ = db.Close()
		return nil, err
	}
	b.publisher = b.wrap(pub)
	b.subscriber = sub
	return b, nil
}

func publisherConfig(initSchema bool) watermillsql.PublisherConfig {
	return watermillsql.PublisherConfig{
		SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
		AutoInitializeSchema: initSchema,
	}
}

func (b *EventBus) newSubscriber(group string) (*watermillsql.Subscriber, error) {
	sub, err := watermillsql.NewSubscriber(b.db, watermillsql.SubscriberConfig{
		SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
		ConsumerGroup:    group,
	}, b.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new subscriber %s: %w", group, err)
	}
	return sub, nil
}

// BroadcastGroup returns a consumer group name unique to one process. A new
// group starts at the oldest retained message, so broadcast handlers must
// tolerate replays.
func BroadcastGroup(service string) string {
	return service + "-broadcast-" + uuid.NewString()
}

// wrap routes pub through the outbox when the bus runs in outbox mode.
func (b *EventBus) wrap(pub message.Publisher) message.Publisher {
	if !b.outbox {
		return pub
	}
	return forwarder.NewPublisher(pub, forwarder.PublisherConfig{ForwarderTopic: outboxTopic})
}

// StartForwarder runs the outbox forwarder until ctx ends and returns once it
// is accepting messages. It is valid once, on a bus built with
// NewEventBusWithForwarder.
func (b *EventBus) StartForwarder(ctx context.Context) error {
	switch {
	case !b.outbox:
		return errors.New("events: bus has no outbox to forward")
	case b.fwd != nil:
		return errors.New("events: forwarder already started")
	}

	sub, err := b.newSubscriber(outboxGroup)
	if err != nil {
		return err
	}
	target, err := watermillsql.NewPublisher(b.db, publisherConfig(true), b.wlog)
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("events: new forwarder publisher: %w", err)
	}
	fwd, err := forwarder.NewForwarder(sub, target, b.wlog, forwarder.Config{ForwarderTopic: outboxTopic})
	if err != nil {
		_ = target.Close()
		_ = sub.Close()
		return fmt.Errorf("events: new forwarder: %w", err)
	}
	b.fwd = fwd

	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		if err := fwd.Run(ctx); err != nil {
			b.log.ErrorContext(ctx, "outbox forwarder stopped", "error", err)
			return
		}
		b.log.InfoContext(ctx, "outbox forwarder stopped")
	}()

	select {
	case <-fwd.Running():
		b.log.InfoContext(ctx, "outbox forwarder running", "topic", outboxTopic)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: waiting for forwarder: %w", ctx.Err())
	}
}

// NewTxPublisher returns a publisher writing inside tx, so a state change and
// the event announcing it commit together. The schema already exists once the
// bus is open.
func (b *EventBus) NewTxPublisher(tx *sql.Tx) (message.Publisher, error) {
	pub, err := watermillsql.NewPublisher(tx, publisherConfig(false), b.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new tx publisher: %w", err)
	}
	return b.wrap(pub), nil
}

// Ping checks the bus's database connection.
func (b *EventBus) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping: %w", err)
	}
	return nil
}

// Close stops consuming, stops the forwarder, waits up to 30s for in-flight
// handlers and then releases the publisher and pool.
func (b *EventBus) Close() error {
	var errs []error
	if err := b.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: close subscriber: %w", err))
	}
	b.mu.Lock()
	if b.broadcaster != nil {
		if err := b.broadcaster.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close broadcast subscriber: %w", err))
		}
	}
	b.mu.Unlock()
	if b.fwd != nil {
		if err := b.fwd.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close forwarder: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		b.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(handlerDrainWindow):
		b.log.Error("in-flight event handlers did not finish", "waited", handlerDrainWindow)
	}

	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: close publisher: %w", err))
	}
	if err := b.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: close db: %w", err))
	}
	return errors.Join(errs...)
}
