package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
)

// TopicConfigChanged is published whenever application_config rows change.
const TopicConfigChanged = "config.changed"

// ConfigChangedEvent names the settings that changed. An empty Names means
// "anything may have changed".
type ConfigChangedEvent struct {
	Names      []string  `json:"names"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subscriber is satisfied by *events.EventBus. The subscription must reach
// every process, since each one holds its own log levels.
type Subscriber interface {
	SubscribeBroadcast(ctx context.Context, topic string, handler func(context.Context, *message.Message) error) (<-chan error, error)
}

// Listener re-applies logging settings when a config.changed event arrives.
type Listener struct {
	sub    Subscriber
	src    Source
	target Logging
	log    logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewListener returns a stopped Listener.
func NewListener(sub Subscriber, src Source, target Logging, log logger.Logger) *Listener {
	return &Listener{sub: sub, src: src, target: target, log: log.With("component", "config-listener")}
}

// Start subscribes to config changes. The subscription lives until Stop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return fmt.Errorf("settings: listener already started")
	}

	subCtx, cancel := context.WithCancel(database.Detach(ctx))
	errCh, err := l.sub.SubscribeBroadcast(subCtx, TopicConfigChanged, l.handle)
	if err != nil {
		cancel()
		return fmt.Errorf("settings: subscribe: %w", err)
	}
	l.cancel = cancel

	go func() {
		for err := range errCh {
			l.log.ErrorContext(subCtx, "config change handler failed", "error", err)
		}
	}()
	l.log.Info("config listener started", "topic", TopicConfigChanged)
	return nil
}

// Stop cancels the subscription without waiting for an in-flight handler.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.log.Info("config listener stopped")
}

func (l *Listener) handle(ctx context.Context, msg *message.Message) error {
	var evt ConfigChangedEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		// Malformed payloads are not retried.
		l.log.WarnContext(ctx, "ignoring malformed config change", "error", err)
		return nil
	}
	if !touchesLogging(evt.Names) {
		return nil
	}
	if err := ApplyLogging(ctx, l.src, l.target); err != nil {
		return fmt.Errorf("reapply logging settings: %w", err)
	}
	l.log.InfoContext(ctx, "logging settings reloaded", "names", evt.Names)
	return nil
}

func touchesLogging(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if strings.HasPrefix(n, loggingPrefix) {
			return true
		}
	}
	return false
}
