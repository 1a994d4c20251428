package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MessageLogAppenderName is the name the message-log appender registers under.
const MessageLogAppenderName = "message-log"

const (
	messageLogBatchSize     = 100
	messageLogFlushInterval = time.Second
)

// MessageLogEntry is one persisted log record.
type MessageLogEntry struct {
	Time      time.Time
	Level     string
	Logger    string
	Message   string
	Tags      []string
	Exception string
}

// MessageLogSink persists batches of entries (the message_log table in production).
type MessageLogSink interface {
	InsertMessageLog(ctx context.Context, entries []MessageLogEntry) error
}

// MessageLogAppender is a slog.Handler that persists records at or above its
// level asynchronously. Records are dropped, not blocked on, when the buffer is full.
type MessageLogAppender struct {
	core  *appenderCore
	attrs []slog.Attr
}

type appenderCore struct {
	sink    MessageLogSink
	level   slog.Leveler
	ch      chan MessageLogEntry
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewMessageLogAppender starts the background writer and returns the appender.
// Call Close after deregistering it from the root logger.
func NewMessageLogAppender(sink MessageLogSink, level slog.Leveler, buffer int) *MessageLogAppender {
	if buffer <= 0 {
		buffer = messageLogBatchSize
	}
	core := &appenderCore{
		sink:  sink,
		level: level,
		ch:    make(chan MessageLogEntry, buffer),
		done:  make(chan struct{}),
	}
	go core.run()
	return &MessageLogAppender{core: core}
}

func (a *MessageLogAppender) Enabled(_ context.Context, level slog.Level) bool {
	return level >= a.core.level.Level()
}

func (a *MessageLogAppender) Handle(ctx context.Context, r slog.Record) error {
	entry := MessageLogEntry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Tags:    TagsFromCtx(ctx).Values(),
	}
	visit := func(attr slog.Attr) bool {
		switch attr.Key {
		case "logger", "component":
			entry.Logger = attr.Value.String()
		case "error":
			entry.Exception = attr.Value.String()
		}
		return true
	}
	for _, attr := range a.attrs {
		visit(attr)
	}
	r.Attrs(visit)
	a.core.enqueue(entry)
	return nil
}

func (a *MessageLogAppender) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(a.attrs)+len(attrs))
	merged = append(merged, a.attrs...)
	merged = append(merged, attrs...)
	return &MessageLogAppender{core: a.core, attrs: merged}
}

// WithGroup is a no-op; the message log stores a flat set of columns.
func (a *MessageLogAppender) WithGroup(string) slog.Handler {
	return a
}

// Dropped reports how many entries were discarded because the buffer was full
// or the appender was closed.
func (a *MessageLogAppender) Dropped() int64 {
	return a.core.dropped.Load()
}

// Failed reports how many entries the sink rejected.
func (a *MessageLogAppender) Failed() int64 {
	return a.core.failed.Load()
}

// Close stops accepting records and waits for buffered entries to be written
// or for ctx to expire. Close is idempotent.
func (a *MessageLogAppender) Close(ctx context.Context) error {
	c := a.core
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("message log: flush: %w", ctx.Err())
	}
}

func (c *appenderCore) enqueue(e MessageLogEntry) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

func (c *appenderCore) run() {
	defer close(c.done)
	ticker := time.NewTicker(messageLogFlushInterval)
	defer ticker.Stop()

	batch := make([]MessageLogEntry, 0, messageLogBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.sink.InsertMessageLog(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
			c.failed.Add(int64(len(batch)))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-c.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= messageLogBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
