package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/timetable/pkg/logger"
)

// Handler processes one delivered message.
type Handler func(context.Context, *message.Message) error

const errBuffer = 100

// retryPolicy retries a failing handler with a doubling delay.
type retryPolicy struct {
	attempts int
	base     time.Duration
}

var defaultRetry = retryPolicy{attempts: 3, base: time.Second}

// Subscribe consumes topic until ctx ends. The handler context carries the
// publisher's trace and the delivery tags.
//
// A nil handler result Acks the message. An error is retried with a delay of
// 1s, 2s, ...; once attempts are exhausted the message is Nacked and the
// error is sent on the returned channel. The channel is buffered, closed when
// the subscription ends, and must be drained:
//
//	errCh, err := bus.Subscribe(ctx, topic, handle)
//	go func() { for err := range errCh { log.ErrorContext(ctx, "handler failed", "error", err) } }()
func (b *EventBus) Subscribe(ctx context.Context, topic string, handler func(context.Context, *message.Message) error) (<-chan error, error) {
	return b.consume(ctx, b.subscriber, topic, handler)
}

// SubscribeBroadcast is Subscribe on this process's private consumer group:
// every process running a broadcast subscription receives every message.
func (b *EventBus) SubscribeBroadcast(ctx context.Context, topic string, handler func(context.Context, *message.Message) error) (<-chan error, error) {
	sub, err := b.broadcastSubscriber()
	if err != nil {
		return nil, err
	}
	return b.consume(ctx, sub, topic, handler)
}

func (b *EventBus) broadcastSubscriber() (message.Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broadcaster == nil {
		sub, err := b.newSubscriber(b.broadcastGroup)
		if err != nil {
			return nil, err
		}
		b.broadcaster = sub
	}
	return b.broadcaster, nil
}

func (b *EventBus) consume(ctx context.Context, sub message.Subscriber, topic string, handler Handler) (<-chan error, error) {
	deliveries, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe to %s: %w", topic, err)
	}

	errCh := make(chan error, errBuffer)
	propagator := otel.GetTextMapPropagator()

	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		defer close(errCh)
		for msg := range deliveries {
			msgCtx := deliveryContext(ctx, propagator, topic, msg)
			err := b.retry.run(msgCtx, msg, handler, b.log)
			if err == nil {
				msg.Ack()
				continue
			}
			msg.Nack()
			select {
			case errCh <- err:
			default:
				b.log.ErrorContext(msgCtx, "handler error dropped, channel full", "error", err)
			}
		}
	}()
	return errCh, nil
}

// deliveryContext restores the publisher's trace from msg metadata and pushes
// the delivery's request tags.
func deliveryContext(ctx context.Context, propagator propagation.TextMapPropagator, topic string, msg *message.Message) context.Context {
	msgCtx, tags := logger.WithTags(propagator.Extract(ctx, propagation.MapCarrier(msg.Metadata)))
	tags.Push("topic:" + topic)
	tags.Push("msg:" + msg.UUID)
	return msgCtx
}

// run calls handler until it succeeds, attempts are exhausted or ctx ends.
func (p retryPolicy) run(ctx context.Context, msg *message.Message, handler Handler, log logger.Logger) error {
	delay := p.base
	var err error
	for attempt := 1; ; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt >= p.attempts {
			return fmt.Errorf("events: handler failed after %d attempts: %w", p.attempts, err)
		}
		log.WarnContext(ctx, "event handler failed, retrying",
			"attempt", attempt,
			"next_delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
