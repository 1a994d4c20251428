package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Metadata keys stamped on every JSON event.
const (
	MetaEventID      = "event_id"
	MetaEventVersion = "event_version"
)

// Publish sends msgs to topic with the trace context of ctx injected into
// each message's metadata.
func (b *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	injectTrace(ctx, msgs)
	if err := b.publisher.Publish(topic, msgs...); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	return nil
}

// PublishJSON publishes v as a single version 1 JSON event on topic.
func (b *EventBus) PublishJSON(ctx context.Context, topic string, v any) error {
	msg, err := NewJSONMessage(v, 1)
	if err != nil {
		return err
	}
	return b.Publish(ctx, topic, msg)
}

// NewJSONMessage marshals v into a message carrying event_id and
// event_version metadata.
func NewJSONMessage(v any, version int) (*message.Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %T: %w", v, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaEventID, uuid.NewString())
	msg.Metadata.Set(MetaEventVersion, strconv.Itoa(version))
	return msg, nil
}

func injectTrace(ctx context.Context, msgs []*message.Message) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return
	}
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
}
