package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
)

type capturePublisher struct{ topics []string }

func (c *capturePublisher) Publish(topic string, _ ...*message.Message) error {
	c.topics = append(c.topics, topic)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestStartForwarder_RequiresOutbox(t *testing.T) {
	b := &EventBus{}
	if err := b.StartForwarder(context.Background()); err == nil {
		t.Fatal("expected error on a bus without an outbox")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name      string
		outbox    bool
		wantTopic string
	}{
		{name: "direct", outbox: false, wantTopic: "config.changed"},
		{name: "outbox", outbox: true, wantTopic: outboxTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &capturePublisher{}
			b := &EventBus{outbox: tt.outbox}
			pub := b.wrap(inner)
			if tt.outbox {
				if _, ok := pub.(*forwarder.Publisher); !ok {
					t.Fatalf("wrap returned %T, want *forwarder.Publisher", pub)
				}
			}
			if err := pub.Publish("config.changed", message.NewMessage("m1", []byte(`{}`))); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(inner.topics) != 1 || inner.topics[0] != tt.wantTopic {
				t.Fatalf("published to %v, want %s", inner.topics, tt.wantTopic)
			}
		})
	}
}

func TestPublishJSON_DirectBus(t *testing.T) {
	inner := &capturePublisher{}
	b := &EventBus{publisher: inner}
	if err := b.PublishJSON(context.Background(), "config.changed", map[string]any{"names": []string{"log.level"}}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if len(inner.topics) != 1 || inner.topics[0] != "config.changed" {
		t.Fatalf("topics = %v", inner.topics)
	}
}

func TestNewJSONMessage(t *testing.T) {
	msg, err := NewJSONMessage(map[string]any{"names": []string{"log.level"}}, 2)
	if err != nil {
		t.Fatalf("NewJSONMessage: %v", err)
	}
	if msg.Metadata.Get(MetaEventVersion) != "2" || msg.Metadata.Get(MetaEventID) == "" {
		t.Fatalf("metadata = %v", msg.Metadata)
	}
	var body map[string][]string
	if err := json.Unmarshal(msg.Payload, &body); err != nil || body["names"][0] != "log.level" {
		t.Fatalf("payload = %s, err = %v", msg.Payload, err)
	}
	if _, err := NewJSONMessage(make(chan int), 1); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestBroadcastGroup_PerProcess(t *testing.T) {
	api, worker := BroadcastGroup("timetable"), BroadcastGroup("timetable")
	if api == worker {
		t.Fatalf("two processes share broadcast group %q", api)
	}
	for _, g := range []string{api, worker} {
		if g == "timetable-consumer" || !strings.HasPrefix(g, "timetable-broadcast-") {
			t.Fatalf("group = %q", g)
		}
	}
}

func TestSubscribeBroadcast_ReusesProcessSubscriber(t *testing.T) {
	b := &EventBus{broadcaster: &watermillsql.Subscriber{}}
	first, err := b.broadcastSubscriber()
	if err != nil {
		t.Fatalf("broadcastSubscriber: %v", err)
	}
	second, _ := b.broadcastSubscriber()
	if first != second {
		t.Fatal("broadcast subscriptions in one process must share one group")
	}
}
