package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicEventExpired is the Watermill topic published when a pending event expires.
const TopicEventExpired = "event.expired"

// EventExpiredEvent is published in the same transaction that marks the event expired.
type EventExpiredEvent struct {
	EventID        uuid.UUID `json:"event_id"` // Unique publish-time identifier for deduplication
	Version        int       `json:"version"`
	RoomEventID    int64     `json:"room_event_id"`
	Name           string    `json:"name"`
	ExpirationDate time.Time `json:"expiration_date"`
	OccurredAt     time.Time `json:"occurred_at"`
}
