package repositories

import (
	"context"
	"time"

	"github.com/ghuser/timetable/services/event/domain/models"
)

// EventRepository is the persistence interface for room events.
type EventRepository interface {
	// ExpirePending marks every pending event whose expiration date is before
	// now as expired and returns the events it changed.
	ExpirePending(ctx context.Context, now time.Time) ([]*models.Event, error)

	// GetByID loads one event. Returns ErrEventNotFound if absent.
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}
