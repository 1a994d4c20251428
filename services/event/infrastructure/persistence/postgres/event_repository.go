package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/ghuser/timetable/pkg/database"
	eventdomain "github.com/ghuser/timetable/services/event/domain"
	domainevents "github.com/ghuser/timetable/services/event/domain/events"
	"github.com/ghuser/timetable/services/event/domain/models"
)

const (
	expirePendingStmt = `UPDATE event SET status = $1
WHERE status = $2 AND expiration_date IS NOT NULL AND expiration_date < $3
RETURNING id, name, status, expiration_date`

	getEventStmt = `SELECT id, name, status, expiration_date FROM event WHERE id = $1`
)

// TxPublisherFactory is satisfied by *events.EventBus.
type TxPublisherFactory interface {
	NewTxPublisher(tx *sql.Tx) (message.Publisher, error)
}

// EventRepository implements repositories.EventRepository against PostgreSQL.
type EventRepository struct {
	factory *database.Factory
	bus     TxPublisherFactory
}

// NewEventRepository returns an EventRepository. The bus may be nil, in which
// case no event.expired messages are published.
func NewEventRepository(f *database.Factory, bus TxPublisherFactory) *EventRepository {
	return &EventRepository{factory: f, bus: bus}
}

// ExpirePending marks overdue pending events as expired and publishes one
// EventExpiredEvent per event within the same transaction.
func (r *EventRepository) ExpirePending(ctx context.Context, now time.Time) ([]*models.Event, error) {
	db, err := r.factory.Get()
	if err != nil {
		return nil, fmt.Errorf("expire events: %w", err)
	}

	var expired []*models.Event
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, expirePendingStmt, models.StatusExpired, models.StatusPending, now)
		if err != nil {
			return fmt.Errorf("update events: %w", err)
		}
		expired, err = scanEvents(rows)
		if err != nil {
			return err
		}
		if r.bus == nil || len(expired) == 0 {
			return nil
		}
		if err := r.publishExpired(tx, expired, now); err != nil {
			return fmt.Errorf("publish event expired: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// GetByID loads one event by id.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	q, err := r.factory.QuerierFromCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	var (
		e   models.Event
		exp sql.NullTime
	)
	err = q.QueryRowContext(ctx, getEventStmt, id).Scan(&e.ID, &e.Name, &e.Status, &exp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eventdomain.ErrEventNotFound
		}
		return nil, fmt.Errorf("query event: %w", err)
	}
	if exp.Valid {
		e.ExpirationDate = &exp.Time
	}
	return &e, nil
}

func (r *EventRepository) publishExpired(tx *sql.Tx, expired []*models.Event, now time.Time) error {
	p, err := r.bus.NewTxPublisher(tx)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	msgs := make([]*message.Message, 0, len(expired))
	for _, e := range expired {
		msg, err := expiredMessage(e, now)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.Publish(domainevents.TopicEventExpired, msgs...)
}

func expiredMessage(e *models.Event, now time.Time) (*message.Message, error) {
	evt := domainevents.EventExpiredEvent{
		EventID:     uuid.New(),
		Version:     1,
		RoomEventID: e.ID,
		Name:        e.Name,
		OccurredAt:  now.UTC(),
	}
	if e.ExpirationDate != nil {
		evt.ExpirationDate = e.ExpirationDate.UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_id", evt.EventID.String())
	msg.Metadata.Set("event_version", "1")
	return msg, nil
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	defer rows.Close() //nolint:errcheck
	var out []*models.Event
	for rows.Next() {
		var (
			e   models.Event
			exp sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &exp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if exp.Valid {
			t := exp.Time
			e.ExpirationDate = &t
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}
