package roomavail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	reservationKeyPrefix = "roomavail"
	reservationIndexKey  = "roomavail:index"
)

// RedisStore keeps one JSON list per room under "roomavail:{room}".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a store whose keys expire after ttl without a refresh.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Replace swaps the stored snapshot for byRoom.
func (s *RedisStore) Replace(ctx context.Context, byRoom map[string][]Reservation) error {
	previous, err := s.client.SMembers(ctx, reservationIndexKey).Result()
	if err != nil {
		return fmt.Errorf("roomavail: read index: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, room := range previous {
		if _, ok := byRoom[room]; !ok {
			pipe.Del(ctx, s.key(room))
			pipe.SRem(ctx, reservationIndexKey, room)
		}
	}
	for room, rs := range byRoom {
		payload, err := json.Marshal(rs)
		if err != nil {
			return fmt.Errorf("roomavail: encode %s: %w", room, err)
		}
		pipe.Set(ctx, s.key(room), payload, s.ttl)
		pipe.SAdd(ctx, reservationIndexKey, room)
	}
	pipe.Expire(ctx, reservationIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("roomavail: write snapshot: %w", err)
	}
	return nil
}

// Reservations returns the stored reservations of room.
// Returns redis.Nil when the room has none.
func (s *RedisStore) Reservations(ctx context.Context, room string) ([]Reservation, error) {
	data, err := s.client.Get(ctx, s.key(room)).Bytes()
	if err != nil {
		return nil, err
	}
	var out []Reservation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("roomavail: decode %s: %w", room, err)
	}
	return out, nil
}

func (s *RedisStore) key(room string) string {
	return reservationKeyPrefix + ":" + room
}
