// Package roomavail mirrors room reservations from an external room
// availability service. The service is optional: with no URL configured the
// subsystem is simply not constructed.
package roomavail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
)

// Reservation is a time block during which a room is unavailable.
type Reservation struct {
	Room  string    `json:"room"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Event string    `json:"event,omitempty"`
}

// Store keeps the latest snapshot of reservations grouped by room.
type Store interface {
	Replace(ctx context.Context, byRoom map[string][]Reservation) error
}

// Service polls the external endpoint and writes snapshots to a Store.
type Service struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	store    Store
	log      logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	lastSync time.Time
	lastErr  error
}

// NewService validates endpoint and returns a stopped Service.
func NewService(endpoint string, interval time.Duration, store Store, log logger.Logger) (*Service, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("roomavail: invalid endpoint %q", endpoint)
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		endpoint: u.String(),
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		store:    store,
		log:      log.With("component", "room-availability"),
	}, nil
}

// Start begins polling. The first sync runs in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("roomavail: already started")
	}
	runCtx, cancel := context.WithCancel(database.Detach(ctx))
	s.cancel = cancel
	go s.loop(runCtx)
	s.log.Info("room availability started", "endpoint", s.endpoint, "interval", s.interval.String())
	return nil
}

// Stop signals the poller to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	s.log.Info("room availability stopped")
	return nil
}

// LastSync reports when the last successful sync finished and the last error.
func (s *Service) LastSync() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync, s.lastErr
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.log.WarnContext(ctx, "room availability sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sync fetches one snapshot and stores it.
func (s *Service) Sync(ctx context.Context) error {
	reservations, err := s.fetch(ctx)
	if err == nil {
		err = s.store.Replace(ctx, groupByRoom(reservations))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	s.lastSync = time.Now()
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]Reservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("roomavail: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roomavail: fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roomavail: fetch: unexpected status %d", resp.StatusCode)
	}
	var out []Reservation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("roomavail: decode: %w", err)
	}
	return out, nil
}

func groupByRoom(rs []Reservation) map[string][]Reservation {
	out := make(map[string][]Reservation)
	for _, r := range rs {
		if r.Room == "" || !r.End.After(r.Start) {
			continue
		}
		out[r.Room] = append(out[r.Room], r)
	}
	return out
}
