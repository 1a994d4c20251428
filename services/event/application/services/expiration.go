// Package services runs the event domain's background work.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
	eventdomain "github.com/ghuser/timetable/services/event/domain"
	"github.com/ghuser/timetable/services/event/domain/repositories"
)

// ExpirationService periodically expires pending events whose approval
// deadline has passed.
type ExpirationService struct {
	repo     repositories.EventRepository
	interval time.Duration
	log      logger.Logger
	now      func() time.Time
	observe  func(ctx context.Context, expired int)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runs   int
}

// NewExpirationService returns a stopped service that ticks every interval.
func NewExpirationService(repo repositories.EventRepository, interval time.Duration, log logger.Logger) *ExpirationService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirationService{
		repo:     repo,
		interval: interval,
		log:      log.With("component", "event-expiration"),
		now:      time.Now,
	}
}

// SetObserver installs a callback told how many events each pass expired.
// Call it before Start.
func (s *ExpirationService) SetObserver(o func(ctx context.Context, expired int)) {
	s.observe = o
}

// Start launches the background task. The first pass runs immediately.
func (s *ExpirationService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return eventdomain.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(database.Detach(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx, s.done)
	s.log.Info("event expiration started", "interval", s.interval.String())
	return nil
}

// Interrupt signals the task to stop and returns without waiting.
func (s *ExpirationService) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.log.Info("event expiration interrupted")
}

// Wait blocks until the task has exited or ctx is done.
func (s *ExpirationService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for event expiration: %w", ctx.Err())
	}
}

// Runs reports how many expiration passes have completed.
func (s *ExpirationService) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// ExpireOnce runs a single expiration pass and returns the number of events expired.
func (s *ExpirationService) ExpireOnce(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpirePending(ctx, s.now())
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("expire pending events: %w", err)
	}
	for _, e := range expired {
		s.log.InfoContext(ctx, "event approval expired", "event_id", e.ID, "name", e.Name)
	}
	if s.observe != nil {
		s.observe(ctx, len(expired))
	}
	return len(expired), nil
}

func (s *ExpirationService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ctx, tags := logger.WithTags(ctx)
	tags.Push("task:event-expiration")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.ExpireOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.ErrorContext(ctx, "event expiration failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
