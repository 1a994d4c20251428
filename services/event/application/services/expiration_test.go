package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
	eventdomain "github.com/ghuser/timetable/services/event/domain"
	"github.com/ghuser/timetable/services/event/domain/models"
)

type fakeRepo struct {
	mu      sync.Mutex
	calls   []time.Time
	expired []*models.Event
	err     error
	scoped  bool
}

func (f *fakeRepo) ExpirePending(ctx context.Context, now time.Time) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	f.scoped = f.scoped || database.ScopeFromCtx(ctx) != nil
	if f.err != nil {
		return nil, f.err
	}
	out := f.expired
	f.expired = nil
	return out, nil
}

func (f *fakeRepo) GetByID(context.Context, int64) (*models.Event, error) {
	return nil, eventdomain.ErrEventNotFound
}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(repo *fakeRepo, interval time.Duration) *ExpirationService {
	return NewExpirationService(repo, interval, logger.NewWithWriter(io.Discard, slog.LevelError))
}

func TestExpireOnce(t *testing.T) {
	fixed := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{expired: []*models.Event{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	s := newTestService(repo, time.Hour)
	s.now = func() time.Time { return fixed }

	observed := -1
	s.SetObserver(func(_ context.Context, n int) { observed = n })

	n, err := s.ExpireOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ExpireOnce = %d, %v", n, err)
	}
	if observed != 2 {
		t.Fatalf("observer saw %d, want 2", observed)
	}
	if !repo.calls[0].Equal(fixed) {
		t.Fatalf("repository saw %v, want %v", repo.calls[0], fixed)
	}
}

func TestExpireOnce_Error(t *testing.T) {
	boom := errors.New("connection refused")
	s := newTestService(&fakeRepo{err: boom}, time.Hour)
	if _, err := s.ExpireOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
	if s.Runs() != 1 {
		t.Fatalf("Runs = %d, want 1", s.Runs())
	}
}

func TestStartInterruptWait(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestService(repo, 10*time.Millisecond)

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait before Start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, eventdomain.ErrAlreadyRunning) {
		t.Fatalf("second Start: expected ErrAlreadyRunning, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.callCount() < 2 {
		t.Fatalf("expected repeated passes, got %d", repo.callCount())
	}

	s.Interrupt()
	s.Interrupt()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWait_Bounded(t *testing.T) {
	s := newTestService(&fakeRepo{}, time.Hour)
	s.done = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStart_DropsStartupScope(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestService(repo, time.Hour)

	startup := database.WithScope(context.Background(), database.NewFactory(nil).NewScope())
	if err := s.Start(startup); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for repo.callCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Interrupt()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.calls) == 0 {
		t.Fatal("first pass did not run")
	}
	if repo.scoped {
		t.Fatal("background pass ran on the released startup scope")
	}
}
