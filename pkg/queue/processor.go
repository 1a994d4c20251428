// Package queue runs background tasks submitted by request handlers on a
// single local worker, one at a time, in submission order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/logger"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is full.
	ErrQueueFull = errors.New("queue: full")
	// ErrStopped is returned by Enqueue before Start or after Stop.
	ErrStopped = errors.New("queue: processor not running")
)

// Task is a unit of background work.
type Task struct {
	ID       uuid.UUID
	Name     string
	Run      func(ctx context.Context) error
	Enqueued time.Time
}

// Stats counts processed tasks.
type Stats struct {
	Processed int64
	Failed    int64
	Pending   int
}

// Observer is told the outcome of every task.
type Observer func(ctx context.Context, name string, err error)

// Processor executes queued tasks on one goroutine.
type Processor struct {
	log     logger.Logger
	tasks   chan Task
	observe Observer

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewProcessor returns a stopped processor buffering up to size tasks.
func NewProcessor(size int, log logger.Logger) *Processor {
	if size <= 0 {
		size = 1
	}
	return &Processor{
		log:   log.With("component", "queue"),
		tasks: make(chan Task, size),
	}
}

// SetObserver installs o. Call it before Start.
func (p *Processor) SetObserver(o Observer) {
	p.observe = o
}

// Start launches the worker.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("queue: already started")
	}
	runCtx, cancel := context.WithCancel(database.Detach(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.loop(runCtx, p.done)
	p.log.Info("queue processor started", "capacity", cap(p.tasks))
	return nil
}

// Enqueue submits a task and returns its id.
func (p *Processor) Enqueue(name string, run func(ctx context.Context) error) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return uuid.Nil, ErrStopped
	}
	t := Task{ID: uuid.New(), Name: name, Run: run, Enqueued: time.Now()}
	select {
	case p.tasks <- t:
		return t.ID, nil
	default:
		return uuid.Nil, ErrQueueFull
	}
}

// Stop interrupts the worker: the running task sees its context cancelled
// and pending tasks are abandoned. Stop does not wait; use Wait for that.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	p.log.Info("queue processor stopping", "pending", len(p.tasks))
}

// Wait blocks until the worker has exited or ctx expires.
func (p *Processor) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue: wait: %w", ctx.Err())
	}
}

// Stats returns the processing counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Pending:   len(p.tasks),
	}
}

func (p *Processor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			p.execute(ctx, t)
		}
	}
}

func (p *Processor) execute(ctx context.Context, t Task) {
	ctx, tags := logger.WithTags(ctx)
	tags.Push("task:" + t.Name)
	defer tags.Clear()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()

	p.processed.Add(1)
	if p.observe != nil {
		p.observe(ctx, t.Name, err)
	}
	if err != nil {
		p.failed.Add(1)
		p.log.ErrorContext(ctx, "queued task failed", "task_id", t.ID, "error", err)
		return
	}
	p.log.InfoContext(ctx, "queued task done",
		"task_id", t.ID,
		"wait_ms", start.Sub(t.Enqueued).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
