// Package lifecycle sequences the start and stop of process subsystems.
//
// Startup runs its steps in order and stops at the first failure. The failure
// is retained as the initialization outcome instead of being returned, so the
// process keeps booting in a degraded state; callers check Outcome (the
// /health endpoint does) to detect it.
//
// Shutdown runs its steps in order and returns the first failure, always as
// an *Error.
//
// Neither method is reentrant; the hosting process calls each once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghuser/timetable/pkg/logger"
)

// State is the coordinator's position in its lifecycle.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Degraded
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Degraded:
		return "degraded"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidState is returned when Startup or Shutdown is called out of order.
var ErrInvalidState = errors.New("lifecycle: invalid state")

// Step is one named unit of the startup or shutdown sequence.
type Step struct {
	Name string
	// Run performs the step. A nil Run marks an unconfigured optional step,
	// which is skipped.
	Run func(ctx context.Context) error
}

// Error is the failure kind returned by Shutdown and held as the startup outcome.
type Error struct {
	Phase string
	Step  string
	Err   error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("lifecycle %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("lifecycle %s: %s: %v", e.Phase, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reporter receives startup failures in addition to the log (Sentry in production).
type Reporter func(err error)

// Options configures a Coordinator.
type Options struct {
	Startup  []Step
	Shutdown []Step
	// BeginStartup runs before the first startup step and returns the context
	// the steps see plus a release function that runs on every exit path.
	BeginStartup func(ctx context.Context) (context.Context, func())
	Report       Reporter
	Logger       logger.Logger
}

// Coordinator runs the startup and shutdown sequences.
type Coordinator struct {
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	state   State
	outcome error
	ran     []string
}

// New returns a Coordinator in the NotStarted state.
func New(opts Options) *Coordinator {
	return &Coordinator{opts: opts, log: opts.Logger.With("component", "lifecycle")}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns the startup failure, or nil if startup succeeded or has not run.
func (c *Coordinator) Outcome() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Ran lists the startup steps that completed successfully, in order.
func (c *Coordinator) Ran() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ran...)
}

// Startup runs the startup sequence. It returns an error only when called
// out of order; step failures are recorded in Outcome.
func (c *Coordinator) Startup(ctx context.Context) error {
	if err := c.transition(Starting, NotStarted); err != nil {
		return err
	}

	started := time.Now()
	outcome := c.runStartup(ctx)

	c.mu.Lock()
	c.outcome = outcome
	if outcome != nil {
		c.state = Degraded
	} else {
		c.state = Running
	}
	c.mu.Unlock()

	if outcome != nil {
		c.log.Error("startup failed, running degraded", "error", outcome)
		if c.opts.Report != nil {
			c.opts.Report(outcome)
		}
		return nil
	}
	c.log.Info("startup complete", "steps", len(c.opts.Startup), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (c *Coordinator) runStartup(ctx context.Context) (outcome error) {
	if c.opts.BeginStartup != nil {
		var release func()
		ctx, release = c.opts.BeginStartup(ctx)
		defer release()
	}
	for _, step := range c.opts.Startup {
		if step.Run == nil {
			c.log.Debug("startup step skipped", "step", step.Name)
			continue
		}
		if err := runStep(ctx, step); err != nil {
			return &Error{Phase: "startup", Step: step.Name, Err: err}
		}
		c.mu.Lock()
		c.ran = append(c.ran, step.Name)
		c.mu.Unlock()
		c.log.Debug("startup step done", "step", step.Name)
	}
	return nil
}

// Shutdown runs the shutdown sequence and returns the first failure as an *Error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if err := c.transition(Stopping, Running, Degraded); err != nil {
		return err
	}
	defer func() {
		c.mu.Lock()
		c.state = Stopped
		c.mu.Unlock()
	}()

	for _, step := range c.opts.Shutdown {
		if step.Run == nil {
			continue
		}
		if err := runStep(ctx, step); err != nil {
			wrapped := asLifecycleError(step.Name, err)
			c.log.Error("shutdown failed", "step", step.Name, "error", err)
			return wrapped
		}
		c.log.Debug("shutdown step done", "step", step.Name)
	}
	c.log.Info("shutdown complete")
	return nil
}

func (c *Coordinator) transition(to State, from ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range from {
		if c.state == f {
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: cannot enter %s from %s", ErrInvalidState, to, c.state)
}

// runStep calls step.Run, converting a panic into an error.
func runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx)
}

func asLifecycleError(step string, err error) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{Phase: "shutdown", Step: step, Err: err}
}
