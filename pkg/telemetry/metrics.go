package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ghuser/timetable/pkg/lifecycle"
)

const meterName = "github.com/ghuser/timetable"

// Metrics holds the process-level instruments. They are exported through the
// meter provider installed by Setup, so /metrics shows them.
type Metrics struct {
	startupFailures metric.Int64Counter
	eventsExpired   metric.Int64Counter
	queueTasks      metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	startup, err := meter.Int64Counter("timetable.startup.failures",
		metric.WithDescription("Startup sequences that ended degraded, by failing step"))
	if err != nil {
		return nil, fmt.Errorf("startup failures counter: %w", err)
	}
	expired, err := meter.Int64Counter("timetable.events.expired",
		metric.WithDescription("Pending events expired by the background task"))
	if err != nil {
		return nil, fmt.Errorf("events expired counter: %w", err)
	}
	tasks, err := meter.Int64Counter("timetable.queue.tasks",
		metric.WithDescription("Local queue tasks run, by name and result"))
	if err != nil {
		return nil, fmt.Errorf("queue tasks counter: %w", err)
	}
	return &Metrics{startupFailures: startup, eventsExpired: expired, queueTasks: tasks}, nil
}

// StartupFailed records a degraded startup.
func (m *Metrics) StartupFailed(ctx context.Context, err error) {
	step := "unknown"
	var le *lifecycle.Error
	if errors.As(err, &le) && le.Step != "" {
		step = le.Step
	}
	m.startupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// EventsExpired records n events expired by one pass.
func (m *Metrics) EventsExpired(ctx context.Context, n int) {
	if n > 0 {
		m.eventsExpired.Add(ctx, int64(n))
	}
}

// TaskFinished records one queue task outcome.
func (m *Metrics) TaskFinished(ctx context.Context, name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.queueTasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", name),
		attribute.String("result", result),
	))
}

// StartupReporter returns a lifecycle.Reporter that sends the failure to
// Sentry and counts it. m may be nil.
func StartupReporter(m *Metrics) lifecycle.Reporter {
	return func(err error) {
		CaptureStartupFailure(err)
		if m != nil {
			m.StartupFailed(context.Background(), err)
		}
	}
}
