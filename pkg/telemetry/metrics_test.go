package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ghuser/timetable/pkg/lifecycle"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background()) //nolint:errcheck
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	defer otel.SetMeterProvider(prev)

	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	StartupReporter(m)(&lifecycle.Error{Phase: "startup", Step: "sectioning-preferences", Err: errors.New("redis down")})
	m.EventsExpired(ctx, 3)
	m.EventsExpired(ctx, 0)
	m.TaskFinished(ctx, "refresh", nil)
	m.TaskFinished(ctx, "refresh", errors.New("boom"))

	sums := collectSums(t, reader)
	if sums["timetable.startup.failures"] != 1 {
		t.Errorf("startup failures = %d, want 1", sums["timetable.startup.failures"])
	}
	if sums["timetable.events.expired"] != 3 {
		t.Errorf("events expired = %d, want 3", sums["timetable.events.expired"])
	}
	if sums["timetable.queue.tasks"] != 2 {
		t.Errorf("queue tasks = %d, want 2", sums["timetable.queue.tasks"])
	}
}

func TestStartupReporter_NilMetrics(t *testing.T) {
	StartupReporter(nil)(errors.New("no sentry, no metrics"))
}
