package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghuser/timetable/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:    "timetable-test",
		ServiceVersion: "test",
		Environment:    config.EnvTesting,
	}
}

func TestSetup_WithoutOTLP(t *testing.T) {
	shutdown, handler, err := Setup(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if handler == nil {
		t.Fatal("metrics handler is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_ExposesDomainCounters(t *testing.T) {
	shutdown, handler, err := Setup(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background()) //nolint:errcheck

	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.EventsExpired(context.Background(), 2)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("content-type = %q", ct)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "events") || !strings.Contains(string(body), "expired") {
		t.Errorf("expired counter missing from /metrics output")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("go collector missing from /metrics output")
	}
}
