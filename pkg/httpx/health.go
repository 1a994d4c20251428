package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 2 * time.Second

// Health component states.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusDisabled    = "disabled"
	StatusUnreachable = "unreachable"
)

// HealthChecker is anything with a Ping: database.Factory, cache.RedisClient
// and events.EventBus.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StartupOutcome is satisfied by *lifecycle.Coordinator.
type StartupOutcome interface {
	Outcome() error
}

// HealthChecks are the dependencies /health reports on. A nil checker is
// reported as disabled and does not degrade the status.
type HealthChecks struct {
	Database HealthChecker
	Redis    HealthChecker
	EventBus HealthChecker
	Startup  StartupOutcome
	// ShowErrors includes the startup failure message in the response.
	ShowErrors bool
}

type healthResponse struct {
	Status       string `json:"status"`
	Startup      string `json:"startup"`
	StartupError string `json:"startup_error,omitempty"`
	Database     string `json:"database"`
	Redis        string `json:"redis"`
	EventBus     string `json:"event_bus"`
}

// HealthHandler reports the startup outcome and pings every checker in
// parallel. A degraded startup or an unreachable dependency yields 503.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		resp := healthResponse{Status: StatusOK, Startup: StatusOK}
		if checks.Startup != nil {
			if err := checks.Startup.Outcome(); err != nil {
				resp.Startup = StatusDegraded
				if checks.ShowErrors {
					resp.StartupError = err.Error()
				}
			}
		}

		targets := []struct {
			checker HealthChecker
			out     *string
		}{
			{checks.Database, &resp.Database},
			{checks.Redis, &resp.Redis},
			{checks.EventBus, &resp.EventBus},
		}
		var wg sync.WaitGroup
		for _, t := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				*t.out = probe(ctx, t.checker)
			}()
		}
		wg.Wait()

		for _, s := range []string{resp.Startup, resp.Database, resp.Redis, resp.EventBus} {
			if s == StatusDegraded || s == StatusUnreachable {
				resp.Status = StatusDegraded
			}
		}
		status := http.StatusOK
		if resp.Status != StatusOK {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}

func probe(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return StatusDisabled
	}
	if err := c.Ping(ctx); err != nil {
		return StatusUnreachable
	}
	return StatusOK
}
