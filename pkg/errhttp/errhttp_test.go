package errhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/queue"
	coursedomain "github.com/ghuser/timetable/services/course/domain"
	eventdomain "github.com/ghuser/timetable/services/event/domain"
)

func TestWriteError_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ErrClassNotFound", coursedomain.ErrClassNotFound, http.StatusNotFound},
		{"ErrEventNotFound", eventdomain.ErrEventNotFound, http.StatusNotFound},
		{"ErrNoOfferings", coursedomain.ErrNoOfferings, http.StatusUnprocessableEntity},
		{"ErrQueueFull", queue.ErrQueueFull, http.StatusTooManyRequests},
		{"ErrStopped", queue.ErrStopped, http.StatusServiceUnavailable},
		{"ErrNotInitialized", database.ErrNotInitialized, http.StatusServiceUnavailable},
		{"wrapped ErrClassNotFound", fmt.Errorf("get class: %w", coursedomain.ErrClassNotFound), http.StatusNotFound},
		{"unknown error", errors.New("something unexpected"), http.StatusInternalServerError},
		{"generic wrapped error", fmt.Errorf("context: %w", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestWriteError_JSONBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, coursedomain.ErrClassNotFound)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != coursedomain.ErrClassNotFound.Error() {
		t.Fatalf("error = %q", body["error"])
	}
	if ct := w.Header().Get("Content-Type"); ct == "" {
		t.Fatal("Content-Type header not set")
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	HideInternalErrors(true)
	defer HideInternalErrors(false)

	w := httptest.NewRecorder()
	WriteError(w, errors.New(`dial tcp 10.0.0.5:5432: connection refused`))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("error = %q", body["error"])
	}

	w = httptest.NewRecorder()
	WriteError(w, coursedomain.ErrClassNotFound)
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != coursedomain.ErrClassNotFound.Error() {
		t.Fatalf("4xx messages must be kept, got %q", body["error"])
	}
}
