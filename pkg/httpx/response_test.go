package httpx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghuser/timetable/pkg/httpx"
)

func TestJSON_HeadersAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": "abc"})

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("unexpected Content-Type: %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("expected nosniff, got %q", xct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["task_id"] != "abc" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestJSONError_OmitsFields(t *testing.T) {
	w := httptest.NewRecorder()
	httpx.JSONError(w, http.StatusNotFound, "class not found")

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "class not found" {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["fields"]; ok {
		t.Error("fields must be omitted when empty")
	}
}

func TestValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	httpx.ValidationError(w, map[string]string{"offering_ids": "This field is required"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var body httpx.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["offering_ids"] != "This field is required" {
		t.Errorf("fields = %v", body.Fields)
	}
}

func TestSafeError(t *testing.T) {
	err := errors.New(`pq: relation "class_" does not exist`)
	tests := []struct {
		status int
		hide   bool
		want   string
	}{
		{http.StatusInternalServerError, true, "Internal Server Error"},
		{http.StatusInternalServerError, false, err.Error()},
		{http.StatusNotFound, true, err.Error()},
	}
	for _, tt := range tests {
		if got := httpx.SafeError(err, tt.status, tt.hide); got != tt.want {
			t.Errorf("SafeError(%d, %v) = %q, want %q", tt.status, tt.hide, got, tt.want)
		}
	}
}
