// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/pkg/httpx"
	"github.com/ghuser/timetable/pkg/queue"
	coursedomain "github.com/ghuser/timetable/services/course/domain"
	eventdomain "github.com/ghuser/timetable/services/event/domain"
)

var hideInternal atomic.Bool

// HideInternalErrors replaces 5xx messages with the status text. Production
// binaries turn it on at startup.
func HideInternalErrors(on bool) {
	hideInternal.Store(on)
}

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors.
func WriteError(w http.ResponseWriter, err error) {
	status := mapErrorToStatus(err)
	httpx.JSONError(w, status, httpx.SafeError(err, status, hideInternal.Load()))
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, coursedomain.ErrClassNotFound),
		errors.Is(err, eventdomain.ErrEventNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, coursedomain.ErrNoOfferings):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusTooManyRequests // 429
	case errors.Is(err, database.ErrNotInitialized),
		errors.Is(err, queue.ErrStopped):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
