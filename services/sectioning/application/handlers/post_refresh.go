package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/timetable/pkg/errhttp"
	"github.com/ghuser/timetable/pkg/httpx"
	"github.com/ghuser/timetable/pkg/logger"
)

// RefreshTaskName is the queue task name of a preference refresh.
const RefreshTaskName = "sectioning-preferences-refresh"

// Enqueuer is satisfied by *queue.Processor.
type Enqueuer interface {
	Enqueue(name string, run func(ctx context.Context) error) (uuid.UUID, error)
}

// Refresher is satisfied by *cache.PreferenceCache.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RefreshResponse is returned by POST /sectioning/preferences/refresh.
type RefreshResponse struct {
	TaskID string `json:"task_id"`
}

// PostRefreshHandler queues a reload of the sectioning preference cache.
type PostRefreshHandler struct {
	queue Enqueuer
	cache Refresher
	log   logger.Logger
}

// NewPostRefreshHandler returns a PostRefreshHandler.
func NewPostRefreshHandler(q Enqueuer, c Refresher, log logger.Logger) *PostRefreshHandler {
	return &PostRefreshHandler{queue: q, cache: c, log: log}
}

// Execute enqueues the refresh and answers 202 with the task id.
func (h *PostRefreshHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := h.queue.Enqueue(RefreshTaskName, func(ctx context.Context) error {
		n, err := h.cache.Refresh(ctx)
		if err != nil {
			return err
		}
		h.log.InfoContext(ctx, "sectioning preferences refreshed", "students", n)
		return nil
	})
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, RefreshResponse{TaskID: id.String()})
}
