package settings

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/timetable/pkg/errhttp"
	"github.com/ghuser/timetable/pkg/httpx"
	"github.com/ghuser/timetable/pkg/logger"
	pkgvalidator "github.com/ghuser/timetable/pkg/validator"
)

// Writer persists one setting. *Store implements it.
type Writer interface {
	Put(ctx context.Context, name, value string) error
}

// Publisher is satisfied by *events.EventBus.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any) error
}

// PutSettingRequest is the body of PUT /admin/settings/{name}.
type PutSettingRequest struct {
	Value string `json:"value" validate:"max=1024"`
}

// SettingResponse echoes the stored setting.
type SettingResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PutSettingHandler stores a setting and announces the change on the bus so
// every process re-applies it.
type PutSettingHandler struct {
	store Writer
	bus   Publisher
	log   logger.Logger
}

// NewPutSettingHandler returns a PutSettingHandler.
func NewPutSettingHandler(store Writer, bus Publisher, log logger.Logger) *PutSettingHandler {
	return &PutSettingHandler{store: store, bus: bus, log: log}
}

// Execute handles PUT /admin/settings/{name}.
func (h *PutSettingHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := pkgvalidator.Var(name, "setting_name"); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid setting name")
		return
	}
	req, ok := pkgvalidator.ValidateRequest[PutSettingRequest](w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.store.Put(ctx, name, req.Value); err != nil {
		errhttp.WriteError(w, err)
		return
	}
	// The row is already committed; a lost notification only delays the other processes.
	if err := h.bus.PublishJSON(ctx, TopicConfigChanged, ConfigChangedEvent{
		Names:      []string{name},
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		h.log.WarnContext(ctx, "config change not announced", "name", name, "error", err)
	}
	h.log.InfoContext(ctx, "setting updated", "name", name)
	httpx.JSON(w, http.StatusOK, SettingResponse{Name: name, Value: req.Value})
}
