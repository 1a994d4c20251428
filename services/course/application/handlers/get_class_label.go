package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/timetable/pkg/errhttp"
	"github.com/ghuser/timetable/pkg/httpx"
	appsvcs "github.com/ghuser/timetable/services/course/application/services"
)

// ClassLabelResponse is returned by GET /classes/{id}/label.
type ClassLabelResponse struct {
	ClassID        int64    `json:"class_id"`
	Suffix         string   `json:"suffix"`
	Label          string   `json:"label"`
	LabelWithTitle string   `json:"label_with_title"`
	ExternalID     string   `json:"external_id,omitempty"`
	Credit         *float64 `json:"credit,omitempty"`
}

// GetClassLabelHandler handles GET /classes/{id}/label requests.
type GetClassLabelHandler struct {
	svc *appsvcs.Services
}

// NewGetClassLabelHandler returns a GetClassLabelHandler backed by the given services.
func NewGetClassLabelHandler(svc *appsvcs.Services) *GetClassLabelHandler {
	return &GetClassLabelHandler{svc: svc}
}

// Execute returns the labels of one class.
func (h *GetClassLabelHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "class id must be a positive integer")
		return
	}

	labels, err := h.svc.Labels.Labels(r.Context(), id)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, ClassLabelResponse{
		ClassID:        labels.ClassID,
		Suffix:         labels.Suffix,
		Label:          labels.Label,
		LabelWithTitle: labels.LabelWithTitle,
		ExternalID:     labels.ExternalID,
		Credit:         labels.Credit,
	})
}
