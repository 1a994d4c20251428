package handlers

import (
	"net/http"

	"github.com/ghuser/timetable/pkg/errhttp"
	"github.com/ghuser/timetable/pkg/httpx"
	pkgvalidator "github.com/ghuser/timetable/pkg/validator"
	appsvcs "github.com/ghuser/timetable/services/course/application/services"
)

// GradableRequest is the request body for POST /offerings/gradable.
type GradableRequest struct {
	OfferingIDs []int64 `json:"offering_ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// SubpartGradableResponse is one subpart in a GradableResponse.
type SubpartGradableResponse struct {
	SubpartID int64  `json:"subpart_id"`
	Itype     string `json:"itype"`
	Gradable  bool   `json:"gradable"`
}

// OfferingGradableResponse groups subparts by offering.
type OfferingGradableResponse struct {
	OfferingID int64                     `json:"offering_id"`
	Subparts   []SubpartGradableResponse `json:"subparts"`
}

// GradableResponse is returned by POST /offerings/gradable.
type GradableResponse struct {
	Offerings []OfferingGradableResponse `json:"offerings"`
}

// PostGradableHandler handles POST /offerings/gradable requests.
type PostGradableHandler struct {
	svc *appsvcs.Services
}

// NewPostGradableHandler returns a PostGradableHandler backed by the given services.
func NewPostGradableHandler(svc *appsvcs.Services) *PostGradableHandler {
	return &PostGradableHandler{svc: svc}
}

// Execute answers which subparts of the requested offerings are gradable.
func (h *PostGradableHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[GradableRequest](w, r)
	if !ok {
		return
	}

	result, err := h.svc.Labels.Gradable(r.Context(), req.OfferingIDs)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	resp := GradableResponse{Offerings: make([]OfferingGradableResponse, 0, len(result))}
	for _, og := range result {
		o := OfferingGradableResponse{OfferingID: og.OfferingID, Subparts: make([]SubpartGradableResponse, 0, len(og.Subparts))}
		for _, s := range og.Subparts {
			o.Subparts = append(o.Subparts, SubpartGradableResponse{SubpartID: s.SubpartID, Itype: s.Itype, Gradable: s.Gradable})
		}
		resp.Offerings = append(resp.Offerings, o)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
