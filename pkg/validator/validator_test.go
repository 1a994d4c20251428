package validator_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghuser/timetable/pkg/httpx"
	pkgvalidator "github.com/ghuser/timetable/pkg/validator"
)

type offeringsReq struct {
	OfferingIDs []int64 `json:"offering_ids" validate:"required,min=1,max=3,dive,gt=0"`
	Mode        string  `json:"mode" validate:"omitempty,oneof=batch single"`
}

func TestFormatValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   offeringsReq
		field string
		want  string
	}{
		{"required", offeringsReq{}, "offering_ids", "This field is required"},
		{"too many", offeringsReq{OfferingIDs: []int64{1, 2, 3, 4}}, "offering_ids", "Must contain at most 3 items"},
		{"non-positive id", offeringsReq{OfferingIDs: []int64{1, 0}}, "offering_ids[1]", "Must be greater than 0"},
		{"oneof", offeringsReq{OfferingIDs: []int64{1}, Mode: "all"}, "mode", "Must be one of: batch single"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgvalidator.Validate(&tt.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			m := pkgvalidator.FormatValidationErrors(err)
			if m[tt.field] != tt.want {
				t.Fatalf("fields = %v, want %s=%q", m, tt.field, tt.want)
			}
		})
	}
}

func TestFormatValidationErrors_NonValidationError(t *testing.T) {
	if m := pkgvalidator.FormatValidationErrors(http.ErrNoCookie); len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestVar_SettingName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"log.level", true},
		{"log.appender.message-log.level", true},
		{"Log.Level", false},
		{"", false},
		{".hidden", false},
		{strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		err := pkgvalidator.Var(tt.name, "setting_name")
		if (err == nil) != tt.valid {
			t.Errorf("Var(%q) error = %v, want valid=%v", tt.name, err, tt.valid)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"offering_ids":[10,11]}`, true, http.StatusOK},
		{"malformed", `{"offering_ids":`, false, http.StatusBadRequest},
		{"empty list", `{"offering_ids":[]}`, false, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/offerings/gradable", strings.NewReader(tt.body))

			req, ok := pkgvalidator.ValidateRequest[offeringsReq](w, r)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, body %s", ok, w.Body.String())
			}
			if ok {
				if len(req.OfferingIDs) != 2 {
					t.Fatalf("decoded %v", req.OfferingIDs)
				}
				return
			}
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusUnprocessableEntity {
				var body httpx.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if _, ok := body.Fields["offering_ids"]; !ok {
					t.Fatalf("fields = %v", body.Fields)
				}
			}
		})
	}
}
