package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/timetable/pkg/app"
	"github.com/ghuser/timetable/services/sectioning/application/handlers"
)

// SectioningRoutes registers the sectioning preference endpoints.
func SectioningRoutes(r chi.Router, a *app.Application) {
	r.Post("/sectioning/preferences/refresh",
		handlers.NewPostRefreshHandler(a.Queue, a.Preferences, a.Logger).Execute)
}
