package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/timetable/pkg/app"
	"github.com/ghuser/timetable/services/course/application/handlers"
	appsvcs "github.com/ghuser/timetable/services/course/application/services"
)

// CourseRoutes registers class label and gradable endpoints on the provided chi router.
func CourseRoutes(r chi.Router, a *app.Application) {
	Mount(r, appsvcs.New(a))
}

// Mount registers the endpoints backed by svcs.
func Mount(r chi.Router, svcs *appsvcs.Services) {
	r.Group(func(r chi.Router) {
		r.Get("/classes/{id}/label", handlers.NewGetClassLabelHandler(svcs).Execute)
		r.Post("/offerings/gradable", handlers.NewPostGradableHandler(svcs).Execute)
	})
}
