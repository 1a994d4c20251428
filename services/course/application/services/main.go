package services

import (
	"github.com/ghuser/timetable/pkg/app"
	"github.com/ghuser/timetable/services/course/infrastructure/persistence/postgres"
	domainsvcs "github.com/ghuser/timetable/services/course/domain/services"
)

// Services is the application-layer service container for this bounded context.
type Services struct {
	Labels *LabelService
}

// New wires the course services with infrastructure from the Application container.
func New(a *app.Application) *Services {
	helper := domainsvcs.DefaultHelper{}
	return &Services{
		Labels: NewLabelService(
			postgres.NewClassRepository(a.Db),
			helper,
			postgres.NewSQLGradableHelper(helper),
			a.Db,
			a.LabelCache,
		),
	}
}
