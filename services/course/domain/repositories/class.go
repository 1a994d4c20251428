package repositories

import (
	"context"

	"github.com/ghuser/timetable/services/course/domain/models"
)

// ClassRepository reads the course structure used by the label helpers.
type ClassRepository interface {
	// GetClass loads a class with its subpart and course offering.
	// Returns ErrClassNotFound if absent.
	GetClass(ctx context.Context, id int64) (*models.Class, *models.CourseOffering, error)

	// OfferingsWithSubparts loads the requested offerings with their subparts.
	// Unknown ids are skipped.
	OfferingsWithSubparts(ctx context.Context, ids []int64) ([]*models.CourseOffering, error)
}
