package domain

import (
	"context"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/services/course/domain/models"
)

// ClassNameHelper derives display and integration attributes of a class.
// Every method is a pure function of the class and its course offering.
type ClassNameHelper interface {
	ClassSuffix(c *models.Class, o *models.CourseOffering) string
	ClassLabel(c *models.Class, o *models.CourseOffering) string
	ClassLabelWithTitle(c *models.Class, o *models.CourseOffering) string
	ExternalID(c *models.Class, o *models.CourseOffering) string
	// Credit returns the credit hours of the class, ok=false when it has none.
	Credit(c *models.Class, o *models.CourseOffering) (hours float64, ok bool)
}

// GradableHelper decides whether a subpart receives grades.
type GradableHelper interface {
	IsGradable(s *models.Subpart, o *models.CourseOffering) bool
}

// GradableCache is an optional GradableHelper capability that loads the
// answers for a batch of offerings in one round trip before IsGradable is
// called for them.
type GradableCache interface {
	GradableHelper
	Cache(ctx context.Context, q database.Querier, offeringIDs []int64) error
}

// PrepareGradable primes h for offeringIDs when it implements GradableCache.
// It reports whether a batch cache was loaded; false means callers rely on
// per-subpart computation.
func PrepareGradable(ctx context.Context, h GradableHelper, q database.Querier, offeringIDs []int64) (bool, error) {
	gc, ok := h.(GradableCache)
	if !ok || len(offeringIDs) == 0 {
		return false, nil
	}
	if err := gc.Cache(ctx, q, offeringIDs); err != nil {
		return false, err
	}
	return true, nil
}
