package services

import (
	"context"
	"fmt"
	"strconv"

	pkgcache "github.com/ghuser/timetable/pkg/cache"
	"github.com/ghuser/timetable/pkg/database"
	coursedomain "github.com/ghuser/timetable/services/course/domain"
	"github.com/ghuser/timetable/services/course/domain/models"
	"github.com/ghuser/timetable/services/course/domain/repositories"
)

// SubpartGradable is the gradable answer for one subpart.
type SubpartGradable struct {
	SubpartID int64
	Itype     string
	Gradable  bool
}

// OfferingGradable groups subpart answers by offering.
type OfferingGradable struct {
	OfferingID int64
	Subparts   []SubpartGradable
}

// QuerierSource resolves the session the batch gradable cache reads through.
type QuerierSource interface {
	QuerierFromCtx(ctx context.Context) (database.Querier, error)
}

// LabelService computes class labels and gradable flags with the configured helpers.
// Labels are served from an in-memory cache when available.
type LabelService struct {
	repo     repositories.ClassRepository
	names    coursedomain.ClassNameHelper
	gradable coursedomain.GradableHelper
	sessions QuerierSource
	cache    *pkgcache.InfoCache[*models.ClassLabels]
}

// NewLabelService returns a LabelService. labels may be nil to disable memoization.
func NewLabelService(
	repo repositories.ClassRepository,
	names coursedomain.ClassNameHelper,
	gradable coursedomain.GradableHelper,
	sessions QuerierSource,
	labels *pkgcache.InfoCache[*models.ClassLabels],
) *LabelService {
	return &LabelService{repo: repo, names: names, gradable: gradable, sessions: sessions, cache: labels}
}

// Labels returns the labels of a class. Returns ErrClassNotFound for unknown ids.
func (s *LabelService) Labels(ctx context.Context, classID int64) (*models.ClassLabels, error) {
	key := "class:" + strconv.FormatInt(classID, 10)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}

	c, o, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	out := &models.ClassLabels{
		ClassID:        c.ID,
		Suffix:         s.names.ClassSuffix(c, o),
		Label:          s.names.ClassLabel(c, o),
		LabelWithTitle: s.names.ClassLabelWithTitle(c, o),
		ExternalID:     s.names.ExternalID(c, o),
	}
	if v, ok := s.names.Credit(c, o); ok {
		out.Credit = &v
	}

	if s.cache != nil {
		s.cache.Set(key, out)
	}
	return out, nil
}

// Gradable answers IsGradable for every subpart of the given offerings,
// priming the helper's batch cache first when it has one.
func (s *LabelService) Gradable(ctx context.Context, offeringIDs []int64) ([]OfferingGradable, error) {
	if len(offeringIDs) == 0 {
		return nil, coursedomain.ErrNoOfferings
	}

	offerings, err := s.repo.OfferingsWithSubparts(ctx, offeringIDs)
	if err != nil {
		return nil, fmt.Errorf("load offerings: %w", err)
	}

	if _, ok := s.gradable.(coursedomain.GradableCache); ok {
		q, err := s.sessions.QuerierFromCtx(ctx)
		if err != nil {
			return nil, fmt.Errorf("gradable session: %w", err)
		}
		if _, err := coursedomain.PrepareGradable(ctx, s.gradable, q, offeringIDs); err != nil {
			return nil, fmt.Errorf("prepare gradable: %w", err)
		}
	}

	out := make([]OfferingGradable, 0, len(offerings))
	for _, o := range offerings {
		og := OfferingGradable{OfferingID: o.ID, Subparts: make([]SubpartGradable, 0, len(o.Subparts))}
		for _, sp := range o.Subparts {
			og.Subparts = append(og.Subparts, SubpartGradable{
				SubpartID: sp.ID,
				Itype:     sp.ItypeAbbv,
				Gradable:  s.gradable.IsGradable(sp, o),
			})
		}
		out = append(out, og)
	}
	return out, nil
}
