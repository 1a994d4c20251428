package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghuser/timetable/pkg/database"
	"github.com/ghuser/timetable/services/course/domain"
	"github.com/ghuser/timetable/services/course/domain/models"
)

// maxCachedAnswers bounds the process-wide answer map. A batch that would
// exceed it drops every older answer first.
const maxCachedAnswers = 10000

// SQLGradableHelper wraps a GradableHelper with a per-subpart answer cache.
// Cache loads a batch of offerings with their subparts in two queries and
// asks inner with the real offering, so helpers that read offering fields
// see them.
type SQLGradableHelper struct {
	inner domain.GradableHelper
	limit int

	mu      sync.RWMutex
	answers map[int64]bool
}

// NewSQLGradableHelper returns a helper that computes answers with inner.
func NewSQLGradableHelper(inner domain.GradableHelper) *SQLGradableHelper {
	return &SQLGradableHelper{inner: inner, limit: maxCachedAnswers, answers: make(map[int64]bool)}
}

// Cache loads offeringIDs with their subparts and stores inner's answer for
// each subpart, replacing earlier answers for the same subparts.
func (h *SQLGradableHelper) Cache(ctx context.Context, q database.Querier, offeringIDs []int64) error {
	offerings, err := loadOfferings(ctx, q, offeringIDs)
	if err != nil {
		return fmt.Errorf("cache gradable subparts: %w", err)
	}
	h.store(offerings)
	return nil
}

func (h *SQLGradableHelper) store(offerings []*models.CourseOffering) {
	computed := make(map[int64]bool)
	for _, o := range offerings {
		for _, s := range o.Subparts {
			computed[s.ID] = h.inner.IsGradable(s, o)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.answers)+len(computed) > h.limit {
		clear(h.answers)
	}
	for id, ok := range computed {
		h.answers[id] = ok
	}
}

// IsGradable returns the cached answer, computing it with inner on a miss.
func (h *SQLGradableHelper) IsGradable(s *models.Subpart, o *models.CourseOffering) bool {
	h.mu.RLock()
	v, ok := h.answers[s.ID]
	h.mu.RUnlock()
	if ok {
		return v
	}
	return h.inner.IsGradable(s, o)
}

// Cached reports how many subpart answers are held.
func (h *SQLGradableHelper) Cached() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.answers)
}
