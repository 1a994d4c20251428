// Package services holds the built-in label and gradable rules.
package services

import (
	"strconv"
	"strings"

	"github.com/ghuser/timetable/services/course/domain/models"
)

// DefaultHelper implements domain.ClassNameHelper and domain.GradableHelper
// with the rules used when no deployment-specific provider is configured.
type DefaultHelper struct{}

// ClassSuffix is the class suffix, or the section number when the suffix is blank.
func (DefaultHelper) ClassSuffix(c *models.Class, _ *models.CourseOffering) string {
	if s := strings.TrimSpace(c.ClassSuffix); s != "" {
		return s
	}
	if c.SectionNumber > 0 {
		return strconv.Itoa(c.SectionNumber)
	}
	return ""
}

// ClassLabel is "SUBJ NBR ITYPE SUFFIX" with blank parts left out.
func (h DefaultHelper) ClassLabel(c *models.Class, o *models.CourseOffering) string {
	var itype string
	if c.Subpart != nil {
		itype = c.Subpart.ItypeAbbv
	}
	return joinNonEmpty(o.SubjectArea, o.CourseNbr, itype, h.ClassSuffix(c, o))
}

// ClassLabelWithTitle appends " - Title" to ClassLabel when the offering has a title.
func (h DefaultHelper) ClassLabelWithTitle(c *models.Class, o *models.CourseOffering) string {
	label := h.ClassLabel(c, o)
	if t := strings.TrimSpace(o.Title); t != "" {
		return label + " - " + t
	}
	return label
}

// ExternalID is the class external id, or the offering external id followed
// by the class suffix.
func (h DefaultHelper) ExternalID(c *models.Class, o *models.CourseOffering) string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	if o.ExternalID == "" {
		return ""
	}
	return o.ExternalID + h.ClassSuffix(c, o)
}

// Credit is the subpart credit. Classes of the parent-most subpart fall back
// to the offering credit.
func (DefaultHelper) Credit(c *models.Class, o *models.CourseOffering) (float64, bool) {
	if c.Subpart == nil {
		return 0, false
	}
	if c.Subpart.Credit != nil {
		return *c.Subpart.Credit, true
	}
	if c.Subpart.IsTopLevel() && o.Credit != nil {
		return *o.Credit, true
	}
	return 0, false
}

// IsGradable reports true for top-level subparts and for subparts marked gradable.
func (DefaultHelper) IsGradable(s *models.Subpart, _ *models.CourseOffering) bool {
	return s.IsTopLevel() || s.Gradable
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
