package models

// CourseOffering is the parent of every subpart and class of a course.
type CourseOffering struct {
	ID          int64
	SubjectArea string
	CourseNbr   string
	Title       string
	ExternalID  string
	// Credit is the offering-level credit in hours; nil when not set.
	Credit   *float64
	Subparts []*Subpart
}

// Subpart is one instructional type (Lec, Lab, Rec) within an offering's
// configuration. Child subparts reference their parent.
type Subpart struct {
	ID         int64
	OfferingID int64
	ParentID   *int64
	ItypeAbbv  string
	Credit     *float64
	// Gradable marks a child subpart as graded.
	Gradable bool
}

// IsTopLevel reports whether the subpart has no parent.
func (s *Subpart) IsTopLevel() bool {
	return s.ParentID == nil
}

// Class is a scheduled section of a subpart.
type Class struct {
	ID            int64
	Subpart       *Subpart
	ClassSuffix   string
	SectionNumber int
	ExternalID    string
}
