package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ghuser/timetable/pkg/database"
	coursedomain "github.com/ghuser/timetable/services/course/domain"
	"github.com/ghuser/timetable/services/course/domain/models"
)

const (
	getClassStmt = `SELECT c.id, c.class_suffix, c.section_number, c.external_id,
       s.id, s.offering_id, s.parent_id, s.itype_abbv, s.credit, s.gradable,
       o.id, o.subject_area, o.course_nbr, o.title, o.external_id, o.credit
FROM class_ c
JOIN scheduling_subpart s ON s.id = c.subpart_id
JOIN course_offering o ON o.id = s.offering_id
WHERE c.id = $1`

	offeringsStmt = `SELECT id, subject_area, course_nbr, title, external_id, credit
FROM course_offering WHERE id = ANY($1) ORDER BY subject_area, course_nbr`

	subpartsStmt = `SELECT id, offering_id, parent_id, itype_abbv, credit, gradable
FROM scheduling_subpart WHERE offering_id = ANY($1) ORDER BY offering_id, id`
)

// ClassRepository implements repositories.ClassRepository against PostgreSQL.
type ClassRepository struct {
	factory *database.Factory
}

// NewClassRepository returns a ClassRepository reading through f.
func NewClassRepository(f *database.Factory) *ClassRepository {
	return &ClassRepository{factory: f}
}

// GetClass loads a class with its subpart and offering.
func (r *ClassRepository) GetClass(ctx context.Context, id int64) (*models.Class, *models.CourseOffering, error) {
	q, err := r.factory.QuerierFromCtx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("query class: %w", err)
	}

	var (
		c             models.Class
		s             models.Subpart
		o             models.CourseOffering
		suffix, extID sql.NullString
		section       sql.NullInt64
		parent        sql.NullInt64
		subCredit     sql.NullFloat64
		gradable      sql.NullBool
		title, oExtID sql.NullString
		oCredit       sql.NullFloat64
	)
	err = q.QueryRowContext(ctx, getClassStmt, id).Scan(
		&c.ID, &suffix, &section, &extID,
		&s.ID, &s.OfferingID, &parent, &s.ItypeAbbv, &subCredit, &gradable,
		&o.ID, &o.SubjectArea, &o.CourseNbr, &title, &oExtID, &oCredit,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, coursedomain.ErrClassNotFound
		}
		return nil, nil, fmt.Errorf("query class: %w", err)
	}

	c.ClassSuffix, c.SectionNumber, c.ExternalID = suffix.String, int(section.Int64), extID.String
	s.ParentID, s.Credit, s.Gradable = nullInt(parent), nullFloat(subCredit), gradable.Bool
	o.Title, o.ExternalID, o.Credit = title.String, oExtID.String, nullFloat(oCredit)
	c.Subpart = &s
	o.Subparts = []*models.Subpart{&s}
	return &c, &o, nil
}

// OfferingsWithSubparts loads offerings and attaches their subparts.
func (r *ClassRepository) OfferingsWithSubparts(ctx context.Context, ids []int64) ([]*models.CourseOffering, error) {
	q, err := r.factory.QuerierFromCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("query offerings: %w", err)
	}
	return loadOfferings(ctx, q, ids)
}

// loadOfferings reads offerings ids and attaches their subparts.
func loadOfferings(ctx context.Context, q database.Querier, ids []int64) ([]*models.CourseOffering, error) {
	offerings, err := queryOfferings(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	subparts, err := querySubparts(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.CourseOffering, len(offerings))
	for _, o := range offerings {
		byID[o.ID] = o
	}
	for _, s := range subparts {
		if o, ok := byID[s.OfferingID]; ok {
			o.Subparts = append(o.Subparts, s)
		}
	}
	return offerings, nil
}

func queryOfferings(ctx context.Context, q database.Querier, ids []int64) ([]*models.CourseOffering, error) {
	rows, err := q.QueryContext(ctx, offeringsStmt, ids)
	if err != nil {
		return nil, fmt.Errorf("query offerings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*models.CourseOffering
	for rows.Next() {
		var (
			o            models.CourseOffering
			title, extID sql.NullString
			credit       sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &o.SubjectArea, &o.CourseNbr, &title, &extID, &credit); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		o.Title, o.ExternalID, o.Credit = title.String, extID.String, nullFloat(credit)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan offerings: %w", err)
	}
	return out, nil
}

func querySubparts(ctx context.Context, q database.Querier, offeringIDs []int64) ([]*models.Subpart, error) {
	rows, err := q.QueryContext(ctx, subpartsStmt, offeringIDs)
	if err != nil {
		return nil, fmt.Errorf("query subparts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*models.Subpart
	for rows.Next() {
		var (
			s        models.Subpart
			parent   sql.NullInt64
			credit   sql.NullFloat64
			gradable sql.NullBool
		)
		if err := rows.Scan(&s.ID, &s.OfferingID, &parent, &s.ItypeAbbv, &credit, &gradable); err != nil {
			return nil, fmt.Errorf("scan subpart: %w", err)
		}
		s.ParentID, s.Credit, s.Gradable = nullInt(parent), nullFloat(credit), gradable.Bool
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan subparts: %w", err)
	}
	return out, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
