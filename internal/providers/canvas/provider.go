package canvas

import (
	"context"

	"school-secretary/internal/domain"
)

// Provider adapts the Canvas client into providers.AssignmentSource.
type Provider struct {
	C *Client
}

func (p Provider) Name() string { return "canvas" }

func (p Provider) ListAssignments(ctx context.Context, courseID int64) ([]domain.Assignment, error) {
	course, err := p.C.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	raw, err := p.C.ListAssignments(ctx, courseID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Assignment, 0, len(raw))
	for _, a := range raw {
		out = append(out, toDomain(a, course))
	}
	return out, nil
}

func toDomain(a Assignment, c Course) domain.Assignment {
	desc := ""
	if a.Description != nil {
		desc = *a.Description
	}
	return domain.Assignment{
		ID:             a.ID,
		Title:          a.Name,
		DueAt:          a.DueAt,
		UnlockAt:       a.UnlockAt,
		PointsPossible: a.PointsPossible,
		URL:            a.HTMLURL,
		Description:    desc,
		CourseID:       c.ID,
		CourseName:     c.Name,
		CourseCode:     c.CourseCode,
	}
}
