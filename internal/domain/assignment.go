package domain

import "time"

// Assignment is the canonical representation of an upstream LMS assignment.
// Record sources map into this model; the calendar sync maps from it.
type Assignment struct {
	ID             int64 // upstream id, stable across fetches
	Title          string
	DueAt          *time.Time // nil: not synced
	UnlockAt       *time.Time
	PointsPossible *float64
	URL            string
	Description    string // rich text, may be empty

	CourseID   int64
	CourseName string
	CourseCode string
}

// HasDueDate reports whether the assignment takes part in calendar sync.
func (a Assignment) HasDueDate() bool {
	return a.DueAt != nil && !a.DueAt.IsZero()
}
