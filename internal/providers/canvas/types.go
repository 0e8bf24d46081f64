package canvas

import "time"

type Course struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

type Assignment struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	DueAt          *time.Time `json:"due_at"`
	UnlockAt       *time.Time `json:"unlock_at"`
	PointsPossible *float64   `json:"points_possible"`
	HTMLURL        string     `json:"html_url"`
	CourseID       int64      `json:"course_id"`
}

type AssignmentGroup struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Assignments []Assignment `json:"assignments"`
}
