package domain

import "time"

// Private tag keys attached to every event this system creates.
const (
	TagAssignmentID = "canvasAssignmentId"
	TagCourseID     = "canvasCourseId"
)

// EventPayload is the calendar event derived from an Assignment. Never persisted.
type EventPayload struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string

	SourceTitle string
	SourceURL   string

	// Private is the only correlation key between an assignment and its event.
	Private map[string]string
}

// CalendarEvent is an event as returned by the calendar provider.
type CalendarEvent struct {
	ID      string
	Summary string

	// StartDateTime is RFC3339 for timed events; StartDate is YYYY-MM-DD for all-day ones.
	StartDateTime string
	StartDate     string

	SourceURL string
	Private   map[string]string
}

// AssignmentID returns the private assignment tag, if present.
func (e CalendarEvent) AssignmentID() (string, bool) {
	if e.Private == nil {
		return "", false
	}
	v, ok := e.Private[TagAssignmentID]
	return v, ok
}

// HasStart reports whether the provider returned any start value.
func (e CalendarEvent) HasStart() bool {
	return e.StartDateTime != "" || e.StartDate != ""
}
