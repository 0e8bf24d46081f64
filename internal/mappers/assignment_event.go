package mappers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"school-secretary/internal/domain"
)

const (
	// EventLead is how long before the due instant the calendar block starts.
	EventLead = time.Hour

	sourceTitle = "Canvas Assignment"
)

// AssignmentToEvent builds the calendar payload for a dated assignment.
// The caller must check HasDueDate first.
func AssignmentToEvent(a domain.Assignment, loc *time.Location) domain.EventPayload {
	due := a.DueAt.In(loc)

	return domain.EventPayload{
		Summary:     fmt.Sprintf("[%s] %s", a.CourseCode, a.Title),
		Description: eventDescription(a),
		Start:       due.Add(-EventLead),
		End:         due,
		TimeZone:    loc.String(),
		SourceTitle: sourceTitle,
		SourceURL:   a.URL,
		Private: map[string]string{
			domain.TagAssignmentID: strconv.FormatInt(a.ID, 10),
			domain.TagCourseID:     strconv.FormatInt(a.CourseID, 10),
		},
	}
}

func eventDescription(a domain.Assignment) string {
	lines := []string{fmt.Sprintf("Course: %s - %s", a.CourseCode, a.CourseName)}
	if a.PointsPossible != nil && *a.PointsPossible > 0 {
		lines = append(lines, "Points: "+strconv.FormatFloat(*a.PointsPossible, 'f', -1, 64))
	}
	lines = append(lines, "Link: "+a.URL)

	if a.Description != "" {
		lines = append(lines, "---")
		if desc := StripMarkup(a.Description); desc != "" {
			lines = append(lines, desc)
		}
	}
	return strings.Join(lines, "\n")
}

// StripMarkup drops every <...> span in one pass and trims the result.
// An unterminated '<' keeps the remaining text.
func StripMarkup(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] == '<' {
			if end := strings.IndexByte(s[i:], '>'); end >= 0 {
				i += end + 1
				continue
			}
			b.WriteString(s[i:])
			break
		}
		b.WriteByte(s[i])
		i++
	}
	return strings.TrimSpace(b.String())
}
