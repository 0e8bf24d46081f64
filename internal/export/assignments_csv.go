package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"school-secretary/internal/domain"
	"school-secretary/internal/mappers"
)

// Keep header order stable; downstream spreadsheets key on it.
var assignmentHeader = []string{
	"ASSIGNMENT_ID",
	"COURSE_ID",
	"COURSE_CODE",
	"COURSE_NAME",
	"TITLE",
	"DUE_AT",
	"POINTS",
	"URL",
	"SYNC",
	"EVENT_SUMMARY",
	"EVENT_START",
	"EVENT_END",
}

// WriteAssignmentsCSV writes one row per assignment with the calendar event
// it would produce in loc. Undated assignments are marked as skipped.
func WriteAssignmentsCSV(w io.Writer, records []domain.Assignment, loc *time.Location) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(assignmentHeader); err != nil {
		return err
	}
	for _, a := range records {
		if err := cw.Write(toRow(a, loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRow(a domain.Assignment, loc *time.Location) []string {
	points := ""
	if a.PointsPossible != nil {
		points = strconv.FormatFloat(*a.PointsPossible, 'f', -1, 64)
	}

	row := []string{
		strconv.FormatInt(a.ID, 10),
		strconv.FormatInt(a.CourseID, 10),
		a.CourseCode,
		a.CourseName,
		oneLine(a.Title),
		"",
		points,
		a.URL,
		"skip: no due date",
		"",
		"",
		"",
	}
	if !a.HasDueDate() {
		return row
	}

	ev := mappers.AssignmentToEvent(a, loc)
	row[5] = a.DueAt.In(loc).Format(time.RFC3339)
	row[8] = "upsert"
	row[9] = oneLine(ev.Summary)
	row[10] = ev.Start.Format(time.RFC3339)
	row[11] = ev.End.Format(time.RFC3339)
	return row
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
