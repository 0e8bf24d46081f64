package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"school-secretary/internal/domain"
	"school-secretary/internal/tz"
)

func TestWriteAssignmentsCSV(t *testing.T) {
	loc, err := tz.Load("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2026, 10, 20, 6, 59, 0, 0, time.UTC)
	points := 10.5

	records := []domain.Assignment{
		{ID: 1, Title: "Essay\ndraft", DueAt: &due, PointsPossible: &points, URL: "https://c.edu/a/1", CourseID: 42, CourseCode: "ENG", CourseName: "English"},
		{ID: 2, Title: "Reading", CourseID: 42, CourseCode: "ENG", CourseName: "English"},
	}

	var buf bytes.Buffer
	if err := WriteAssignmentsCSV(&buf, records, loc); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("Expected parseable CSV, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(assignmentHeader, ",") {
		t.Errorf("Unexpected header %v", rows[0])
	}

	dated := rows[1]
	if dated[4] != "Essay draft" {
		t.Errorf("Expected title on one line, got %q", dated[4])
	}
	if dated[5] != "2026-10-19T23:59:00-07:00" {
		t.Errorf("Expected due in LA, got %q", dated[5])
	}
	if dated[6] != "10.5" {
		t.Errorf("Expected points 10.5, got %q", dated[6])
	}
	if dated[8] != "upsert" || dated[9] != "[ENG] Essay draft" {
		t.Errorf("Unexpected sync columns %v", dated[8:10])
	}
	if dated[10] != "2026-10-19T22:59:00-07:00" || dated[11] != "2026-10-19T23:59:00-07:00" {
		t.Errorf("Unexpected event window %v", dated[10:])
	}

	undated := rows[2]
	if undated[8] != "skip: no due date" || undated[5] != "" || undated[10] != "" {
		t.Errorf("Expected undated row to be skipped, got %v", undated)
	}
}
