package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"school-secretary/internal/domain"
	"school-secretary/internal/tz"
)

// fakeCalendar stores events in memory keyed by id and answers tag lookups.
type fakeCalendar struct {
	events  map[string]domain.EventPayload
	nextID  int
	creates int
	updates int
	lookups int

	failCreate map[string]bool // by summary
	failLookup bool
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]domain.EventPayload{}, failCreate: map[string]bool{}}
}

func (f *fakeCalendar) FindByExternalID(_ context.Context, _ string, assignmentID int64) (string, bool, error) {
	f.lookups++
	if f.failLookup {
		return "", false, &domain.ProviderError{Status: 500, Msg: "Calendar API error: backend"}
	}
	want := fmt.Sprint(assignmentID)
	for id, ev := range f.events {
		if ev.Private[domain.TagAssignmentID] == want {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeCalendar) Create(_ context.Context, _ string, ev domain.EventPayload) (string, error) {
	if f.failCreate[ev.Summary] {
		return "", &domain.ProviderError{Status: 400, Msg: "Calendar API error: Bad Request"}
	}
	f.creates++
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events[id] = ev
	return id, nil
}

func (f *fakeCalendar) Update(_ context.Context, _ string, eventID string, ev domain.EventPayload) error {
	f.updates++
	f.events[eventID] = ev
	return nil
}

func (f *fakeCalendar) ListWindow(context.Context, string, time.Time, time.Time, string) ([]domain.CalendarEvent, error) {
	return nil, nil
}

func laAssignments(t *testing.T) []domain.Assignment {
	t.Helper()
	loc, err := tz.Load("America/Los_Angeles")
	require.NoError(t, err)

	today := time.Date(2026, 10, 19, 23, 59, 0, 0, loc)
	tomorrow := time.Date(2026, 10, 20, 9, 0, 0, 0, loc)
	return []domain.Assignment{
		{ID: 1, Title: "Essay", DueAt: &today, CourseID: 42, CourseCode: "ENG"},
		{ID: 2, Title: "Problem Set", DueAt: &tomorrow, CourseID: 42, CourseCode: "ENG"},
		{ID: 3, Title: "Reading", CourseID: 42, CourseCode: "ENG"},
	}
}

func newTestEngine(cal *fakeCalendar) (*Engine, *int) {
	sleeps := 0
	e := NewEngine(cal, DefaultDelay, nil)
	e.Sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}
	return e, &sleeps
}

func TestSyncSkipsUndatedAssignments(t *testing.T) {
	cal := newFakeCalendar()
	e, sleeps := newTestEngine(cal)

	res, err := e.SyncAssignments(context.Background(), "tok", laAssignments(t), "America/Los_Angeles")
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 0, res.FailedCount)
	require.Empty(t, res.Errors)
	require.Len(t, cal.events, 2)
	require.Equal(t, 2, cal.creates)
	require.Equal(t, 1, *sleeps)
}

func TestSyncIsIdempotent(t *testing.T) {
	cal := newFakeCalendar()
	e, _ := newTestEngine(cal)
	records := laAssignments(t)

	_, err := e.SyncAssignments(context.Background(), "tok", records, "America/Los_Angeles")
	require.NoError(t, err)
	require.Equal(t, 2, cal.creates)

	res, err := e.SyncAssignments(context.Background(), "tok", records, "America/Los_Angeles")
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 2, cal.creates, "second run must not create")
	require.Equal(t, 2, cal.updates)
	require.Len(t, cal.events, 2)
}

func TestSyncContinuesPastFailedRecord(t *testing.T) {
	loc, err := tz.Load("America/Los_Angeles")
	require.NoError(t, err)
	due := time.Date(2026, 10, 21, 12, 0, 0, 0, loc)

	records := []domain.Assignment{
		{ID: 1, Title: "One", DueAt: &due, CourseCode: "X"},
		{ID: 2, Title: "Two", DueAt: &due, CourseCode: "X"},
		{ID: 3, Title: "Three", DueAt: &due, CourseCode: "X"},
	}

	cal := newFakeCalendar()
	cal.failCreate["[X] Two"] = true
	e, _ := newTestEngine(cal)

	res, err := e.SyncAssignments(context.Background(), "tok", records, "America/Los_Angeles")
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.FailedCount)
	require.Equal(t, []string{"Two: Calendar API error: Bad Request (400)"}, res.Errors)
	require.Len(t, cal.events, 2)
}

func TestSyncLookupFailureFallsBackToCreate(t *testing.T) {
	cal := newFakeCalendar()
	cal.failLookup = true
	e, _ := newTestEngine(cal)

	res, err := e.SyncAssignments(context.Background(), "tok", laAssignments(t), "America/Los_Angeles")
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 2, cal.creates)
}

func TestSyncValidatesBeforeNetwork(t *testing.T) {
	due := time.Now()
	testCases := []struct {
		name    string
		token   string
		zone    string
		records []domain.Assignment
		field   string
	}{
		{"missing token", "", "UTC", nil, "access_token"},
		{"bad zone", "tok", "Mars/Olympus", nil, "timezone"},
		{"dated record without id", "tok", "UTC", []domain.Assignment{{Title: "x", DueAt: &due}}, "assignment id"},
	}

	for _, tc := range testCases {
		cal := newFakeCalendar()
		e, _ := newTestEngine(cal)
		_, err := e.SyncAssignments(context.Background(), tc.token, tc.records, tc.zone)

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Errorf("%s: expected field %q, got %q", tc.name, tc.field, verr.Field)
		}
		if cal.lookups+cal.creates+cal.updates != 0 {
			t.Errorf("%s: expected no calendar calls", tc.name)
		}
	}
}

func TestSyncUndatedRecordWithoutIDIsStillSkipped(t *testing.T) {
	cal := newFakeCalendar()
	e, _ := newTestEngine(cal)

	res, err := e.SyncAssignments(context.Background(), "tok", []domain.Assignment{{Title: "draft"}}, "UTC")
	require.NoError(t, err)
	require.Equal(t, Result{Errors: []string{}}, res)
}

func TestSyncStopsOnCancelledContext(t *testing.T) {
	cal := newFakeCalendar()
	e := NewEngine(cal, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.SyncAssignments(ctx, "tok", laAssignments(t), "America/Los_Angeles")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, res.SuccessCount)
}
