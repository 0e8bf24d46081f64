package digest

import (
	"time"

	"school-secretary/internal/domain"
)

const dateLayout = "2006-01-02"

// BucketSet splits a digest into events on the local today and the rest of the window.
type BucketSet struct {
	Today    []domain.CalendarEvent
	ThisWeek []domain.CalendarEvent
}

// Bucket keeps only events carrying the assignment tag and places each by
// its local date in loc. Events without a usable start are dropped. Provider
// order is preserved within each bucket.
func Bucket(events []domain.CalendarEvent, loc *time.Location, now time.Time) BucketSet {
	today := now.In(loc).Format(dateLayout)

	var set BucketSet
	for _, ev := range events {
		if _, ok := ev.AssignmentID(); !ok {
			continue
		}
		date, ok := localDate(ev, loc)
		if !ok {
			continue
		}
		if date == today {
			set.Today = append(set.Today, ev)
		} else {
			set.ThisWeek = append(set.ThisWeek, ev)
		}
	}
	return set
}

// localDate returns the event's YYYY-MM-DD in loc. All-day events already
// carry their calendar date.
func localDate(ev domain.CalendarEvent, loc *time.Location) (string, bool) {
	if ev.StartDateTime != "" {
		t, err := time.Parse(time.RFC3339, ev.StartDateTime)
		if err != nil {
			return "", false
		}
		return t.In(loc).Format(dateLayout), true
	}
	if ev.StartDate != "" {
		if _, err := time.ParseInLocation(dateLayout, ev.StartDate, loc); err != nil {
			return "", false
		}
		return ev.StartDate, true
	}
	return "", false
}

// startIn returns the event's start in loc; all-day events start at local midnight.
func startIn(ev domain.CalendarEvent, loc *time.Location) (t time.Time, allDay bool, ok bool) {
	if ev.StartDateTime != "" {
		t, err := time.Parse(time.RFC3339, ev.StartDateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return t.In(loc), false, true
	}
	if ev.StartDate != "" {
		t, err := time.ParseInLocation(dateLayout, ev.StartDate, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}
	return time.Time{}, false, false
}
