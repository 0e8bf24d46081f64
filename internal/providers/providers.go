package providers

import (
	"context"
	"time"

	"school-secretary/internal/domain"
)

// AssignmentSource supplies assignment records for one course.
type AssignmentSource interface {
	Name() string
	ListAssignments(ctx context.Context, courseID int64) ([]domain.Assignment, error)
}

// CalendarBackend is the calendar capability the sync engine and the digest
// fetcher depend on. Every call is authenticated with the caller's access token.
type CalendarBackend interface {
	// FindByExternalID returns the id of the event tagged with assignmentID.
	// found is false when no event carries the tag.
	FindByExternalID(ctx context.Context, accessToken string, assignmentID int64) (eventID string, found bool, err error)
	Create(ctx context.Context, accessToken string, ev domain.EventPayload) (eventID string, err error)
	Update(ctx context.Context, accessToken, eventID string, ev domain.EventPayload) error
	// ListWindow returns single occurrences in [from, to) ordered by start time.
	ListWindow(ctx context.Context, accessToken string, from, to time.Time, timeZone string) ([]domain.CalendarEvent, error)
}

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

// Mailer delivers a Message with a single attempt.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
