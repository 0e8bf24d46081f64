package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"school-secretary/internal/domain"
	"school-secretary/internal/httpx"
)

const calendarID = "primary"

// Backend implements providers.CalendarBackend against Google Calendar.
// A service is built per call because every call carries its own user's token.
type Backend struct {
	// Endpoint overrides the API base URL; empty means Google's default.
	Endpoint string
	HTTP     *http.Client
}

func New(endpoint string, timeout time.Duration) *Backend {
	return &Backend{Endpoint: endpoint, HTTP: httpx.NewClient(timeout)}
}

func (b *Backend) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	if b.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTP)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if b.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(b.Endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: create calendar service: %w", err)
	}
	return svc, nil
}

// FindByExternalID looks up the event carrying the private assignment tag.
func (b *Backend) FindByExternalID(ctx context.Context, accessToken string, assignmentID int64) (string, bool, error) {
	svc, err := b.service(ctx, accessToken)
	if err != nil {
		return "", false, err
	}
	res, err := svc.Events.List(calendarID).
		PrivateExtendedProperty(domain.TagAssignmentID + "=" + strconv.FormatInt(assignmentID, 10)).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, providerError(err)
	}
	if len(res.Items) == 0 {
		return "", false, nil
	}
	return res.Items[0].Id, true, nil
}

func (b *Backend) Create(ctx context.Context, accessToken string, ev domain.EventPayload) (string, error) {
	svc, err := b.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, toCalendarEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", providerError(err)
	}
	return created.Id, nil
}

func (b *Backend) Update(ctx context.Context, accessToken, eventID string, ev domain.EventPayload) error {
	svc, err := b.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Update(calendarID, eventID, toCalendarEvent(ev)).Context(ctx).Do(); err != nil {
		return providerError(err)
	}
	return nil
}

// ListWindow returns expanded single occurrences in [from, to), ascending by start.
func (b *Backend) ListWindow(ctx context.Context, accessToken string, from, to time.Time, timeZone string) ([]domain.CalendarEvent, error) {
	svc, err := b.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		TimeZone(timeZone)

	var out []domain.CalendarEvent
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			out = append(out, fromCalendarEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, fetchError(err)
	}
	return out, nil
}

func toCalendarEvent(ev domain.EventPayload) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}
	if ev.SourceURL != "" {
		out.Source = &calendar.EventSource{Title: ev.SourceTitle, Url: ev.SourceURL}
	}
	if len(ev.Private) > 0 {
		out.ExtendedProperties = &calendar.EventExtendedProperties{Private: ev.Private}
	}
	return out
}

func fromCalendarEvent(item *calendar.Event) domain.CalendarEvent {
	out := domain.CalendarEvent{ID: item.Id, Summary: item.Summary}
	if item.Start != nil {
		out.StartDateTime = item.Start.DateTime
		out.StartDate = item.Start.Date
	}
	if item.Source != nil {
		out.SourceURL = item.Source.Url
	}
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		out.Private = item.ExtendedProperties.Private
	}
	return out
}

func providerError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &domain.ProviderError{Status: gerr.Code, Body: gerr.Body, Msg: "Calendar API error: " + msg}
	}
	return &domain.ProviderError{Msg: "Calendar API error: " + err.Error()}
}

func fetchError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &domain.FetchError{Status: gerr.Code, Body: gerr.Body, Msg: "calendar fetch failed"}
	}
	return &domain.FetchError{Msg: "calendar fetch failed: " + err.Error()}
}
