package digest

import (
	"context"
	"errors"
	"time"

	"school-secretary/internal/domain"
	"school-secretary/internal/providers"
)

// Window is the forward range scanned by a digest run.
const Window = 7 * 24 * time.Hour

// Fetcher pulls a user's calendar events for the digest window.
type Fetcher struct {
	Calendar providers.CalendarBackend
	Now      func() time.Time
}

// FetchWindow lists events from now to now+Window. Failures are returned as
// *domain.FetchError and abort the user's digest.
func (f *Fetcher) FetchWindow(ctx context.Context, accessToken, timeZone string) ([]domain.CalendarEvent, error) {
	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}

	events, err := f.Calendar.ListWindow(ctx, accessToken, now, now.Add(Window), timeZone)
	if err != nil {
		var ferr *domain.FetchError
		if errors.As(err, &ferr) {
			return nil, err
		}
		return nil, &domain.FetchError{Msg: "calendar fetch failed: " + err.Error()}
	}
	return events, nil
}
