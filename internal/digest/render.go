package digest

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"school-secretary/internal/domain"
)

var rule = strings.Repeat("━", 20)

const (
	nothingToday    = "Nothing due today — enjoy your day! 🎉"
	nothingThisWeek = "Nothing else this week."
)

// Render builds the plaintext digest body. Times are shown in loc.
func Render(today, thisWeek []domain.CalendarEvent, loc *time.Location, unsubscribeURL string) string {
	var b strings.Builder

	b.WriteString("Good morning!\n\n")

	section(&b, "TODAY")
	if len(today) == 0 {
		b.WriteString(nothingToday + "\n")
	}
	for _, ev := range today {
		fmt.Fprintf(&b, "⚠️  %s — due %s\n", ev.Summary, timeOfDay(ev, loc))
		if ev.SourceURL != "" {
			fmt.Fprintf(&b, "   → %s\n", ev.SourceURL)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	section(&b, "THIS WEEK")
	if len(thisWeek) == 0 {
		b.WriteString(nothingThisWeek + "\n")
	}
	for _, ev := range thisWeek {
		fmt.Fprintf(&b, "%s · %s\n", shortDay(ev, loc), ev.Summary)
	}

	b.WriteString("\n" + rule + "\n\n")
	b.WriteString("Have a focused day.\n\n")
	b.WriteString("—school-secretary\n\n")
	b.WriteString("Unsubscribe: " + unsubscribeURL)
	return b.String()
}

// Subject is the digest subject line for the run's local day.
func Subject(now time.Time, loc *time.Location) string {
	return "📅 Your " + now.In(loc).Format("Monday, Jan 2")
}

// UnsubscribeURL points at the public unsubscribe endpoint for userID.
func UnsubscribeURL(publicBaseURL, userID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/unsubscribe?id=" + url.QueryEscape(userID)
}

func section(b *strings.Builder, title string) {
	b.WriteString(rule + "\n" + title + "\n" + rule + "\n\n")
}

func timeOfDay(ev domain.CalendarEvent, loc *time.Location) string {
	t, allDay, ok := startIn(ev, loc)
	if !ok {
		return "time unknown"
	}
	if allDay {
		return "all day"
	}
	return t.Format("3:04 PM")
}

func shortDay(ev domain.CalendarEvent, loc *time.Location) string {
	t, _, ok := startIn(ev, loc)
	if !ok {
		return "?"
	}
	return t.Format("Mon, Jan 2")
}
