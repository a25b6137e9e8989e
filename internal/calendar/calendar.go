// Package calendar builds Google Calendar "add event" links. No OAuth is
// involved: the link opens the calendar UI with the event pre-filled.
package calendar

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/apptrack/internal/storage"
)

const (
	baseURL         = "https://calendar.google.com/calendar/render"
	dateLayout      = "20060102T150405"
	defaultDuration = time.Hour
)

type Event struct {
	Title    string
	Start    time.Time
	End      time.Time // zero means Start + 1h
	Details  string
	Location string
}

// Link returns the calendar URL for e. Times are written as wall clock
// without a zone, so the calendar shows them in the viewer's zone.
func Link(e Event) string {
	end := e.End
	if end.IsZero() {
		end = e.Start.Add(defaultDuration)
	}

	params := [][2]string{
		{"action", "TEMPLATE"},
		{"text", e.Title},
		{"dates", e.Start.Format(dateLayout) + "/" + end.Format(dateLayout)},
		{"details", e.Details},
		{"location", e.Location},
	}
	var parts []string
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+escape(p[1]))
	}
	return baseURL + "?" + strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// InterviewEvent describes the interview of app as a calendar event. An
// interview without a time starts at 09:00.
func InterviewEvent(app storage.Application, iv storage.Interview, loc *time.Location) (Event, error) {
	start, err := iv.Start(loc)
	if err != nil {
		return Event{}, fmt.Errorf("interview start: %w", err)
	}

	location := app.Location
	if location == "" {
		location = "N/A"
	}
	venue := iv.Venue
	if venue == "" {
		venue = "Online"
	}

	return Event{
		Title: fmt.Sprintf("Interview: %s - %s", app.Company, app.Role),
		Start: start,
		Details: fmt.Sprintf("Job Application Interview\n\nCompany: %s\nRole: %s\nLocation: %s",
			app.Company, app.Role, location),
		Location: venue,
	}, nil
}

// InterviewLink is InterviewEvent followed by Link.
func InterviewLink(app storage.Application, iv storage.Interview, loc *time.Location) (string, error) {
	e, err := InterviewEvent(app, iv, loc)
	if err != nil {
		return "", err
	}
	return Link(e), nil
}
