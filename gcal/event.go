package gcal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/perbu/calcat/dateparse"
)

const (
	// EventTypeWorkingLocation marks a location marker rather than a meeting.
	EventTypeWorkingLocation = "workingLocation"
	eventTypeDefault         = "default"
)

// Event is the flat projection of a calendar event this tool works with.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       string
	End         string
	EventType   string
	ColorID     string
}

// IsWorkingLocation reports whether the event must never be recolored.
func (e Event) IsWorkingLocation() bool {
	return e.EventType == EventTypeWorkingLocation
}

// FromAPI normalizes an API event. All-day events carry a date instead of a date-time.
func FromAPI(item *calendar.Event) Event {
	e := Event{
		ID:          item.Id,
		Title:       strings.TrimSpace(item.Summary),
		Description: strings.TrimSpace(item.Description),
		EventType:   item.EventType,
		ColorID:     item.ColorId,
	}
	if e.EventType == "" {
		e.EventType = eventTypeDefault
	}
	e.Start = eventTime(item.Start)
	e.End = eventTime(item.End)
	return e
}

func eventTime(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

// Fetcher retrieves the events of one calendar for a date range.
type Fetcher struct {
	lister     EventLister
	calendarID string
	loc        *time.Location
}

// NewFetcher binds a lister to a calendar and the timezone the range is read in.
func NewFetcher(lister EventLister, calendarID string, loc *time.Location) *Fetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Fetcher{lister: lister, calendarID: calendarID, loc: loc}
}

// Fetch validates the range before any network call, then returns all events
// whose start falls in it, ordered by start time. An empty slice is not an error.
func (f *Fetcher) Fetch(ctx context.Context, rng dateparse.Range) ([]Event, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	timeMin, timeMax := rng.Bounds(f.loc)
	items, err := f.lister.ListEvents(ctx, f.calendarID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rng, err)
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, FromAPI(item))
	}
	return events, nil
}
