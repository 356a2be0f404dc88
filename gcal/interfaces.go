package gcal

import (
	"context"

	"google.golang.org/api/calendar/v3"
)

// EventLister reads events from a calendar.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
}

// ColorPatcher changes the color of a single event.
type ColorPatcher interface {
	PatchColor(ctx context.Context, calendarID, eventID, colorID string) error
}

// CalendarService defines the interface for interacting with Google Calendar.
type CalendarService interface {
	EventLister
	ColorPatcher
}

var _ CalendarService = (*GCalService)(nil)
