package gcal

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// maxResults is the Google Calendar API page size limit.
const maxResults = 250

// GCalService interacts with the Google Calendar API.
type GCalService struct {
	service *calendar.Service
	logger  *log.Logger
}

// NewGCalService creates a service authorized by ts.
func NewGCalService(ctx context.Context, ts oauth2.TokenSource, logger *log.Logger) (*GCalService, error) {
	return New(ctx, logger, option.WithTokenSource(ts))
}

// New creates a service from raw client options.
func New(ctx context.Context, logger *log.Logger, opts ...option.ClientOption) (*GCalService, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GCalService{service: srv, logger: logger}, nil
}

// ListEvents retrieves every expanded event starting in [timeMin, timeMax],
// following pagination until the last page.
func (g *GCalService) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	call := g.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin).
		TimeMax(timeMax).
		OrderBy("startTime").
		MaxResults(maxResults)

	var items []*calendar.Event
	page := 0
	err := call.Pages(ctx, func(events *calendar.Events) error {
		page++
		g.logger.Debug("fetched events page", "page", page, "count", len(events.Items))
		items = append(items, events.Items...)
		return nil
	})
	if err != nil {
		g.logAPIError("list events", err)
		return nil, fmt.Errorf("retrieving events: %w", err)
	}
	return items, nil
}

// PatchColor sets only the colorId of one event.
func (g *GCalService) PatchColor(ctx context.Context, calendarID, eventID, colorID string) error {
	_, err := g.service.Events.Patch(calendarID, eventID, &calendar.Event{ColorId: colorID}).
		Context(ctx).
		Do()
	if err != nil {
		g.logAPIError("patch event", err, "event", eventID)
		return fmt.Errorf("patching event %s: %w", eventID, err)
	}
	return nil
}

func (g *GCalService) logAPIError(op string, err error, keyvals ...interface{}) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return
	}
	keyvals = append(keyvals, "code", gerr.Code, "message", gerr.Message)
	g.logger.Warn(op+" failed", keyvals...)
}
