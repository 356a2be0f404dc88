// Package colorize applies category colors to calendar events and reverts them.
package colorize

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/perbu/calcat/category"
	"github.com/perbu/calcat/dateparse"
	"github.com/perbu/calcat/gcal"
)

// Outcome is what happened to one row during Apply or Revert.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
	OutcomeFailed
	OutcomeReverted
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeReverted:
		return "reverted"
	case OutcomeUnchanged:
		return "unchanged"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ResultRow is the per-event record of one run.
type ResultRow struct {
	EventID     string
	Title       string
	Description string
	Start       string
	End         string
	EventType   string

	Category    category.Category
	RawCategory string
	ColorID     string
	// PriorColorID is the color before this run touched the event; empty means none was set.
	PriorColorID string
	// Skipped marks working-location events, which are never patched.
	Skipped bool
	// Degraded is set when classification failed and Category is the fallback.
	Degraded bool

	Outcome Outcome
	Reason  string
}

// Classifier assigns a category to an event.
type Classifier interface {
	Classify(ctx context.Context, title, description string) category.Result
}

// Progress is called after each row is processed.
type Progress func(done, total int, row ResultRow)

// Driver runs the classify and write-back loop, one event at a time.
type Driver struct {
	classifier Classifier
	patcher    gcal.ColorPatcher
	calendarID string
	dryRun     bool
	logger     *log.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithDryRun classifies without patching.
func WithDryRun(dry bool) Option {
	return func(d *Driver) { d.dryRun = dry }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// NewDriver returns a Driver writing to calendarID.
func NewDriver(classifier Classifier, patcher gcal.ColorPatcher, calendarID string, opts ...Option) *Driver {
	d := &Driver{
		classifier: classifier,
		patcher:    patcher,
		calendarID: calendarID,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply classifies every event in order and patches its color. A failed patch
// is recorded on the row and the loop continues.
func (d *Driver) Apply(ctx context.Context, events []gcal.Event, progress Progress) []ResultRow {
	rows := make([]ResultRow, 0, len(events))
	for i, ev := range events {
		res := d.classifier.Classify(ctx, ev.Title, ev.Description)
		row := ResultRow{
			EventID:      ev.ID,
			Title:        ev.Title,
			Description:  ev.Description,
			Start:        ev.Start,
			End:          ev.End,
			EventType:    ev.EventType,
			Category:     res.Category,
			RawCategory:  res.Raw,
			ColorID:      category.ColorID(string(res.Category)),
			PriorColorID: ev.ColorID,
			Skipped:      ev.IsWorkingLocation(),
			Degraded:     res.Degraded(),
		}
		if res.Err != nil {
			row.Reason = res.Err.Error()
		}

		switch {
		case row.Skipped:
			row.Outcome = OutcomeSkipped
		case d.dryRun:
			row.Outcome = OutcomePending
		default:
			if err := d.patcher.PatchColor(ctx, d.calendarID, ev.ID, row.ColorID); err != nil {
				d.logger.Warn("color update failed", "event", ev.ID, "title", ev.Title, "err", err)
				row.Outcome = OutcomeFailed
				row.Reason = err.Error()
			} else {
				row.Outcome = OutcomeUpdated
			}
		}

		rows = append(rows, row)
		if progress != nil {
			progress(i+1, len(events), row)
		}
	}
	return rows
}

// Revert restores PriorColorID on every row that has one and was not skipped.
// Rows without a prior color are left alone. It returns new rows; the input
// is not modified.
func (d *Driver) Revert(ctx context.Context, rows []ResultRow, progress Progress) []ResultRow {
	out := make([]ResultRow, len(rows))
	for i, row := range rows {
		row.Reason = ""
		switch {
		case row.Skipped || row.PriorColorID == "":
			row.Outcome = OutcomeUnchanged
		default:
			if err := d.patcher.PatchColor(ctx, d.calendarID, row.EventID, row.PriorColorID); err != nil {
				d.logger.Warn("color revert failed", "event", row.EventID, "title", row.Title, "err", err)
				row.Outcome = OutcomeFailed
				row.Reason = err.Error()
			} else {
				row.Outcome = OutcomeReverted
				row.ColorID = row.PriorColorID
			}
		}
		out[i] = row
		if progress != nil {
			progress(i+1, len(rows), row)
		}
	}
	return out
}

// Summary counts rows per outcome.
type Summary struct {
	Total     int
	Updated   int
	Skipped   int
	Failed    int
	Reverted  int
	Unchanged int
	Degraded  int
}

// Summarize tallies rows.
func Summarize(rows []ResultRow) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Outcome {
		case OutcomeUpdated:
			s.Updated++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		case OutcomeReverted:
			s.Reverted++
		case OutcomeUnchanged:
			s.Unchanged++
		}
		if r.Degraded {
			s.Degraded++
		}
	}
	return s
}

// Run fetches rng and applies colors to everything found. Only a fetch error is
// returned; per-event problems are recorded on the rows.
func Run(ctx context.Context, fetcher *gcal.Fetcher, d *Driver, rng dateparse.Range, progress Progress) ([]ResultRow, error) {
	events, err := fetcher.Fetch(ctx, rng)
	if err != nil {
		return nil, err
	}
	d.logger.Info("fetched events", "range", rng.String(), "count", len(events))
	return d.Apply(ctx, events, progress), nil
}
