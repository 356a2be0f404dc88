package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/dateparse"
)

// formatTimeInfo renders the start and end of a row. All-day events carry a
// bare date and are shown as such.
func formatTimeInfo(start, end string, loc *time.Location) string {
	if start == "" {
		return ""
	}
	if len(start) == len("2006-01-02") {
		return color.New(color.FgGreen).SprintFunc()("(all day)")
	}

	startTime, err1 := time.Parse(time.RFC3339, start)
	endTime, err2 := time.Parse(time.RFC3339, end)
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("(%s --> %s)", extractTimeFromISO(start), extractTimeFromISO(end))
	}
	if loc != nil {
		startTime, endTime = startTime.In(loc), endTime.In(loc)
	}
	highlight := color.New(color.FgGreen).SprintFunc()
	return fmt.Sprintf("%s [%s --> %s]", startTime.Format("Mon Jan 2"),
		highlight(startTime.Format("15:04")), highlight(endTime.Format("15:04")))
}

// extractTimeFromISO converts ISO time to "15:04" format.
func extractTimeFromISO(isoDateTime string) string {
	t, err := time.Parse(time.RFC3339, isoDateTime)
	if err != nil {
		return "[error parsing time]"
	}
	return t.Format("15:04")
}

func outcomeColor(o colorize.Outcome) func(a ...interface{}) string {
	switch o {
	case colorize.OutcomeUpdated, colorize.OutcomeReverted:
		return color.New(color.FgGreen).SprintFunc()
	case colorize.OutcomeFailed:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

// printRows writes the outcome of a batch run.
func printRows(w io.Writer, rng dateparse.Range, rows []colorize.ResultRow, loc *time.Location) {
	headerColor := color.New(color.FgCyan, color.Bold).SprintFunc()
	warnColor := color.New(color.FgRed, color.Bold).SprintFunc()
	subtle := color.New(color.FgHiBlack).SprintFunc()
	summaryColor := color.New(color.FgYellow, color.Bold).SprintFunc()

	_, _ = fmt.Fprintf(w, "Categorized events %s (%d days) [tz: %s]\n",
		headerColor(rng.String()), rng.Days(), headerColor(loc.String()))
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, warnColor("No events found in this date range."))
		return
	}

	for _, r := range rows {
		status := r.Outcome.String()
		if r.Skipped {
			status = "skipped"
		}
		_, _ = fmt.Fprintf(w, " - %s %s %s %s\n",
			summaryColor(r.Title),
			formatTimeInfo(r.Start, r.End, loc),
			headerColor(string(r.Category)),
			outcomeColor(r.Outcome)("["+status+"]"),
		)
		if r.Reason != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", subtle(r.Reason))
		}
	}

	s := colorize.Summarize(rows)
	_, _ = fmt.Fprintf(w, "%d events: %d updated, %d skipped, %d failed, %d pending\n",
		s.Total, s.Updated, s.Skipped, s.Failed, s.Total-s.Updated-s.Skipped-s.Failed-s.Unchanged-s.Reverted)
	if s.Skipped > 0 {
		_, _ = fmt.Fprintln(w, subtle(fmt.Sprintf(
			"Skipped %d working location event(s) from being updated in Calendar. They are still categorized in the export.", s.Skipped)))
	}
	if s.Degraded > 0 {
		_, _ = fmt.Fprintln(w, warnColor(fmt.Sprintf("%d event(s) fell back to Other after a model error.", s.Degraded)))
	}
}
