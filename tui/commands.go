package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/dateparse"
	"github.com/perbu/calcat/export"
	"github.com/perbu/calcat/gcal"
)

type authDoneMsg struct {
	err error
}

type progressMsg struct {
	done, total int
	title       string
}

type runDoneMsg struct {
	rng     dateparse.Range
	rows    []colorize.ResultRow
	service gcal.CalendarService
	err     error
}

type revertDoneMsg struct {
	rows []colorize.ResultRow
	err  error
}

type savedMsg struct {
	path string
	err  error
}

var saveCSV = export.Save

// listen waits for the next message from a running job.
func listen(ch chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) startRun(rng dateparse.Range) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""
	m.screen = ScreenWorking
	m.task = fmt.Sprintf("Categorizing events %s", rng)
	m.done, m.total, m.current = 0, 0, ""
	ch := make(chan tea.Msg, 1)
	m.progress = ch

	deps, ctx := m.deps, m.ctx
	work := func() tea.Msg {
		defer close(ch)
		ch <- runPipeline(ctx, deps, rng, forward(ch))
		return nil
	}
	return m, tea.Batch(m.spinner.Tick, work, listen(ch))
}

func (m Model) startRevert() (tea.Model, tea.Cmd) {
	sess, err := m.deps.Sessions.Get(m.sessionID, m.deps.Now())
	if err != nil {
		m.err = fmt.Errorf("nothing to revert: %w", err)
		return m, nil
	}
	if sess.Reverted {
		m.notice = "Colors of this run were already reverted."
		return m, nil
	}
	if m.service == nil {
		m.err = fmt.Errorf("nothing to revert: no calendar connection")
		return m, nil
	}

	m.err = nil
	m.notice = ""
	m.screen = ScreenWorking
	m.task = "Reverting colors"
	m.done, m.total, m.current = 0, len(sess.Rows), ""
	ch := make(chan tea.Msg, 1)
	m.progress = ch

	deps, ctx, svc, rows := m.deps, m.ctx, m.service, sess.Rows
	work := func() tea.Msg {
		defer close(ch)
		ch <- revertPipeline(ctx, deps, svc, rows, forward(ch))
		return nil
	}
	return m, tea.Batch(m.spinner.Tick, work, listen(ch))
}

func forward(ch chan<- tea.Msg) colorize.Progress {
	return func(done, total int, row colorize.ResultRow) {
		ch <- progressMsg{done: done, total: total, title: row.Title}
	}
}

// runPipeline authorizes, fetches, classifies and writes back. It is the whole
// "fetch and categorize" action.
func runPipeline(ctx context.Context, deps Deps, rng dateparse.Range, progress colorize.Progress) runDoneMsg {
	started := time.Now()
	ts, err := deps.Auth.TokenSource(ctx)
	if err != nil {
		return runDoneMsg{err: err}
	}
	svc, err := deps.NewService(ctx, ts)
	if err != nil {
		return runDoneMsg{err: err}
	}
	loc, err := deps.Config.Location()
	if err != nil {
		return runDoneMsg{err: err}
	}

	driver := colorize.NewDriver(deps.Classifier, svc, deps.Config.CalendarID, colorize.WithLogger(deps.Logger))
	rows, err := colorize.Run(ctx, gcal.NewFetcher(svc, deps.Config.CalendarID, loc), driver, rng, progress)
	if err != nil {
		deps.Logger.Error("fetch failed", "range", rng.String(), "err", err)
		return runDoneMsg{err: err}
	}
	s := colorize.Summarize(rows)
	deps.Logger.Info("run complete", "events", s.Total, "updated", s.Updated, "skipped", s.Skipped,
		"failed", s.Failed, "degraded", s.Degraded, "elapsed", time.Since(started))
	return runDoneMsg{rng: rng, rows: rows, service: svc}
}

func revertPipeline(ctx context.Context, deps Deps, svc gcal.CalendarService, rows []colorize.ResultRow, progress colorize.Progress) revertDoneMsg {
	driver := colorize.NewDriver(deps.Classifier, svc, deps.Config.CalendarID, colorize.WithLogger(deps.Logger))
	out := driver.Revert(ctx, rows, progress)
	s := colorize.Summarize(out)
	deps.Logger.Info("revert complete", "reverted", s.Reverted, "unchanged", s.Unchanged, "failed", s.Failed)
	return revertDoneMsg{rows: out}
}
