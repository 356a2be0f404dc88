// Package tui is the interactive front end: authorize, pick a date range,
// watch events get categorized, then export or revert.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/config"
	"github.com/perbu/calcat/dateparse"
	"github.com/perbu/calcat/gcal"
	"github.com/perbu/calcat/session"
)

// Screen is the current TUI view.
type Screen int

const (
	ScreenAuth Screen = iota
	ScreenRange
	ScreenWorking
	ScreenResults
)

// Authorizer is the part of gcal.Authenticator the TUI drives.
type Authorizer interface {
	State() gcal.State
	AuthCodeURL() string
	Exchange(ctx context.Context, input string) error
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// ServiceFactory builds a calendar client from an authorized token source.
type ServiceFactory func(ctx context.Context, ts oauth2.TokenSource) (gcal.CalendarService, error)

// Deps are the collaborators of the TUI, built once in main.
type Deps struct {
	Config     config.Config
	Auth       Authorizer
	NewService ServiceFactory
	Classifier colorize.Classifier
	Sessions   *session.Store
	Logger     *log.Logger
	Now        func() time.Time
}

// Model is the main bubbletea model
type Model struct {
	deps Deps
	ctx  context.Context

	screen Screen

	// auth
	authURL   string
	codeInput textinput.Model

	// range
	inputs     []textinput.Model
	focusIndex int

	// working
	spinner  spinner.Model
	progress chan tea.Msg
	done     int
	total    int
	current  string
	task     string

	// results
	service   gcal.CalendarService
	sessionID uuid.UUID
	rows      []colorize.ResultRow
	table     table.Model
	notice    string

	err    error
	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}

	code := textinput.New()
	code.Placeholder = "paste the code or the whole redirect URL"
	code.Width = 60

	rng := dateparse.Default(localNow(deps))
	start := textinput.New()
	start.Prompt = "Start date: "
	start.Placeholder = "YYYY-MM-DD"
	start.SetValue(rng.Start.Format("2006-01-02"))
	end := textinput.New()
	end.Prompt = "End date:   "
	end.Placeholder = "YYYY-MM-DD"
	end.SetValue(rng.End.Format("2006-01-02"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle

	m := Model{
		deps:      deps,
		ctx:       ctx,
		codeInput: code,
		inputs:    []textinput.Model{start, end},
		spinner:   sp,
		width:     100,
		height:    30,
	}

	switch deps.Auth.State() {
	case gcal.StateNoCredential, gcal.StateAwaitingCode:
		m.enterAuth()
	default:
		m.enterRange()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Screen reports the current view.
func (m Model) Screen() Screen {
	return m.screen
}

// Rows returns the rows currently shown.
func (m Model) Rows() []colorize.ResultRow {
	return m.rows
}

// Err returns the error shown to the operator, if any.
func (m Model) Err() error {
	return m.err
}

func (m *Model) enterAuth() {
	m.screen = ScreenAuth
	m.authURL = m.deps.Auth.AuthCodeURL()
	m.codeInput.SetValue("")
	m.codeInput.Focus()
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Model) enterRange() {
	m.screen = ScreenRange
	m.codeInput.Blur()
	m.focusIndex = 0
	for i := range m.inputs {
		if i == 0 {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.screen == ScreenResults {
			m.table.SetHeight(m.tableHeight())
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKeyPress(msg)

	case spinner.TickMsg:
		if m.screen != ScreenWorking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.notice = "Authorized."
		m.enterRange()
		return m, textinput.Blink

	case progressMsg:
		m.done, m.total, m.current = msg.done, msg.total, msg.title
		return m, listen(m.progress)

	case runDoneMsg:
		return m.handleRunDone(msg), nil

	case revertDoneMsg:
		return m.handleRevertDone(msg), nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.notice = "Saved " + msg.path
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case ScreenAuth:
		return m.handleAuthKeys(msg)
	case ScreenRange:
		return m.handleRangeKeys(msg)
	case ScreenWorking:
		return m, nil
	case ScreenResults:
		return m.handleResultKeys(msg)
	}
	return m, nil
}

func (m Model) handleAuthKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		input := m.codeInput.Value()
		auth := m.deps.Auth
		ctx := m.ctx
		m.notice = "Exchanging code..."
		return m, func() tea.Msg {
			return authDoneMsg{err: auth.Exchange(ctx, input)}
		}
	}
	var cmd tea.Cmd
	m.codeInput, cmd = m.codeInput.Update(msg)
	return m, cmd
}

func (m Model) handleRangeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		if msg.String() == "shift+tab" || msg.String() == "up" {
			m.focusIndex--
		} else {
			m.focusIndex++
		}
		m.focusIndex = (m.focusIndex + len(m.inputs)) % len(m.inputs)
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			if i == m.focusIndex {
				cmds[i] = m.inputs[i].Focus()
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, tea.Batch(cmds...)
	case "enter":
		rng, err := m.parseRange()
		if err != nil {
			m.err = err
			return m, nil
		}
		return m.startRun(rng)
	}
	return m.updateFocused(msg)
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "n":
		m.deps.Sessions.Drop(m.sessionID)
		m.sessionID = uuid.Nil
		m.service = nil
		m.err = nil
		m.notice = ""
		m.enterRange()
		return m, textinput.Blink
	case "s":
		rows := m.rows
		dir := m.deps.Config.ExportDir
		now := m.deps.Now()
		return m, func() tea.Msg {
			path, err := saveCSV(dir, rows, now)
			return savedMsg{path: path, err: err}
		}
	case "r":
		return m.startRevert()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenAuth:
		m.codeInput, cmd = m.codeInput.Update(msg)
	case ScreenRange:
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	}
	return m, cmd
}

// localNow is the current time in the configured calendar zone, so that
// "today" names the same day the range bounds are computed in.
func localNow(deps Deps) time.Time {
	loc, err := deps.Config.Location()
	if err != nil {
		return deps.Now()
	}
	return deps.Now().In(loc)
}

func (m Model) parseRange() (dateparse.Range, error) {
	now := localNow(m.deps)
	start, err := dateparse.ParseDate(m.inputs[0].Value(), now)
	if err != nil {
		return dateparse.Range{}, err
	}
	end, err := dateparse.ParseDate(m.inputs[1].Value(), now)
	if err != nil {
		return dateparse.Range{}, err
	}
	return dateparse.NewRange(start, end)
}

func (m Model) handleRunDone(msg runDoneMsg) Model {
	m.progress = nil
	if errors.Is(msg.err, gcal.ErrAuthorizationRequired) {
		m.err = msg.err
		m.enterAuth()
		return m
	}
	if msg.err != nil {
		m.err = msg.err
		m.enterRange()
		return m
	}
	m.err = nil
	m.service = msg.service
	if len(msg.rows) == 0 {
		m.notice = "No events found in this date range."
		m.enterRange()
		return m
	}
	sess := m.deps.Sessions.Put(msg.rng, msg.rows, m.deps.Now())
	m.sessionID = sess.ID
	m.rows = sess.Rows
	m.notice = "Events categorized successfully!"
	m.showResults()
	return m
}

func (m Model) handleRevertDone(msg revertDoneMsg) Model {
	m.progress = nil
	if msg.err != nil {
		m.err = msg.err
		m.showResults()
		return m
	}
	if err := m.deps.Sessions.Update(m.sessionID, msg.rows, true); err != nil {
		m.deps.Logger.Warn("session update after revert", "err", err)
	}
	m.rows = msg.rows
	m.err = nil
	m.notice = "Colors reverted."
	m.showResults()
	return m
}

func (m *Model) showResults() {
	m.screen = ScreenResults
	m.table = newResultTable(m.rows, m.width, m.tableHeight())
}

func (m Model) tableHeight() int {
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	return h
}
