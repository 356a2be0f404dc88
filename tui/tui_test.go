package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/perbu/calcat/category"
	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/config"
	"github.com/perbu/calcat/dateparse"
	"github.com/perbu/calcat/gcal"
	"github.com/perbu/calcat/session"
)

type fakeAuth struct {
	state     gcal.State
	exchanged []string
	tsErr     error
}

func (f *fakeAuth) State() gcal.State { return f.state }

func (f *fakeAuth) AuthCodeURL() string {
	f.state = gcal.StateAwaitingCode
	return "https://accounts.example.com/auth?state=abc"
}

func (f *fakeAuth) Exchange(_ context.Context, input string) error {
	if input == "bad" {
		return errors.New("invalid_grant")
	}
	f.exchanged = append(f.exchanged, input)
	f.state = gcal.StateValid
	return nil
}

func (f *fakeAuth) TokenSource(context.Context) (oauth2.TokenSource, error) {
	if f.tsErr != nil {
		return nil, f.tsErr
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}), nil
}

type fakeService struct {
	items   []*calendar.Event
	listed  int
	patches map[string]string
}

func (f *fakeService) ListEvents(context.Context, string, string, string) ([]*calendar.Event, error) {
	f.listed++
	return f.items, nil
}

func (f *fakeService) PatchColor(_ context.Context, _, eventID, colorID string) error {
	if f.patches == nil {
		f.patches = map[string]string{}
	}
	f.patches[eventID] = colorID
	return nil
}

type mapClassifier map[string]category.Category

func (m mapClassifier) Classify(_ context.Context, title, _ string) category.Result {
	if c, ok := m[title]; ok {
		return category.Result{Category: c, Raw: string(c)}
	}
	return category.Result{Category: category.Other, Err: errors.New("model down")}
}

var now = time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, auth *fakeAuth, svc *fakeService) (Model, *Deps) {
	t.Helper()
	clock := now
	cfg := config.Default()
	cfg.ExportDir = t.TempDir()
	deps := &Deps{
		Config: cfg,
		Auth:   auth,
		NewService: func(context.Context, oauth2.TokenSource) (gcal.CalendarService, error) {
			return svc, nil
		},
		Classifier: mapClassifier{"Weekly team sync": category.Team, "Lunch with Alex": category.Personal},
		Sessions:   session.NewStore(time.Hour),
		Logger:     log.New(io.Discard),
		Now:        func() time.Time { return clock },
	}
	return NewModel(context.Background(), *deps), deps
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	nm, cmd := m.Update(msg)
	out, ok := nm.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleEvents() []*calendar.Event {
	return []*calendar.Event{
		{Id: "e1", Summary: "Weekly team sync", ColorId: "7", Start: &calendar.EventDateTime{DateTime: "2025-01-31T10:00:00Z"}},
		{Id: "e2", Summary: "Lunch with Alex", Start: &calendar.EventDateTime{DateTime: "2025-01-31T12:00:00Z"}},
		{Id: "wl", Summary: "Home", EventType: gcal.EventTypeWorkingLocation, Start: &calendar.EventDateTime{Date: "2025-01-31"}},
	}
}

func TestStartsOnAuthScreenWithoutCredential(t *testing.T) {
	auth := &fakeAuth{state: gcal.StateNoCredential}
	m, _ := newTestModel(t, auth, &fakeService{})

	assert.Equal(t, ScreenAuth, m.Screen())
	assert.Contains(t, m.View(), "https://accounts.example.com/auth")

	m, _ = update(t, m, key("the-code"))
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Equal(t, ScreenRange, m.Screen())
	assert.Equal(t, []string{"the-code"}, auth.exchanged)
}

func TestAuthFailureStaysOnAuthScreen(t *testing.T) {
	auth := &fakeAuth{state: gcal.StateNoCredential}
	m, _ := newTestModel(t, auth, &fakeService{})

	m, _ = update(t, m, key("bad"))
	m, cmd := update(t, m, key("enter"))
	m, _ = update(t, m, cmd())

	assert.Equal(t, ScreenAuth, m.Screen())
	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "invalid_grant")
}

func TestInvertedRangeIsRejectedWithoutFetching(t *testing.T) {
	svc := &fakeService{}
	m, _ := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	require.Equal(t, ScreenRange, m.Screen())

	m.inputs[0].SetValue("2025-02-10")
	m.inputs[1].SetValue("2025-02-01")
	m, cmd := update(t, m, key("enter"))

	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.Err(), dateparse.ErrInvertedRange)
	assert.Equal(t, ScreenRange, m.Screen())
	assert.Zero(t, svc.listed)
}

func TestRangeTabMovesFocus(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{state: gcal.StateValid}, &fakeService{})
	m, _ = update(t, m, key("tab"))
	assert.Equal(t, 1, m.focusIndex)
	m, _ = update(t, m, key("tab"))
	assert.Equal(t, 0, m.focusIndex)
}

func TestEnterStartsRun(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{state: gcal.StateValid}, &fakeService{})
	m, cmd := update(t, m, key("enter"))
	assert.NotNil(t, cmd)
	assert.Equal(t, ScreenWorking, m.Screen())

	m, _ = update(t, m, progressMsg{done: 1, total: 3, title: "Weekly team sync"})
	assert.Contains(t, m.View(), "(1/3)")
}

func TestRunPipelineAndResults(t *testing.T) {
	svc := &fakeService{items: sampleEvents()}
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	rng := dateparse.Default(now)

	var progressed []int
	msg := runPipeline(context.Background(), *deps, rng, func(done, _ int, _ colorize.ResultRow) {
		progressed = append(progressed, done)
	})
	require.NoError(t, msg.err)
	assert.Equal(t, []int{1, 2, 3}, progressed)
	assert.Equal(t, map[string]string{"e1": "2", "e2": "6"}, svc.patches)

	m, _ = update(t, m, msg)
	assert.Equal(t, ScreenResults, m.Screen())
	require.Len(t, m.Rows(), 3)

	view := m.View()
	assert.Contains(t, view, "Weekly team sync")
	assert.Contains(t, view, "Skipped 1 working location event(s)")

	sess, err := deps.Sessions.Get(m.sessionID, now)
	require.NoError(t, err)
	assert.Len(t, sess.Rows, 3)
}

func TestRunRequiresAuthorization(t *testing.T) {
	auth := &fakeAuth{state: gcal.StateExpired, tsErr: gcal.ErrAuthorizationRequired}
	m, deps := newTestModel(t, auth, &fakeService{})

	msg := runPipeline(context.Background(), *deps, dateparse.Default(now), nil)
	m, _ = update(t, m, msg)
	assert.Equal(t, ScreenAuth, m.Screen())
}

func TestEmptyRunReturnsToRange(t *testing.T) {
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, &fakeService{})

	m, _ = update(t, m, runPipeline(context.Background(), *deps, dateparse.Default(now), nil))
	assert.Equal(t, ScreenRange, m.Screen())
	assert.Contains(t, m.View(), "No events found")
}

func TestRevertFlow(t *testing.T) {
	svc := &fakeService{items: sampleEvents()}
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	m, _ = update(t, m, runPipeline(context.Background(), *deps, dateparse.Default(now), nil))

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	assert.Equal(t, ScreenWorking, m.Screen())

	sess, err := deps.Sessions.Get(m.sessionID, now)
	require.NoError(t, err)
	m, _ = update(t, m, revertPipeline(context.Background(), *deps, svc, sess.Rows, nil))

	assert.Equal(t, ScreenResults, m.Screen())
	assert.Equal(t, "7", svc.patches["e1"], "prior color restored")
	assert.Equal(t, "6", svc.patches["e2"], "no prior color, untouched")

	m, cmd = update(t, m, key("r"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "already reverted")
}

func TestRevertAfterExpiry(t *testing.T) {
	svc := &fakeService{items: sampleEvents()}
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	m, _ = update(t, m, runPipeline(context.Background(), *deps, dateparse.Default(now), nil))

	m.deps.Now = func() time.Time { return now.Add(2 * time.Hour) }
	m, cmd := update(t, m, key("r"))
	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.Err(), session.ErrExpired)
}

func TestSaveCSV(t *testing.T) {
	svc := &fakeService{items: sampleEvents()}
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	m, _ = update(t, m, runPipeline(context.Background(), *deps, dateparse.Default(now), nil))

	m, cmd := update(t, m, key("s"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	require.NoError(t, m.Err())
	assert.Contains(t, m.View(), "Saved ")

	data, err := os.ReadFile(strings.TrimPrefix(m.notice, "Saved "))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Lunch with Alex,,2025-01-31T12:00:00Z,,Personal,No")
}

func TestNewRangeDropsSession(t *testing.T) {
	svc := &fakeService{items: sampleEvents()}
	m, deps := newTestModel(t, &fakeAuth{state: gcal.StateValid}, svc)
	m, _ = update(t, m, runPipeline(context.Background(), *deps, dateparse.Default(now), nil))
	id := m.sessionID

	m, _ = update(t, m, key("n"))
	assert.Equal(t, ScreenRange, m.Screen())
	_, err := deps.Sessions.Get(id, now)
	assert.ErrorIs(t, err, session.ErrNotFound)

	m.screen = ScreenResults
	m, cmd := update(t, m, key("r"))
	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.Err(), session.ErrNotFound)
}

func TestTodayFollowsConfiguredZone(t *testing.T) {
	auth := &fakeAuth{state: gcal.StateValid}
	cfg := config.Default()
	cfg.Timezone = "Pacific/Auckland"
	// Jan 31 23:30 UTC is Feb 1 in Auckland.
	late := time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC)
	m := NewModel(context.Background(), Deps{
		Config:     cfg,
		Auth:       auth,
		Classifier: mapClassifier{},
		Sessions:   session.NewStore(time.Hour),
		Logger:     log.New(io.Discard),
		Now:        func() time.Time { return late },
	})
	assert.Equal(t, "2025-02-01", m.inputs[0].Value())

	m.inputs[0].SetValue("today")
	m.inputs[1].SetValue("+1d")
	rng, err := m.parseRange()
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01 .. 2025-02-02", rng.String())
}
