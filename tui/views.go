package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/perbu/calcat/colorize"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	workingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("📅 Calendar Categorizer"))
	s.WriteString("\n")

	switch m.screen {
	case ScreenAuth:
		s.WriteString(m.renderAuthView())
	case ScreenRange:
		s.WriteString(m.renderRangeView())
	case ScreenWorking:
		s.WriteString(m.renderWorkingView())
	case ScreenResults:
		s.WriteString(m.renderResultsView())
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) renderAuthView() string {
	var s strings.Builder
	s.WriteString("Google Calendar access is needed. Open this link, approve, then paste the code\n")
	s.WriteString("(or the full address your browser was redirected to):\n\n")
	s.WriteString(urlStyle.Render(m.authURL))
	s.WriteString("\n\n")
	s.WriteString(m.codeInput.View())
	s.WriteString("\n")
	if m.notice != "" {
		s.WriteString(infoStyle.Render(m.notice))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("enter: submit • esc: quit"))
	return s.String()
}

func (m Model) renderRangeView() string {
	var s strings.Builder
	s.WriteString("Categorize your Google Calendar events using AI into useful buckets.\n\n")
	for _, in := range m.inputs {
		s.WriteString(in.View())
		s.WriteString("\n")
	}
	if m.notice != "" {
		s.WriteString("\n")
		s.WriteString(noticeStyle.Render(m.notice))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("tab: switch field • enter: fetch and categorize • esc: quit"))
	return s.String()
}

func (m Model) renderWorkingView() string {
	var s strings.Builder
	s.WriteString(m.spinner.View())
	s.WriteString(" ")
	s.WriteString(workingStyle.Render(m.task))
	if m.total > 0 {
		s.WriteString(fmt.Sprintf(" (%d/%d)", m.done, m.total))
	}
	s.WriteString("\n")
	if m.current != "" {
		s.WriteString(infoStyle.Render("  " + m.current))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) renderResultsView() string {
	var s strings.Builder
	if m.notice != "" {
		s.WriteString(noticeStyle.Render("✅ " + m.notice))
		s.WriteString("\n\n")
	}
	s.WriteString(m.table.View())
	s.WriteString("\n\n")
	s.WriteString(summaryLine(colorize.Summarize(m.rows)))
	s.WriteString("\n")
	if sk := colorize.Summarize(m.rows).Skipped; sk > 0 {
		s.WriteString(infoStyle.Render(fmt.Sprintf(
			"⏩ Skipped %d working location event(s) from being updated in Calendar. They are still categorized in the export.", sk)))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("↑/↓: scroll • s: save CSV • r: revert colors • n: new range • q: quit"))
	return s.String()
}

func summaryLine(sum colorize.Summary) string {
	parts := []string{fmt.Sprintf("%d events", sum.Total)}
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(sum.Updated, "updated")
	add(sum.Skipped, "skipped")
	add(sum.Failed, "failed")
	add(sum.Reverted, "reverted")
	add(sum.Unchanged, "unchanged")
	add(sum.Degraded, "classified as Other after a model error")
	return strings.Join(parts, " • ")
}

func newResultTable(rows []colorize.ResultRow, width, height int) table.Model {
	titleW := width - 20 - 20 - 12 - 6 - 10
	if titleW < 20 {
		titleW = 20
	}
	columns := []table.Column{
		{Title: "Title", Width: titleW},
		{Title: "Start", Width: 20},
		{Title: "Category", Width: 12},
		{Title: "Color", Width: 6},
		{Title: "Status", Width: 10},
	}

	trs := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		status := r.Outcome.String()
		if r.Skipped {
			status = "skipped"
		}
		trs = append(trs, table.Row{r.Title, r.Start, string(r.Category), r.ColorID, status})
	}

	return table.New(
		table.WithColumns(columns),
		table.WithRows(trs),
		table.WithFocused(true),
		table.WithHeight(height),
	)
}
