package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/precambrien/alisbot/internal/listing"
	"github.com/precambrien/alisbot/internal/logtail"
	"github.com/precambrien/alisbot/internal/state"
)

const (
	headerLines     = 2 // status line and command bar
	paneChromeLines = 2 // pane title and input line
	maxTableRows    = 10
)

type column struct {
	title string
	width int
}

var columns = []column{
	{"INSTANCE", 14},
	{"SERVER", 22},
	{"NICK", 12},
	{"STATE", 14},
	{"LISTING", 12},
	{"CHANNELS", 9},
	{"AGE", 9},
	{"ACTIVE", 7},
	{"SERVED", 7},
	{"LAST ERROR", 0},
}

func (m Model) tableHeight() int {
	rows := len(m.snapshots)
	if rows == 0 {
		rows = 1
	}
	if rows > maxTableRows {
		rows = maxTableRows
	}
	return rows + 1
}

func (m Model) renderMain() string {
	parts := []string{
		m.renderHeader(),
		m.renderCommandBar(),
		m.renderTable(),
		m.renderPaneTitle(),
	}
	if m.pane == PaneLogs {
		parts = append(parts, m.logView.View())
	} else {
		parts = append(parts, m.outView.View(), m.renderInput())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)

	registered, offline := 0, 0
	for _, s := range m.snapshots {
		if s.Phase == state.PhaseRegistered {
			registered++
		}
		if s.IsOffline() {
			offline++
		}
	}

	parts := []string{
		styles.Logo.Render("alisbot"),
		styles.Text.Render(fmt.Sprintf("%d instance(s)", len(m.snapshots))),
		styles.SuccessText.Render(fmt.Sprintf("%d online", registered)),
	}
	if offline > 0 {
		parts = append(parts, styles.DangerText.Render(fmt.Sprintf("%d offline", offline)))
	}
	if m.pending > 0 {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("%d request(s) running", m.pending)))
	}
	if !m.lastUpdated.IsZero() {
		parts = append(parts, styles.MutedText.Render(m.lastUpdated.Format("15:04:05")))
	}
	sep := styles.Surface.Render("  ")
	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bindings := []struct{ key, desc string }{
		{m.keys.Console.Help().Key, "request"},
		{"j/k", "select"},
		{m.keys.TogglePane.Help().Key, "pane"},
		{m.keys.CycleTheme.Help().Key, "theme"},
		{m.keys.Help.Help().Key, "help"},
		{m.keys.Quit.Help().Key, "quit"},
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, styles.AccentText.Render("<"+b.key+">")+styles.MutedText.Render(" "+b.desc))
	}
	return styles.Footer.Width(m.width).Render(strings.Join(parts, styles.Surface.Render("  ")))
}

func (m Model) renderTable() string {
	styles := m.theme.Styles()

	var header strings.Builder
	for _, c := range columns {
		header.WriteString(cell(c.title, c.width))
	}
	lines := []string{styles.MutedText.Bold(true).Render(header.String())}

	if len(m.snapshots) == 0 {
		lines = append(lines, styles.FaintText.Render("waiting for instances..."))
		return strings.Join(lines, "\n")
	}

	start := 0
	if m.selected >= maxTableRows {
		start = m.selected - maxTableRows + 1
	}
	end := start + maxTableRows
	if end > len(m.snapshots) {
		end = len(m.snapshots)
	}
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(m.snapshots[i], i == m.selected, styles))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(s state.Snapshot, selected bool, styles Styles) string {
	phase := string(s.Phase)
	listingState := listingLabel(s.Listing)
	lastErr := ""
	if s.LastError != nil {
		lastErr = s.LastError.Error()
	}

	cells := []string{
		cell(s.Name, columns[0].width),
		cell(s.Server, columns[1].width),
		cell(s.Nick, columns[2].width),
		styles.StatusStyle(phase).Render(truncate(phase, columns[3].width-3)) + " ",
		styles.StatusStyle(listingState).Render(truncate(listingState, columns[4].width-3)) + " ",
		cell(fmt.Sprintf("%d", s.Listing.Entries), columns[5].width),
		cell(listingAge(s.Listing), columns[6].width),
		cell(fmt.Sprintf("%d", s.ActiveQueries), columns[7].width),
		cell(fmt.Sprintf("%d", s.QueriesServed), columns[8].width),
	}
	row := strings.Join(cells, "")
	if lastErr != "" {
		row += styles.DangerText.Render(truncate(lastErr, m.width-lipgloss.Width(row)))
	}
	if selected {
		return styles.Selected.Width(m.width).Render(row)
	}
	return row
}

func (m Model) renderPaneTitle() string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	var title string
	switch m.pane {
	case PaneLogs:
		title = "Log"
		if m.logPath != "" {
			title += " " + styles.MutedText.Render(truncate(m.logPath, 60))
		}
		if m.logErr != nil {
			title += "  " + styles.DangerText.Render(m.logErr.Error())
		}
	default:
		title = "Console"
		if name := m.selectedName(); name != "" {
			title += " " + styles.MutedText.Render("→ "+name)
		}
	}
	return styles.SurfaceAlt.Width(m.width).Render(styles.AccentText.Bold(true).Render(title))
}

func (m Model) renderInput() string {
	if !m.typing {
		styles := m.theme.Styles()
		return styles.FaintText.Render("press / to send a request to the selected instance")
	}
	return m.input.View()
}

func (m Model) renderLogLines() string {
	if len(m.logLines) == 0 {
		return m.theme.Styles().FaintText.Render("(log is empty)")
	}
	styles := m.theme.Styles()
	out := make([]string, len(m.logLines))
	for i, line := range m.logLines {
		switch logtail.Level(line) {
		case logtail.LevelError:
			out[i] = styles.DangerText.Render(line)
		case logtail.LevelWarn:
			out[i] = styles.WarningText.Render(line)
		case logtail.LevelDebug:
			out[i] = styles.FaintText.Render(line)
		default:
			out[i] = styles.Text.Render(line)
		}
	}
	return strings.Join(out, "\n")
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	sections := []struct {
		title string
		keys  []key.Help
	}{
		{"Instances", []key.Help{m.keys.Up.Help(), m.keys.Down.Help()}},
		{"Console", []key.Help{m.keys.Console.Help(), m.keys.Run.Help(), m.keys.Leave.Help()}},
		{"Panes", []key.Help{m.keys.TogglePane.Help(), m.keys.PageUp.Help(), m.keys.PageDown.Help()}},
		{"General", []key.Help{m.keys.CycleTheme.Help(), m.keys.Help.Help(), m.keys.Quit.Help()}},
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")
	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, k := range section.keys {
			keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning)).Width(12)
			b.WriteString(keyStyle.Render(k.Key))
			b.WriteString(styles.Text.Render(k.Desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40).
		Render(b.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// listingLabel names the listing state shown in the STATE badge.
func listingLabel(st listing.Status) string {
	switch {
	case !st.Available:
		return "refreshing"
	case st.Aborted:
		return "aborted"
	case st.Expired:
		return "expired"
	default:
		return "available"
	}
}

func listingAge(st listing.Status) string {
	if st.Aborted || !st.Available {
		return "-"
	}
	return humanizeDuration(st.Age)
}
