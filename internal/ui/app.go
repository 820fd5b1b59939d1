package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/precambrien/alisbot/internal/logtail"
	"github.com/precambrien/alisbot/internal/prefs"
	"github.com/precambrien/alisbot/internal/state"
)

// consoleSource is the requester name used for queries typed in the
// dashboard.
const consoleSource = "console"

const (
	defaultTick  = time.Second
	logTailLines = 500
	maxOutput    = 2000
)

// ErrQuit is returned by Run when the user leaves the dashboard.
var ErrQuit = errors.New("dashboard closed")

// Target answers requests for one instance, exactly as if they had been
// sent to the bot in a private message.
type Target interface {
	Name() string
	Handle(ctx context.Context, source, text string) []string
}

// Pane is the bottom half of the dashboard.
type Pane int

const (
	PaneConsole Pane = iota
	PaneLogs
)

// Options configures the dashboard.
type Options struct {
	Context   context.Context
	Store     *state.Store
	Targets   []Target
	LogPath   string // empty hides the log pane
	Tick      time.Duration
	ThemeName string
	PrefsPath string
	Instance  string // initially selected instance
}

// Model is the root Bubble Tea model.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	targets   map[string]Target
	logPath   string
	prefsPath string
	tick      time.Duration
	keys      keyMap

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	pane     Pane
	showHelp bool

	// Data state
	snapshots   []state.Snapshot
	selected    int
	preferred   string
	lastUpdated time.Time

	// Console state
	input   textinput.Model
	typing  bool
	pending int
	output  []string
	outView viewport.Model

	// Log state
	logLines []string
	logView  viewport.Model
	logErr   error
}

// New creates the dashboard model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	targets := make(map[string]Target, len(opts.Targets))
	for _, t := range opts.Targets {
		targets[t.Name()] = t
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "list *searchterm* --min 10"
	input.CharLimit = 400

	return Model{
		ctx:       ctx,
		store:     opts.Store,
		targets:   targets,
		logPath:   opts.LogPath,
		prefsPath: prefsPath,
		tick:      tick,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(opts.ThemeName),
		preferred: opts.Instance,
		input:     input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.logPath != "" {
		cmds = append(cmds, readLogCmd(m.logPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.outView = viewport.New(msg.Width, 1)
			m.logView = viewport.New(msg.Width, 1)
			m.ready = true
		}
		m.layout()
		m.refreshOutput()
		m.refreshLogView()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		if m.pane == PaneLogs && m.logPath != "" {
			cmds = append(cmds, readLogCmd(m.logPath))
		}
		cmds = append(cmds, tickCmd(m.tick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.applySnapshots(msg)
		m.layout()
		return m, nil

	case queryResultMsg:
		m.pending--
		m.appendOutput(msg.instance, msg.text, msg.lines)
		return m, nil

	case logLinesMsg:
		m.logLines = msg
		m.logErr = nil
		m.refreshLogView()
		return m, nil

	case logErrorMsg:
		m.logErr = msg.err
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.typing {
		return m.handleConsoleKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.TogglePane):
		if m.pane == PaneConsole && m.logPath != "" {
			m.pane = PaneLogs
			return m, readLogCmd(m.logPath)
		}
		m.pane = PaneConsole
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			m.savePrefs()
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.snapshots)-1 {
			m.selected++
			m.savePrefs()
		}
		return m, nil
	case key.Matches(msg, m.keys.Console):
		m.pane = PaneConsole
		m.typing = true
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	if m.pane == PaneLogs {
		m.logView, cmd = m.logView.Update(msg)
	} else {
		m.outView, cmd = m.outView.Update(msg)
	}
	return m, cmd
}

func (m Model) handleConsoleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Leave):
		m.typing = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Run):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		target, ok := m.selectedTarget()
		if !ok {
			m.appendOutput("", text, []string{"no instance selected"})
			return m, nil
		}
		m.input.SetValue("")
		m.pending++
		return m, queryCmd(m.ctx, target, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applySnapshots(snaps []state.Snapshot) {
	prev := ""
	if m.selected >= 0 && m.selected < len(m.snapshots) {
		prev = m.snapshots[m.selected].Name
	}
	if prev == "" {
		prev = m.preferred
	}
	m.snapshots = snaps
	m.lastUpdated = time.Now()

	m.selected = 0
	for i, s := range snaps {
		if s.Name == prev {
			m.selected = i
			break
		}
	}
}

func (m Model) selectedTarget() (Target, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshots) {
		return nil, false
	}
	t, ok := m.targets[m.snapshots[m.selected].Name]
	return t, ok
}

func (m Model) selectedName() string {
	if m.selected < 0 || m.selected >= len(m.snapshots) {
		return ""
	}
	return m.snapshots[m.selected].Name
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Instance: m.selectedName()})
}

func (m *Model) appendOutput(instance, text string, lines []string) {
	header := "» " + text
	if instance != "" {
		header = "[" + instance + "] " + header
	}
	m.output = append(m.output, header)
	if len(lines) == 0 {
		lines = []string{"(no reply)"}
	}
	for _, line := range lines {
		m.output = append(m.output, stripFormatting(line))
	}
	if over := len(m.output) - maxOutput; over > 0 {
		m.output = m.output[over:]
	}
	m.refreshOutput()
}

// layout sizes the viewports from the window and the instance count.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	h := m.height - headerLines - m.tableHeight() - paneChromeLines
	if h < 3 {
		h = 3
	}
	m.outView.Width, m.outView.Height = m.width, h
	m.logView.Width, m.logView.Height = m.width, h+1
	m.input.Width = m.width - len(m.input.Prompt) - 1
}

func (m *Model) refreshOutput() {
	if !m.ready {
		return
	}
	m.outView.SetContent(strings.Join(m.output, "\n"))
	m.outView.GotoBottom()
}

func (m *Model) refreshLogView() {
	if !m.ready {
		return
	}
	atBottom := m.logView.AtBottom()
	m.logView.SetContent(m.renderLogLines())
	if atBottom {
		m.logView.GotoBottom()
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg []state.Snapshot

type queryResultMsg struct {
	instance string
	text     string
	lines    []string
}

type logLinesMsg []string

type logErrorMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func queryCmd(ctx context.Context, target Target, text string) tea.Cmd {
	return func() tea.Msg {
		return queryResultMsg{
			instance: target.Name(),
			text:     text,
			lines:    target.Handle(ctx, consoleSource, text),
		}
	}
}

func readLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		if err != nil {
			return logErrorMsg{err: err}
		}
		return logLinesMsg(lines)
	}
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
// Leaving the dashboard returns ErrQuit.
func Run(ctx context.Context, opts Options) error {
	if opts.Store == nil {
		return errors.New("dashboard requires a state store")
	}
	opts.Context = ctx
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	switch {
	case errors.Is(err, tea.ErrProgramKilled), ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return err
	}
	return ErrQuit
}
