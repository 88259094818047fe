package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/fader"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
)

// maxEvents bounds the event log.
const maxEvents = 500

// Rows used by everything except the event log.
const chromeRows = 19

// Status is a snapshot of bridge state pushed by the tick loop. Slices must
// not be modified after the snapshot is posted.
type Status struct {
	Links         []link.Snapshot
	Ring          ring.Window
	RingConfirmed bool
	FaderMode     fader.Mode
	Faders        []fader.Channel
	Tempo         float64
	HasTempo      bool
	Playing       bool
	Recording     bool
	Dropped       uint64 // Frames dropped by receivers and queues
}

// Messages delivered to the model
type (
	StatusMsg Status
	EventMsg  telemetry.Event
	PadsMsg   [color.NumPads]color.RGB
)

type keyMap struct {
	Clear key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Clear, k.Quit}}
}

// Model is the monitor screen.
type Model struct {
	title  string
	msgs   <-chan tea.Msg
	status Status
	pads   [color.NumPads]color.RGB
	events []string
	log    viewport.Model
	help   help.Model
	keys   keyMap
	width  int
	height int
}

// NewModel creates the monitor screen. Messages posted on msgs are applied
// as they arrive; msgs may be nil.
func NewModel(title string, msgs <-chan tea.Msg) Model {
	width, height := GetTerminalSize()
	m := Model{
		title: title,
		msgs:  msgs,
		log:   viewport.New(width-4, max(3, height-chromeRows)),
		help:  help.New(),
		keys: keyMap{
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear log"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		width:  width,
		height: height,
	}
	return m
}

func listen(msgs <-chan tea.Msg) tea.Cmd {
	if msgs == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-msgs
		if !ok {
			return nil
		}
		return msg
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return listen(m.msgs)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.height = msg.Height
		m.log.Width = m.width - 4
		m.log.Height = max(3, msg.Height-chromeRows)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.events = nil
			m.log.SetContent("")
			return m, nil
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case StatusMsg:
		m.status = Status(msg)
		return m, listen(m.msgs)

	case PadsMsg:
		m.pads = msg
		return m, listen(m.msgs)

	case EventMsg:
		m.addEvent(telemetry.Event(msg))
		return m, listen(m.msgs)
	}
	return m, nil
}

func (m *Model) addEvent(e telemetry.Event) {
	line := e.String()
	if e.Kind == telemetry.KindWarning {
		line = warningEventStyle.Render(line)
	}
	follow := m.log.AtBottom()
	m.events = append(m.events, line)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	m.log.SetContent(strings.Join(m.events, "\n"))
	if follow {
		m.log.GotoBottom()
	}
}

// View implements tea.Model
func (m Model) View() string {
	header := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(m.width - 2).
		Render(titleStyle.Render(strings.ToUpper(m.title)))

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.row("Links", m.renderLinks()),
		m.row("Ring", m.renderRing()),
		m.row("Transport", m.renderTransport()),
		m.row("Faders", m.renderFaders()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		sectionStyle.Render(m.renderPads()),
		sectionStyle.Width(m.width-2).Render(m.log.View()),
		m.help.View(m.keys),
	)
}

func (m Model) row(label, value string) string {
	return " " + labelStyle.Render(label) + value
}

func (m Model) renderLinks() string {
	if len(m.status.Links) == 0 {
		return mutedStyle.Render("no links")
	}
	parts := make([]string, 0, len(m.status.Links))
	for _, l := range m.status.Links {
		style, marker := stateStyle(l.State)
		parts = append(parts, style.Render(marker)+" "+valueStyle.Render(fmt.Sprintf("%s %s", l.Name, l.State)))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderRing() string {
	w := m.status.Ring
	if w.Width == 0 {
		w = ring.Window{Width: ring.DefaultWidth, Height: ring.DefaultHeight}
	}
	s := valueStyle.Render(w.String())
	if !m.status.RingConfirmed {
		s += mutedStyle.Render(" (provisional)")
	}
	return s
}

func (m Model) renderTransport() string {
	tempo := "--.-"
	if m.status.HasTempo {
		tempo = fmt.Sprintf("%.1f", m.status.Tempo)
	}
	play := mutedStyle.Render("stopped")
	if m.status.Playing {
		play = lipgloss.NewStyle().Foreground(SuccessColor).Render("playing")
	}
	s := valueStyle.Render(tempo+" BPM  ") + play
	if m.status.Recording {
		s += "  " + lipgloss.NewStyle().Foreground(ErrorColor).Render("recording")
	}
	if m.status.Dropped > 0 {
		s += mutedStyle.Render(fmt.Sprintf("  dropped %d", m.status.Dropped))
	}
	return s
}

func (m Model) renderFaders() string {
	if len(m.status.Faders) == 0 {
		return mutedStyle.Render("idle")
	}
	parts := []string{mutedStyle.Render("[" + m.status.FaderMode.String() + "]")}
	for i, ch := range m.status.Faders {
		marker := lipgloss.NewStyle().Foreground(WarningColor).Render(markerWait)
		if ch.PickedUp {
			marker = lipgloss.NewStyle().Foreground(SuccessColor).Render(markerOK)
		}
		parts = append(parts, fmt.Sprintf("%d:t%d %3d/%-3d %s", i+1, ch.Track, ch.Physical, ch.Target, marker))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderPads() string {
	rows := make([]string, 0, ring.DefaultHeight)
	for scene := 0; scene < ring.DefaultHeight; scene++ {
		cells := make([]string, 0, ring.DefaultWidth)
		for track := 0; track < ring.DefaultWidth; track++ {
			pad := scene*ring.DefaultWidth + track
			bg, fg := padColors(m.pads[pad])
			cells = append(cells, lipgloss.NewStyle().
				Background(bg).
				Foreground(fg).
				Width(padCellWidth).
				Align(lipgloss.Center).
				Render(fmt.Sprintf("%d", pad)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Events returns the number of lines in the event log.
func (m Model) Events() int { return len(m.events) }
