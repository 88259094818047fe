// Package monitor is the bridge's terminal dashboard: link states, the
// session ring, transport, fader pickup, an LED preview of the pad grid and
// a scrolling event log.
//
// A Monitor is fed from the tick loop. It implements telemetry.Sink and
// color.LEDDriver, and posts everything to the Bubble Tea program through a
// bounded channel so the tick loop never blocks on the terminal.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
)

// queueSize bounds the messages waiting for the program.
const queueSize = 512

// Monitor bridges the tick loop to a Bubble Tea program.
type Monitor struct {
	title   string
	msgs    chan tea.Msg
	staged  [color.NumPads]color.RGB
	dropped atomic.Uint64
}

// New creates a monitor. Nothing is drawn until Run.
func New(title string) *Monitor {
	return &Monitor{title: title, msgs: make(chan tea.Msg, queueSize)}
}

// Emit implements telemetry.Sink.
func (m *Monitor) Emit(e telemetry.Event) {
	m.post(EventMsg(e))
}

// SetPixel implements color.LEDDriver.
func (m *Monitor) SetPixel(pad int, c color.RGB) {
	if pad < 0 || pad >= color.NumPads {
		return
	}
	m.staged[pad] = c
}

// Commit implements color.LEDDriver.
func (m *Monitor) Commit() {
	m.post(PadsMsg(m.staged))
}

// Update posts a status snapshot.
func (m *Monitor) Update(s Status) {
	m.post(StatusMsg(s))
}

// Dropped returns how many messages were discarded because the program
// fell behind.
func (m *Monitor) Dropped() uint64 { return m.dropped.Load() }

func (m *Monitor) post(msg tea.Msg) {
	select {
	case m.msgs <- msg:
	default:
		m.dropped.Add(1)
	}
}

// Model returns the screen model bound to this monitor.
func (m *Monitor) Model() Model {
	return NewModel(m.title, m.msgs)
}

// Run draws the monitor on the alternate screen until the user quits or ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	p := tea.NewProgram(m.Model(), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
