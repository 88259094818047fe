package router

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
)

type fakePeer struct {
	connected bool
	frames    []wire.Frame
}

func (p *fakePeer) Send(cmd wire.Command, payload []byte) error {
	if !p.connected {
		return fmt.Errorf("send %s: %w", cmd, link.ErrNotConnected)
	}
	p.frames = append(p.frames, wire.Frame{Command: cmd, Payload: append([]byte(nil), payload...)})
	return nil
}

func (p *fakePeer) Connected() bool { return p.connected }

func (p *fakePeer) count(cmd wire.Command) int {
	n := 0
	for _, f := range p.frames {
		if f.Command == cmd {
			n++
		}
	}
	return n
}

func (p *fakePeer) last(cmd wire.Command) (wire.Frame, bool) {
	for i := len(p.frames) - 1; i >= 0; i-- {
		if p.frames[i].Command == cmd {
			return p.frames[i], true
		}
	}
	return wire.Frame{}, false
}

func (p *fakePeer) commands() []wire.Command {
	out := make([]wire.Command, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.Command
	}
	return out
}

type sentMessage struct {
	cmd     sysex.Command
	payload []byte
}

type fakeDAW struct {
	connected bool
	gridSeen  bool
	sent      []sentMessage
}

func (d *fakeDAW) Send(cmd sysex.Command, payload []byte) error {
	if !d.connected {
		return fmt.Errorf("send %s: %w", cmd, link.ErrNotConnected)
	}
	d.sent = append(d.sent, sentMessage{cmd, append([]byte(nil), payload...)})
	return nil
}

func (d *fakeDAW) Connected() bool { return d.connected }

func (d *fakeDAW) MarkGrid() bool {
	first := !d.gridSeen
	d.gridSeen = true
	return first
}

type fixture struct {
	grid   *fakePeer
	gui    *fakePeer
	daw    *fakeDAW
	events *telemetry.Recorder
	router *Router
}

func newFixture() *fixture {
	f := &fixture{
		grid:   &fakePeer{connected: true},
		gui:    &fakePeer{connected: true},
		daw:    &fakeDAW{connected: true},
		events: &telemetry.Recorder{},
	}
	f.router = New(Config{Grid: f.grid, GUI: f.gui, DAW: f.daw, Sink: f.events})
	return f
}

func (f *fixture) reset() {
	f.grid.frames = nil
	f.gui.frames = nil
	f.daw.sent = nil
}

func precisePayload(n int, rgb14 [3]int) []byte {
	p := make([]byte, 0, n*6)
	for i := 0; i < n; i++ {
		for _, v := range rgb14 {
			p = append(p, byte(v>>7)&0x7F, byte(v)&0x7F)
		}
	}
	return p
}
