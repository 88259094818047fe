package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/config"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/gridboard"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/monitor"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
)

// fakePort is an in-memory DAW MIDI port.
type fakePort struct {
	inbox  [][]byte
	outbox [][]byte
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.outbox = append(p.outbox, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Poll() [][]byte {
	in := p.inbox
	p.inbox = nil
	return in
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) take() []sysex.Message {
	var out []sysex.Message
	for _, raw := range p.outbox {
		m, err := sysex.Decode(raw)
		if err == nil {
			out = append(out, m)
		}
	}
	p.outbox = nil
	return out
}

// boardStream records the frames the board reads from the bridge.
type boardStream struct {
	*transport.PipeEnd
	rx   *wire.Receiver
	seen []wire.Command
}

func (s *boardStream) Poll() []byte {
	data := s.PipeEnd.Poll()
	for _, f := range s.rx.Feed(data) {
		s.seen = append(s.seen, f.Command)
	}
	return data
}

func (s *boardStream) count(cmd wire.Command) int {
	n := 0
	for _, c := range s.seen {
		if c == cmd {
			n++
		}
	}
	return n
}

type harness struct {
	t      *testing.T
	now    time.Time
	app    *App
	board  *gridboard.Board
	stream *boardStream
	daw    *fakePort
	events *telemetry.Recorder
	status []monitor.Status
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		now:    time.Unix(1700000000, 0),
		daw:    &fakePort{},
		events: &telemetry.Recorder{},
	}
	clock := func() time.Time { return h.now }

	bridgeEnd, boardEnd := transport.Pipe(256)
	h.stream = &boardStream{PipeEnd: boardEnd, rx: wire.NewReceiver(wire.MaxFrame)}
	h.board = gridboard.New(gridboard.Config{Now: clock}, h.stream, nil)

	cfg := config.Default()
	cfg.GUI.Mode = config.GUIModeOff

	a, err := New(cfg, Transports{Grid: bridgeEnd, DAW: h.daw}, Options{
		Sink:   h.events,
		Now:    clock,
		Status: func(s monitor.Status) { h.status = append(h.status, s) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.app = a
	return h
}

// step advances the clock and runs the bridge and the board once each.
func (h *harness) step() {
	h.now = h.now.Add(10 * time.Millisecond)
	h.app.Step()
	h.board.Step()
}

func (h *harness) fromDAW(cmd sysex.Command, payload []byte) {
	h.t.Helper()
	msg, err := sysex.Encode(cmd, 0x10, payload)
	if err != nil {
		h.t.Fatalf("Encode(%s) error = %v", cmd, err)
	}
	h.daw.inbox = append(h.daw.inbox, msg)
}

func TestNewRequiresTransports(t *testing.T) {
	if _, err := New(config.Default(), Transports{DAW: &fakePort{}}, Options{}); err == nil {
		t.Error("New() without a grid transport succeeded")
	}
	bad := config.Default()
	bad.Faders.Count = 0
	grid, _ := transport.Pipe(4)
	if _, err := New(bad, Transports{Grid: grid, DAW: &fakePort{}}, Options{}); err == nil {
		t.Error("New() with an invalid config succeeded")
	}
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t)

	// The DAW knocks before the grid board is connected.
	h.fromDAW(sysex.CmdHandshake, nil)
	h.app.Step()
	if got := h.app.Session().Withheld(); got != 1 {
		t.Fatalf("Withheld() = %d, want 1", got)
	}
	if msgs := h.daw.take(); len(msgs) != 0 {
		t.Fatalf("DAW received %v before the grid connected", msgs)
	}

	h.board.Step()
	h.step()
	if !h.app.GridLink().Connected() {
		t.Fatalf("grid link state = %s, want connected", h.app.GridLink().State())
	}
	if !h.board.Connected() {
		t.Fatal("board did not connect")
	}
	if h.board.Animations() != 1 {
		t.Errorf("Animations() = %d, want 1", h.board.Animations())
	}
	if !h.board.KeysEnabled() {
		t.Error("keys not enabled after connect")
	}
	if n := h.stream.count(wire.CmdLEDGridUpdate); n != 1 {
		t.Errorf("sweep frames = %d, want 1", n)
	}

	// Now the handshake is acknowledged.
	h.fromDAW(sysex.CmdHandshake, nil)
	h.step()
	msgs := h.daw.take()
	if len(msgs) != 1 {
		t.Fatalf("DAW received %d messages, want the acknowledgement", len(msgs))
	}
	ack := msgs[0]
	if ack.Form != sysex.FormExtended || ack.Command != sysex.CmdHandshake || ack.Sequence != 0x01 || string(ack.Payload) != "TS" {
		t.Errorf("ack = %s payload %q", ack, ack.Payload)
	}
	if !h.app.Session().Connected() {
		t.Fatal("DAW session not connected after ack")
	}

	grid := make([]byte, 96)
	for i := range grid {
		grid[i] = 0x7F
	}
	h.fromDAW(sysex.CmdGridUpdate, grid)
	h.fromDAW(sysex.CmdTempo, []byte{1200 >> 7, 1200 & 0x7F})
	h.step()
	if n := h.stream.count(wire.CmdLEDGridUpdate); n != 2 {
		t.Errorf("LEDGridUpdate frames = %d, want sweep plus grid", n)
	}
	// The grid lands inside the sweep's suppression window.
	h.now = h.now.Add(200 * time.Millisecond)
	h.board.Step()
	if c, _ := h.board.Colors().Pad(0); c.R == 0 {
		t.Errorf("board pad 0 = %s, want lit", c)
	}

	if err := h.board.PressPad(9); err != nil {
		t.Fatalf("PressPad() error = %v", err)
	}
	h.step()
	msgs = h.daw.take()
	if len(msgs) != 1 || msgs[0].Command != sysex.CmdClipTrigger {
		t.Fatalf("DAW received %v, want ClipTrigger", msgs)
	}
	if !bytes.Equal(msgs[0].Payload, []byte{1, 1}) {
		t.Errorf("ClipTrigger payload = % X, want 01 01", msgs[0].Payload)
	}

	st := h.app.Status()
	if len(st.Links) != 2 || st.Links[0].Name != "grid" || st.Links[1].Name != link.DAWLinkName {
		t.Errorf("Status links = %+v", st.Links)
	}
	if !st.HasTempo || st.Tempo != 120 {
		t.Errorf("Status tempo = %v (%v), want 120", st.Tempo, st.HasTempo)
	}
	if len(h.status) == 0 {
		t.Error("status callback never ran")
	}

	h.fromDAW(sysex.CmdDisconnect, nil)
	h.step()
	if h.app.Session().Connected() {
		t.Error("DAW session still connected after Disconnect")
	}
	if h.board.KeysEnabled() {
		t.Error("board keys still enabled after the DAW left")
	}
	if h.events.Count(telemetry.KindLink) == 0 {
		t.Error("no link events recorded")
	}

	h.app.Close()
	if !h.daw.closed {
		t.Error("Close() did not close the DAW port")
	}
}

func TestUnconnectedGridFramesDropped(t *testing.T) {
	h := newHarness(t)

	// Data frame from the board before any handshake.
	raw, err := wire.EncodeFrame(wire.CmdClipLaunch, []byte{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.stream.Write(raw); err != nil {
		t.Fatal(err)
	}
	h.app.Step()
	if msgs := h.daw.take(); len(msgs) != 0 {
		t.Errorf("DAW received %v from an unconnected grid", msgs)
	}
}

func TestStalledFrameExpires(t *testing.T) {
	h := newHarness(t)
	h.board.Step()
	h.step()

	// A truncated frame followed by a clean one, then silence.
	good, _ := wire.EncodeFrame(wire.CmdPing, nil)
	if _, err := h.stream.Write(append([]byte{wire.SyncByte, 0x10, 0x40, 0x01}, good...)); err != nil {
		t.Fatal(err)
	}
	h.app.Step()
	h.now = h.now.Add(config.Default().Timing.FrameTimeout)
	h.app.Step()

	if st := h.app.Status(); st.Dropped == 0 {
		t.Error("Dropped = 0, want the abandoned frame counted")
	}
}

// guiEndpoint is the bridge side of a GUI transport that reports client
// changes like the WebSocket server does.
type guiEndpoint struct {
	*transport.PipeEnd
	detached uint64
}

func (g *guiEndpoint) Detached() uint64 { return g.detached }

// guiClient reads what the bridge sends to the GUI.
type guiClient struct {
	t   *testing.T
	end *transport.PipeEnd
	rx  *wire.Receiver
}

func (c *guiClient) frames() []wire.Frame {
	return c.rx.Feed(c.end.Poll())
}

func (c *guiClient) send(cmd wire.Command, payload []byte) {
	c.t.Helper()
	buf, err := wire.EncodeFrame(cmd, payload)
	if err != nil {
		c.t.Fatalf("EncodeFrame(%s) error = %v", cmd, err)
	}
	if _, err := c.end.Write(buf); err != nil {
		c.t.Fatalf("Write() error = %v", err)
	}
}

// handshake answers the bridge's pending handshake and reports whether one
// was seen.
func (c *guiClient) handshake() bool {
	for _, f := range c.frames() {
		if f.Command == wire.CmdHandshake {
			c.send(wire.CmdHandshakeReply, f.Payload)
			return true
		}
	}
	return false
}

func has(frames []wire.Frame, cmd wire.Command) bool {
	for _, f := range frames {
		if f.Command == cmd {
			return true
		}
	}
	return false
}

func TestReplacedGUIClientGetsReplay(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	grid, _ := transport.Pipe(64)
	bridgeEnd, clientEnd := transport.Pipe(64)
	gui := &guiEndpoint{PipeEnd: bridgeEnd}
	client := &guiClient{t: t, end: clientEnd, rx: wire.NewReceiver(wire.MaxFrame)}

	cfg := config.Default()
	a, err := New(cfg, Transports{Grid: grid, GUI: gui, DAW: &fakePort{}}, Options{Now: clock})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	a.Step()
	if !client.handshake() {
		t.Fatal("no handshake sent to the first GUI client")
	}
	now = now.Add(10 * time.Millisecond)
	a.Step()
	if st := a.Status().Links[1]; st.Name != "gui" || st.State != link.Connected {
		t.Fatalf("gui link = %+v, want connected", st)
	}

	tempo, _ := sysex.Decode(mustSysEx(t, sysex.CmdTempo, []byte{1200 >> 7, 1200 & 0x7F}))
	if err := a.Router().HandleDAWMessage(tempo); err != nil {
		t.Fatalf("HandleDAWMessage() error = %v", err)
	}
	client.frames()

	// A second client takes over the endpoint.
	gui.detached++
	now = now.Add(10 * time.Millisecond)
	a.Step()
	now = now.Add(cfg.Timing.Backoff)
	a.Step()
	if !client.handshake() {
		t.Fatal("no handshake sent to the replacing GUI client")
	}
	now = now.Add(10 * time.Millisecond)
	a.Step()

	replay := client.frames()
	if !has(replay, wire.CmdTempo) || !has(replay, wire.CmdShiftState) {
		t.Errorf("replacing client got %v, want a cache replay with tempo", replay)
	}
}

func mustSysEx(t *testing.T, cmd sysex.Command, payload []byte) []byte {
	t.Helper()
	msg, err := sysex.Encode(cmd, 0x10, payload)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", cmd, err)
	}
	return msg
}
