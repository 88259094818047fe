package gridboard

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
)

// bridgeSide plays the bridge end of the serial link.
type bridgeSide struct {
	t      *testing.T
	end    *transport.PipeEnd
	rx     *wire.Receiver
	board  *Board
	events *telemetry.Recorder
	now    time.Time
}

func newBridgeSide(t *testing.T) *bridgeSide {
	t.Helper()
	bridgeEnd, boardEnd := transport.Pipe(64)
	s := &bridgeSide{
		t:      t,
		end:    bridgeEnd,
		rx:     wire.NewReceiver(wire.DefaultReceiveBuffer),
		events: &telemetry.Recorder{},
		now:    time.Unix(1700000000, 0),
	}
	s.board = New(Config{Sink: s.events, Now: func() time.Time { return s.now }}, boardEnd, nil)
	return s
}

// send writes a frame to the board and lets it process the frame.
func (s *bridgeSide) send(cmd wire.Command, payload []byte) {
	s.t.Helper()
	buf, err := wire.EncodeFrame(cmd, payload)
	if err != nil {
		s.t.Fatalf("EncodeFrame(%s) error = %v", cmd, err)
	}
	if _, err := s.end.Write(buf); err != nil {
		s.t.Fatalf("Write() error = %v", err)
	}
	s.board.Step()
}

// received returns every frame the board sent since the last call.
func (s *bridgeSide) received() []wire.Frame {
	return s.rx.Feed(s.end.Poll())
}

func (s *bridgeSide) connect() {
	s.t.Helper()
	s.send(wire.CmdHandshake, wire.HandshakePayload)
	if !s.board.Connected() {
		s.t.Fatal("board did not connect after handshake")
	}
	s.received()
}

func TestHandshake(t *testing.T) {
	s := newBridgeSide(t)

	s.board.Step()
	if got := s.received(); len(got) != 0 {
		t.Fatalf("responder sent %d frames before any handshake", len(got))
	}

	s.send(wire.CmdHandshake, wire.HandshakePayload)
	frames := s.received()
	if len(frames) != 1 || frames[0].Command != wire.CmdHandshakeReply {
		t.Fatalf("received %v, want one HandshakeReply", frames)
	}
	if !bytes.Equal(frames[0].Payload, wire.HandshakePayload) {
		t.Errorf("reply payload = %q, want %q", frames[0].Payload, wire.HandshakePayload)
	}
	if s.board.State() != link.Connected {
		t.Errorf("State() = %s, want connected", s.board.State())
	}
	if s.events.Count(telemetry.KindLink) != 1 {
		t.Errorf("link events = %d, want 1", s.events.Count(telemetry.KindLink))
	}

	s.send(wire.CmdPing, nil)
	frames = s.received()
	if len(frames) != 1 || frames[0].Command != wire.CmdPing {
		t.Errorf("received %v, want ping echo", frames)
	}
}

func TestFramesBeforeHandshakeDropped(t *testing.T) {
	s := newBridgeSide(t)
	s.send(wire.CmdEnableKeys, nil)
	if s.board.KeysEnabled() {
		t.Error("EnableKeys before the handshake was applied")
	}
}

func TestLEDFrames(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()

	grid := make([]byte, color.FastBytes)
	for i := 0; i < color.NumPads; i++ {
		grid[i*3] = 0x7F
	}
	s.send(wire.CmdLEDGridUpdate, grid)
	for i, c := range s.board.Colors().Pads() {
		if c.R != 255 || c.G != 0 || c.B != 0 {
			t.Fatalf("pad %d = %s after red grid", i, c)
		}
	}

	s.send(wire.CmdLEDPadUpdate14, []byte{31, 0x7F, 0x7F, 0x00, 0x00, 0x40, 0x00})
	c, err := s.board.Colors().Pad(31)
	if err != nil {
		t.Fatalf("Pad(31) error = %v", err)
	}
	if c != (color.RGB{R: 255, G: 0, B: 56}) {
		t.Errorf("pad 31 = %s, want #ff0038", c)
	}

	s.send(wire.CmdLEDClipState, []byte{5, ClipPlaying})
	if got := s.board.ClipState(5); got != ClipPlaying {
		t.Errorf("ClipState(5) = %d, want playing", got)
	}

	s.send(wire.CmdLEDUIState, []byte{2, 1})
	if v, ok := s.board.UIState(2); !ok || v != 1 {
		t.Errorf("UIState(2) = %d, %v", v, ok)
	}

	s.send(wire.CmdConnectionAnimation, nil)
	if s.board.Animations() != 1 {
		t.Errorf("Animations() = %d, want 1", s.board.Animations())
	}
}

func TestHandleFrameErrors(t *testing.T) {
	s := newBridgeSide(t)

	tests := []struct {
		name  string
		frame wire.Frame
	}{
		{"short grid", wire.Frame{Command: wire.CmdLEDGridUpdate, Payload: make([]byte, 95)}},
		{"short pad", wire.Frame{Command: wire.CmdLEDPadUpdate, Payload: []byte{1, 2}}},
		{"pad out of range", wire.Frame{Command: wire.CmdLEDPadUpdate14, Payload: []byte{32, 0, 0, 0, 0, 0, 0}}},
		{"clip state pad out of range", wire.Frame{Command: wire.CmdLEDClipState, Payload: []byte{40, 1}}},
		{"short ring", wire.Frame{Command: wire.CmdRingPosition, Payload: []byte{0, 0}}},
		{"peer-to-bridge command", wire.Frame{Command: wire.CmdClipLaunch, Payload: []byte{0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.board.HandleFrame(tt.frame); err == nil {
				t.Error("HandleFrame() expected error, got nil")
			}
		})
	}
}

func TestPressPadUsesRing(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()

	if err := s.board.PressPad(0); !errors.Is(err, ErrKeysDisabled) {
		t.Fatalf("PressPad() before EnableKeys error = %v, want ErrKeysDisabled", err)
	}

	s.send(wire.CmdEnableKeys, nil)
	s.send(wire.CmdRingPosition, []byte{0x00, 0x08, 0x00, 0x04, 0x08, 0x04, 0x00})
	if w := s.board.Window(); w.Track != 8 || w.Scene != 4 {
		t.Fatalf("Window() = %+v, want track 8 scene 4", w)
	}

	if err := s.board.PressPad(9); err != nil {
		t.Fatalf("PressPad() error = %v", err)
	}
	frames := s.received()
	if len(frames) != 1 || frames[0].Command != wire.CmdClipLaunch {
		t.Fatalf("received %v, want ClipLaunch", frames)
	}
	if !bytes.Equal(frames[0].Payload, []byte{9, 5}) {
		t.Errorf("ClipLaunch payload = % X, want 09 05", frames[0].Payload)
	}

	if err := s.board.PressPad(32); !errors.Is(err, color.ErrPadOutOfRange) {
		t.Errorf("PressPad(32) error = %v, want ErrPadOutOfRange", err)
	}
}

func TestInputFrames(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()

	tests := []struct {
		name    string
		send    func() error
		cmd     wire.Command
		payload []byte
	}{
		{"fader full scale", func() error { return s.board.MoveFader(2, 4095) }, wire.CmdFaderRaw, []byte{2, 0x1F, 0x7F}},
		{"fader clamped", func() error { return s.board.MoveFader(0, 5000) }, wire.CmdFaderRaw, []byte{0, 0x1F, 0x7F}},
		{"button press", func() error { return s.board.Button(ButtonLeft, true) }, wire.CmdButtonEvent, []byte{2, 1}},
		{"encoder left", func() error { return s.board.TurnEncoder(1, -1) }, wire.CmdEncoderDelta, []byte{1, 0x7F}},
		{"encoder right", func() error { return s.board.TurnEncoder(0, 3) }, wire.CmdEncoderDelta, []byte{0, 3}},
		{"shift down", func() error { return s.board.Shift(ring.Down) }, wire.CmdGridShiftDown, nil},
		{"bank up", s.board.BankUp, wire.CmdGridBankUp, nil},
		{"play toggle", s.board.TogglePlay, wire.CmdTransportPlay, nil},
		{"refresh", s.board.RequestRefresh, wire.CmdGridRefresh, nil},
		{"stop track", func() error { return s.board.StopTrack(3) }, wire.CmdTrackStop, []byte{3}},
		{"launch scene", func() error { return s.board.LaunchScene(2) }, wire.CmdSceneLaunch, []byte{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send error = %v", err)
			}
			frames := s.received()
			if len(frames) != 1 {
				t.Fatalf("received %d frames, want 1", len(frames))
			}
			if frames[0].Command != tt.cmd || !bytes.Equal(frames[0].Payload, tt.payload) {
				t.Errorf("got %s % X, want %s % X", frames[0].Command, frames[0].Payload, tt.cmd, tt.payload)
			}
		})
	}
}

func TestInputRefusedWhileDisconnected(t *testing.T) {
	s := newBridgeSide(t)
	if err := s.board.MoveFader(0, 100); !errors.Is(err, link.ErrNotConnected) {
		t.Errorf("MoveFader() error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectClearsBoard(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()
	s.send(wire.CmdEnableKeys, nil)
	s.send(wire.CmdLEDPadUpdate, []byte{0, 0x7F, 0x7F, 0x7F})

	s.send(wire.CmdDisconnect, nil)

	if s.board.Connected() {
		t.Error("board still connected after Disconnect")
	}
	if s.board.KeysEnabled() {
		t.Error("keys still enabled after Disconnect")
	}
	if c, _ := s.board.Colors().Pad(0); c != (color.RGB{}) {
		t.Errorf("pad 0 = %s after Disconnect, want off", c)
	}
}

func TestFrameSplitAcrossPolls(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()

	buf, err := wire.EncodeFrame(wire.CmdLEDPadUpdate, []byte{5, 0x7F, 0x00, 0x00})
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	if _, err := s.end.Write(buf[:3]); err != nil {
		t.Fatal(err)
	}
	s.board.Step()
	// Quiet polls shorter than the frame timeout keep the partial frame.
	for i := 0; i < 2; i++ {
		s.now = s.now.Add(5 * time.Millisecond)
		s.board.Step()
	}
	if _, err := s.end.Write(buf[3:]); err != nil {
		t.Fatal(err)
	}
	s.board.Step()

	if c, _ := s.board.Colors().Pad(5); c.R == 0 {
		t.Errorf("pad 5 = %s, want red", c)
	}
}

func TestStalledFrameDropped(t *testing.T) {
	s := newBridgeSide(t)
	s.connect()

	stalled, _ := wire.EncodeFrame(wire.CmdLEDPadUpdate, []byte{5, 0x7F, 0x00, 0x00})
	if _, err := s.end.Write(stalled[:3]); err != nil {
		t.Fatal(err)
	}
	s.board.Step()
	s.now = s.now.Add(DefaultFrameTimeout)
	s.board.Step()

	s.send(wire.CmdLEDPadUpdate, []byte{6, 0x00, 0x7F, 0x00})
	if c, _ := s.board.Colors().Pad(6); c.G == 0 {
		t.Errorf("pad 6 = %s, want green after the stalled frame expired", c)
	}
	if c, _ := s.board.Colors().Pad(5); c.R != 0 {
		t.Errorf("pad 5 = %s, want the stalled frame dropped", c)
	}
}
