package link

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
)

func newInitiator(t *testing.T) (*Link, *frameRecorder, *recordingObserver, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rec := &frameRecorder{t: t}
	obs := &recordingObserver{}
	l := New(Config{Name: "grid", Role: Initiator, Observer: obs, Now: clock.Now}, rec)
	return l, rec, obs, clock
}

// connectLink runs the initiator's first handshake and answers it.
func connectLink(t *testing.T, l *Link) {
	t.Helper()
	l.Tick()
	l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply, Payload: wire.HandshakePayload})
	if !l.Connected() {
		t.Fatalf("state after handshake = %s, want connected", l.State())
	}
}

func TestInitiatorHandshake(t *testing.T) {
	l, rec, obs, clock := newInitiator(t)

	if l.State() != Disconnected {
		t.Fatalf("initial state = %s, want disconnected", l.State())
	}

	l.Tick()
	if l.State() != HandshakePending {
		t.Fatalf("state after first tick = %s, want handshake-pending", l.State())
	}
	if len(rec.frames) != 1 || rec.frames[0].Command != wire.CmdHandshake {
		t.Fatalf("frames = %v, want one handshake", rec.frames)
	}
	if !bytes.Equal(rec.frames[0].Payload, wire.HandshakePayload) {
		t.Errorf("handshake payload = %q", rec.frames[0].Payload)
	}

	clock.Advance(200 * time.Millisecond)
	l.Tick()
	if rec.count(wire.CmdHandshake) != 1 {
		t.Errorf("handshake resent while pending")
	}

	l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply, Payload: wire.HandshakePayload})
	if l.State() != Connected {
		t.Fatalf("state after reply = %s, want connected", l.State())
	}
	if obs.connects() != 1 {
		t.Errorf("LinkConnected fired %d times, want 1", obs.connects())
	}
}

func TestHandshakeTimeoutAndBackoff(t *testing.T) {
	l, rec, _, clock := newInitiator(t)

	l.Tick()
	clock.Advance(time.Second)
	l.Tick()
	if l.State() != Disconnected {
		t.Fatalf("state after timeout = %s, want disconnected", l.State())
	}
	if got := l.Snapshot().RetryCount; got != 1 {
		t.Errorf("RetryCount = %d, want 1", got)
	}

	// Backoff runs from the last attempt.
	clock.Advance(400 * time.Millisecond)
	l.Tick()
	if rec.count(wire.CmdHandshake) != 1 {
		t.Fatalf("handshake retried before backoff elapsed")
	}

	clock.Advance(100 * time.Millisecond)
	l.Tick()
	if rec.count(wire.CmdHandshake) != 2 || l.State() != HandshakePending {
		t.Fatalf("handshakes = %d, state = %s; want 2, handshake-pending", rec.count(wire.CmdHandshake), l.State())
	}

	l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply})
	if got := l.Snapshot().RetryCount; got != 0 {
		t.Errorf("RetryCount after connect = %d, want 0", got)
	}
}

func TestLateReplyIgnored(t *testing.T) {
	l, rec, obs, clock := newInitiator(t)

	l.Tick()
	clock.Advance(time.Second)
	l.Tick()
	if l.State() != Disconnected {
		t.Fatalf("state after timeout = %s, want disconnected", l.State())
	}
	disconnects := len(obs.events)

	if !l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply, Payload: wire.HandshakePayload}) {
		t.Fatal("HandleFrame(HandshakeReply) = false")
	}
	if l.State() != Disconnected {
		t.Errorf("state after late reply = %s, want disconnected", l.State())
	}
	if obs.connects() != 0 || len(obs.events) != disconnects {
		t.Errorf("observer events = %+v, want no connect", obs.events)
	}

	// The next attempt still runs on the backoff schedule and connects.
	clock.Advance(DefaultTiming().Backoff)
	l.Tick()
	if rec.count(wire.CmdHandshake) != 2 {
		t.Fatalf("handshakes = %d, want 2", rec.count(wire.CmdHandshake))
	}
	l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply})
	if !l.Connected() {
		t.Errorf("state = %s, want connected", l.State())
	}
}

func TestUnsolicitedHandshakeConnects(t *testing.T) {
	l, rec, obs, _ := newInitiator(t)

	handled := l.HandleFrame(wire.Frame{Command: wire.CmdHandshake, Payload: wire.HandshakePayload})
	if !handled {
		t.Fatal("HandleFrame(Handshake) = false")
	}
	if l.State() != Connected || obs.connects() != 1 {
		t.Fatalf("state = %s, connects = %d", l.State(), obs.connects())
	}
	if rec.count(wire.CmdHandshakeReply) != 1 {
		t.Errorf("HandshakeReply sent %d times, want 1", rec.count(wire.CmdHandshakeReply))
	}
}

func TestDuplicateHandshakeRefreshesOnly(t *testing.T) {
	l, _, obs, clock := newInitiator(t)
	l.HandleFrame(wire.Frame{Command: wire.CmdHandshake})

	clock.Advance(80 * time.Second)
	l.HandleFrame(wire.Frame{Command: wire.CmdHandshake})
	l.HandleFrame(wire.Frame{Command: wire.CmdHandshakeReply})

	if obs.connects() != 1 {
		t.Errorf("LinkConnected fired %d times, want 1", obs.connects())
	}

	// The duplicate refreshed the keepalive, so the link survives past the
	// original 90 s deadline.
	clock.Advance(20 * time.Second)
	l.Tick()
	if l.State() != Connected {
		t.Errorf("state = %s, want connected", l.State())
	}
}

func TestKeepalive(t *testing.T) {
	l, rec, obs, clock := newInitiator(t)
	connectLink(t, l)
	rec.reset()

	clock.Advance(29 * time.Second)
	l.Tick()
	if rec.count(wire.CmdPing) != 0 {
		t.Fatal("ping sent before interval")
	}

	clock.Advance(time.Second)
	l.Tick()
	if rec.count(wire.CmdPing) != 1 {
		t.Fatalf("pings = %d, want 1", rec.count(wire.CmdPing))
	}

	// Inbound traffic of any kind keeps the link alive.
	l.HandleFrame(wire.Frame{Command: wire.CmdFaderRaw, Payload: []byte{0, 0, 0}})
	clock.Advance(89 * time.Second)
	l.Tick()
	if l.State() != Connected {
		t.Fatalf("state = %s, want connected", l.State())
	}

	clock.Advance(time.Second)
	l.Tick()
	if l.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected after timeout", l.State())
	}
	if rec.count(wire.CmdDisconnect) != 1 {
		t.Errorf("Disconnect notices = %d, want 1", rec.count(wire.CmdDisconnect))
	}
	last := obs.events[len(obs.events)-1]
	if last.connected || !errors.Is(last.err, protocol.ErrProtocolTimeout) {
		t.Errorf("last event = %+v, want disconnect with ErrProtocolTimeout", last)
	}

	// Reconnection waits for the backoff.
	l.Tick()
	if l.State() != Disconnected {
		t.Errorf("state = %s, want disconnected during backoff", l.State())
	}
	clock.Advance(1500 * time.Millisecond)
	l.Tick()
	if l.State() != HandshakePending {
		t.Errorf("state = %s, want handshake-pending after backoff", l.State())
	}
}

func TestPeerDisconnect(t *testing.T) {
	l, rec, obs, _ := newInitiator(t)
	connectLink(t, l)
	rec.reset()

	l.HandleFrame(wire.Frame{Command: wire.CmdDisconnect})
	if l.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected", l.State())
	}
	if len(rec.frames) != 0 {
		t.Errorf("link answered a Disconnect with %v", rec.frames)
	}
	last := obs.events[len(obs.events)-1]
	if !errors.Is(last.err, ErrPeerDisconnected) {
		t.Errorf("error = %v, want ErrPeerDisconnected", last.err)
	}
}

func TestSendGate(t *testing.T) {
	l, rec, _, _ := newInitiator(t)

	err := l.Send(wire.CmdLEDGridUpdate, make([]byte, 96))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
	if err := l.Send(wire.CmdPing, nil); err != nil {
		t.Fatalf("Send(Ping) error = %v, system frames bypass the gate", err)
	}

	connectLink(t, l)
	if err := l.Send(wire.CmdEnableKeys, nil); err != nil {
		t.Fatalf("Send() after connect error = %v", err)
	}
	if rec.frames[len(rec.frames)-1].Command != wire.CmdEnableKeys {
		t.Errorf("last frame = %s, want EnableKeys", rec.frames[len(rec.frames)-1].Command)
	}

	if err := l.Send(wire.CmdLEDGridUpdate, make([]byte, 256)); !errors.Is(err, protocol.ErrLengthMismatch) {
		t.Errorf("Send() oversize error = %v, want ErrLengthMismatch", err)
	}
}

func TestDataFrameNotConsumed(t *testing.T) {
	l, _, _, _ := newInitiator(t)
	if l.HandleFrame(wire.Frame{Command: wire.CmdClipLaunch, Payload: []byte{1, 2}}) {
		t.Error("HandleFrame consumed a data frame")
	}
}

func TestResponder(t *testing.T) {
	clock := newFakeClock()
	rec := &frameRecorder{t: t}
	obs := &recordingObserver{}
	l := New(Config{Name: "bridge", Role: Responder, Observer: obs, Now: clock.Now}, rec)

	clock.Advance(10 * time.Second)
	l.Tick()
	if len(rec.frames) != 0 {
		t.Fatalf("responder initiated: %v", rec.frames)
	}

	l.HandleFrame(wire.Frame{Command: wire.CmdHandshake, Payload: wire.HandshakePayload})
	if l.State() != Connected {
		t.Fatalf("state = %s, want connected", l.State())
	}
	if rec.frames[0].Command != wire.CmdHandshakeReply || !bytes.Equal(rec.frames[0].Payload, wire.HandshakePayload) {
		t.Errorf("reply = %s % X, want HandshakeReply echoing the payload", rec.frames[0].Command, rec.frames[0].Payload)
	}

	l.HandleFrame(wire.Frame{Command: wire.CmdPing})
	if rec.count(wire.CmdPing) != 1 {
		t.Errorf("responder echoed %d pings, want 1", rec.count(wire.CmdPing))
	}
}

// Two links wired back to back: the initiator's writes feed the
// responder's receiver and the other way round.
func TestInitiatorResponderPair(t *testing.T) {
	clock := newFakeClock()
	var toResp, toInit bytes.Buffer

	ini := New(Config{Name: "grid", Role: Initiator, Now: clock.Now}, &toResp)
	resp := New(Config{Name: "bridge", Role: Responder, Now: clock.Now}, &toInit)
	respRx := wire.NewReceiver(wire.DefaultReceiveBuffer)
	iniRx := wire.NewReceiver(wire.DefaultReceiveBuffer)

	pump := func() {
		for _, f := range respRx.Feed(toResp.Next(toResp.Len())) {
			resp.HandleFrame(f)
		}
		for _, f := range iniRx.Feed(toInit.Next(toInit.Len())) {
			ini.HandleFrame(f)
		}
	}

	ini.Tick()
	pump()
	if !ini.Connected() || !resp.Connected() {
		t.Fatalf("initiator %s, responder %s; want both connected", ini.State(), resp.State())
	}

	for i := 0; i < 10; i++ {
		clock.Advance(30 * time.Second)
		ini.Tick()
		resp.Tick()
		pump()
	}
	if !ini.Connected() || !resp.Connected() {
		t.Errorf("keepalive failed: initiator %s, responder %s", ini.State(), resp.State())
	}
}

func TestLostTransport(t *testing.T) {
	l, _, obs, clock := newInitiator(t)
	connectLink(t, l)

	l.Lost(errors.New("client closed"))
	if l.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected", l.State())
	}
	if n := len(obs.events); n != 2 || obs.events[1].connected {
		t.Fatalf("observer events = %+v, want connect then disconnect", obs.events)
	}

	clock.Advance(DefaultTiming().Backoff)
	l.Tick()
	if l.State() != HandshakePending {
		t.Errorf("state after backoff = %s, want handshake pending", l.State())
	}
	l.Lost(errors.New("client closed"))
	if l.State() != Disconnected || len(obs.events) != 2 {
		t.Errorf("lost pending handshake: state %s, %d events", l.State(), len(obs.events))
	}
}
