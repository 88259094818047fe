package link

import (
	"testing"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// frameRecorder parses every Write as one wire frame.
type frameRecorder struct {
	t      *testing.T
	frames []wire.Frame
}

func (r *frameRecorder) Write(p []byte) (int, error) {
	f, err := wire.ParseFrame(p)
	if err != nil {
		r.t.Fatalf("link wrote an invalid frame % X: %v", p, err)
	}
	f.Payload = append([]byte(nil), f.Payload...)
	r.frames = append(r.frames, f)
	return len(p), nil
}

func (r *frameRecorder) count(cmd wire.Command) int {
	n := 0
	for _, f := range r.frames {
		if f.Command == cmd {
			n++
		}
	}
	return n
}

func (r *frameRecorder) reset() { r.frames = nil }

// sysexRecorder decodes every Write as one SysEx message.
type sysexRecorder struct {
	t    *testing.T
	raw  [][]byte
	msgs []sysex.Message
}

func (r *sysexRecorder) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	m, err := sysex.Decode(buf)
	if err != nil {
		r.t.Fatalf("session wrote an invalid message % X: %v", p, err)
	}
	r.raw = append(r.raw, buf)
	r.msgs = append(r.msgs, m)
	return len(p), nil
}

type observerEvent struct {
	name      string
	connected bool
	err       error
}

type recordingObserver struct {
	events      []observerEvent
	gridMissing []int
}

func (o *recordingObserver) LinkConnected(name string) {
	o.events = append(o.events, observerEvent{name: name, connected: true})
}

func (o *recordingObserver) LinkDisconnected(name string, err error) {
	o.events = append(o.events, observerEvent{name: name, err: err})
}

func (o *recordingObserver) GridMissing(attempt int) {
	o.gridMissing = append(o.gridMissing, attempt)
}

func (o *recordingObserver) connects() int {
	n := 0
	for _, e := range o.events {
		if e.connected {
			n++
		}
	}
	return n
}
