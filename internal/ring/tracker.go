// Package ring tracks the session ring: the window of the DAW's track and
// scene matrix currently shown on the pad grid.
//
// Local navigation moves the window provisionally and asks the DAW to move
// one step per unit. The DAW answers with an absolute position broadcast,
// which replaces the local window wholesale.
package ring

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
)

// Window geometry
const (
	DefaultWidth  = 8
	DefaultHeight = 4

	// PayloadSize is the length of a position broadcast:
	// trackMSB trackLSB sceneMSB sceneLSB width height overview
	PayloadSize = 7
)

// Direction is one navigation step sent to the DAW.
type Direction byte

const (
	Left  Direction = 0
	Right Direction = 1
	Up    Direction = 2
	Down  Direction = 3
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", byte(d))
	}
}

// Navigator asks the DAW to move the ring one step.
type Navigator interface {
	Navigate(Direction) error
}

// Window is the ring position. Overview is reserved and always zero.
type Window struct {
	Track    int
	Scene    int
	Width    int
	Height   int
	Overview byte
}

func (w Window) String() string {
	return fmt.Sprintf("tracks %d-%d, scenes %d-%d", w.Track, w.Track+w.Width-1, w.Scene, w.Scene+w.Height-1)
}

// Tracker holds the current window.
type Tracker struct {
	win       Window
	nav       Navigator
	confirmed bool
}

// New creates a tracker at the origin with the default geometry.
func New(nav Navigator) *Tracker {
	return &Tracker{
		win: Window{Width: DefaultWidth, Height: DefaultHeight},
		nav: nav,
	}
}

// SetNavigator replaces the navigator.
func (t *Tracker) SetNavigator(nav Navigator) { t.nav = nav }

// Window returns the current window.
func (t *Tracker) Window() Window { return t.win }

// Confirmed reports whether the window came from a DAW broadcast rather
// than local navigation.
func (t *Tracker) Confirmed() bool { return t.confirmed }

// Shift moves the window by dTrack tracks and dScene scenes, sending one
// navigation step per unit. Positive dScene moves down. The provisional
// window never goes below zero. The first navigator error stops the shift.
func (t *Tracker) Shift(dTrack, dScene int) error {
	steps := []struct {
		n       int
		pos     Direction
		neg     Direction
		advance func(int)
	}{
		{dTrack, Right, Left, func(d int) { t.win.Track = max(0, t.win.Track+d) }},
		{dScene, Down, Up, func(d int) { t.win.Scene = max(0, t.win.Scene+d) }},
	}

	for _, s := range steps {
		dir, unit, n := s.pos, 1, s.n
		if n < 0 {
			dir, unit, n = s.neg, -1, -n
		}
		for i := 0; i < n; i++ {
			if t.nav != nil {
				if err := t.nav.Navigate(dir); err != nil {
					return fmt.Errorf("navigate %s: %w", dir, err)
				}
			}
			s.advance(unit)
			t.confirmed = false
		}
	}
	return nil
}

// Apply replaces the window from a DAW position broadcast. A zero width or
// height keeps the current one. The overview byte is ignored.
func (t *Tracker) Apply(payload []byte) error {
	if len(payload) < PayloadSize {
		return fmt.Errorf("ring position %d bytes (want %d): %w", len(payload), PayloadSize, protocol.ErrLengthMismatch)
	}
	w := Window{
		Track:  int(payload[0]&0x7F)<<7 | int(payload[1]&0x7F),
		Scene:  int(payload[2]&0x7F)<<7 | int(payload[3]&0x7F),
		Width:  int(payload[4] & 0x7F),
		Height: int(payload[5] & 0x7F),
	}
	if w.Width == 0 {
		w.Width = t.win.Width
	}
	if w.Height == 0 {
		w.Height = t.win.Height
	}
	t.win = w
	t.confirmed = true
	return nil
}

// Payload encodes the window as a position broadcast with overview zero.
func (t *Tracker) Payload() []byte {
	return []byte{
		byte(t.win.Track>>7) & 0x7F, byte(t.win.Track) & 0x7F,
		byte(t.win.Scene>>7) & 0x7F, byte(t.win.Scene) & 0x7F,
		byte(t.win.Width) & 0x7F,
		byte(t.win.Height) & 0x7F,
		0,
	}
}

// PadIndex maps an absolute track and scene onto a pad, scene-major. It
// reports false when the cell is outside the window.
func (t *Tracker) PadIndex(track, scene int) (int, bool) {
	rt, rs := track-t.win.Track, scene-t.win.Scene
	if rt < 0 || rt >= DefaultWidth || rs < 0 || rs >= DefaultHeight {
		return 0, false
	}
	return rs*DefaultWidth + rt, true
}

// PadCoords maps a pad onto the absolute track and scene it shows.
func (t *Tracker) PadCoords(pad int) (track, scene int) {
	return t.win.Track + pad%DefaultWidth, t.win.Scene + pad/DefaultWidth
}
