// Package gridboard simulates the grid board: the pad, fader and encoder
// controller on the far side of the bridge's serial link.
//
// A Board answers the bridge handshake, renders LED frames through a color
// pipeline and turns simulated key presses, fader moves and encoder turns
// into the frames the real firmware sends.
package gridboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
	"go.uber.org/zap"
)

// LinkName is the name the board's link reports.
const LinkName = "board"

// DefaultFrameTimeout is how long a partial frame may sit without new bytes.
const DefaultFrameTimeout = 50 * time.Millisecond

// Clip states carried by LEDClipState
const (
	ClipEmpty     byte = 0x00
	ClipStopped   byte = 0x01
	ClipPlaying   byte = 0x02
	ClipQueued    byte = 0x03
	ClipRecording byte = 0x04
)

// ErrKeysDisabled is returned for pad presses before the bridge enabled
// key scanning.
var ErrKeysDisabled = errors.New("gridboard: keys disabled")

// Config configures a Board. Zero fields take the defaults.
type Config struct {
	Timing        link.Timing
	Color         color.Config
	ReceiveBuffer int
	FrameTimeout  time.Duration // Partial frames idle this long are dropped
	Sink          telemetry.Sink
	Now           func() time.Time
}

// Board is a simulated grid board. It is not safe for concurrent use; the
// owner calls Step from one goroutine.
type Board struct {
	stream transport.Stream
	link   *link.Link
	rx     *wire.Receiver
	colors *color.Pipeline
	ring   *ring.Tracker
	sink   telemetry.Sink
	now    func() time.Time
	log    *zap.Logger

	frameTimeout time.Duration
	lastByte     time.Time

	keysEnabled bool
	animations  int
	clipStates  [color.NumPads]byte
	uiState     map[byte]byte
}

// New creates a board speaking over s and drawing on d. A nil driver only
// tracks pad colors.
func New(cfg Config, s transport.Stream, d color.LEDDriver) *Board {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Color.Now == nil {
		cfg.Color.Now = now
	}
	size := cfg.ReceiveBuffer
	if size <= 0 {
		size = wire.DefaultReceiveBuffer
	}
	frameTimeout := cfg.FrameTimeout
	if frameTimeout <= 0 {
		frameTimeout = DefaultFrameTimeout
	}
	b := &Board{
		stream:       s,
		rx:           wire.NewReceiver(size),
		colors:       color.New(cfg.Color, d),
		ring:         ring.New(nil),
		sink:         cfg.Sink,
		now:          now,
		log:          logging.Named("gridboard"),
		frameTimeout: frameTimeout,
		uiState:      make(map[byte]byte),
	}
	if b.sink == nil {
		b.sink = telemetry.Nop{}
	}
	b.link = link.New(link.Config{
		Name:     LinkName,
		Role:     link.Responder,
		Timing:   cfg.Timing,
		Observer: b,
		Now:      now,
	}, s)
	b.rx.OnError = func(err error) {
		b.log.Debug("Dropped frame", zap.Error(err))
	}
	return b
}

// Step drains the stream, handles every complete frame, runs the link
// timers and flushes deferred pad colors.
func (b *Board) Step() {
	now := b.now()
	if data := b.stream.Poll(); len(data) > 0 {
		b.lastByte = now
		b.handleFrames(b.rx.Feed(data))
	} else if b.rx.Pending() > 0 && now.Sub(b.lastByte) >= b.frameTimeout {
		b.handleFrames(b.rx.Expire())
	}
	b.link.Tick()
	b.colors.Flush()
}

func (b *Board) handleFrames(frames []wire.Frame) {
	for _, f := range frames {
		logging.LogFrame("rx", LinkName, f.Command.String(), f.Payload)
		if b.link.HandleFrame(f) {
			continue
		}
		if !b.link.Connected() {
			b.log.Debug("Frame before handshake dropped", zap.String("command", f.Command.String()))
			continue
		}
		if err := b.HandleFrame(f); err != nil {
			b.log.Debug("Frame not handled", zap.String("command", f.Command.String()), zap.Error(err))
		}
	}
}

// HandleFrame applies one bridge-to-board data frame.
func (b *Board) HandleFrame(f wire.Frame) error {
	p := f.Payload

	switch f.Command {
	case wire.CmdLEDGridUpdate, wire.CmdLEDGridUpdate14:
		return b.colors.ApplyBulk(p)

	case wire.CmdLEDPadUpdate:
		if len(p) < 4 {
			return lengthError(f.Command, len(p), 4)
		}
		return b.colors.ApplyPadFast(int(p[0]), p[1:4])

	case wire.CmdLEDPadUpdate14:
		if len(p) < 7 {
			return lengthError(f.Command, len(p), 7)
		}
		return b.colors.ApplyPadPrecise(int(p[0]), p[1:7])

	case wire.CmdLEDClipState:
		if len(p) < 2 {
			return lengthError(f.Command, len(p), 2)
		}
		if int(p[0]) >= color.NumPads {
			return fmt.Errorf("clip state pad %d: %w", p[0], color.ErrPadOutOfRange)
		}
		b.clipStates[p[0]] = p[1]

	case wire.CmdLEDUIState:
		if len(p) < 2 {
			return lengthError(f.Command, len(p), 2)
		}
		b.uiState[p[0]] = p[1]

	case wire.CmdRingPosition:
		if err := b.ring.Apply(p); err != nil {
			return err
		}
		b.emit(telemetry.KindRing, b.ring.Window().String())

	case wire.CmdEnableKeys:
		b.keysEnabled = true
		b.emit(telemetry.KindSession, "keys enabled")

	case wire.CmdDisableKeys:
		b.keysEnabled = false
		b.emit(telemetry.KindSession, "keys disabled")

	case wire.CmdConnectionAnimation:
		b.animations++

	default:
		return fmt.Errorf("board: %s: %w", f.Command, protocol.ErrUnknownCommand)
	}
	return nil
}

// LinkConnected implements link.Observer.
func (b *Board) LinkConnected(name string) {
	b.emit(telemetry.KindLink, "connected to bridge")
}

// LinkDisconnected implements link.Observer. The board blanks its pads and
// stops scanning keys until the bridge enables them again.
func (b *Board) LinkDisconnected(name string, err error) {
	b.keysEnabled = false
	b.colors.Clear()
	b.emit(telemetry.KindLink, fmt.Sprintf("disconnected: %v", err))
}

// Close sends a best-effort Disconnect and closes the stream.
func (b *Board) Close() error {
	b.link.Close()
	return b.stream.Close()
}

// State returns the link state.
func (b *Board) State() link.State { return b.link.State() }

// Connected reports whether the bridge handshake completed.
func (b *Board) Connected() bool { return b.link.Connected() }

// KeysEnabled reports whether the bridge enabled key scanning.
func (b *Board) KeysEnabled() bool { return b.keysEnabled }

// Animations returns how many connection animations were requested.
func (b *Board) Animations() int { return b.animations }

// Colors returns the board's color pipeline.
func (b *Board) Colors() *color.Pipeline { return b.colors }

// Window returns the session ring the bridge last broadcast.
func (b *Board) Window() ring.Window { return b.ring.Window() }

// ClipState returns the last clip state sent for pad.
func (b *Board) ClipState(pad int) byte {
	if pad < 0 || pad >= color.NumPads {
		return ClipEmpty
	}
	return b.clipStates[pad]
}

// UIState returns the last state sent for a UI panel LED.
func (b *Board) UIState(panel byte) (byte, bool) {
	v, ok := b.uiState[panel]
	return v, ok
}

func (b *Board) emit(kind telemetry.Kind, msg string) {
	b.sink.Emit(telemetry.Event{Time: b.now(), Kind: kind, Source: LinkName, Message: msg})
}

func lengthError(cmd wire.Command, got, want int) error {
	return fmt.Errorf("%s: %d bytes (want %d): %w", cmd, got, want, protocol.ErrLengthMismatch)
}
