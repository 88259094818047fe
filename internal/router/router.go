// Package router dispatches validated frames between the grid board, the
// GUI and the DAW.
//
// Every inbound frame is handled exactly once: as a local state change
// (fader pickup, pad colors, session ring), as a translation forwarded to
// another link, or as a logged no-op. Link management frames never reach
// the router; the links consume them first.
//
// The router is also the observer of every link, the listener of the fader
// engine and the navigator of the ring tracker, so it is the one place
// where cross-link side effects happen.
package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/fader"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"go.uber.org/zap"
)

// Link names used for observer callbacks.
const (
	GridLink = "grid"
	GUILink  = "gui"
)

// Grid geometry
const (
	GridTracks = ring.DefaultWidth
	GridScenes = ring.DefaultHeight
)

// Sweep color sent once to the grid board after it connects.
var sweepColor = [3]byte{0x00, 0x60, 0x18}

// Peer is a wire-frame link the router can write to.
type Peer interface {
	Send(cmd wire.Command, payload []byte) error
	Connected() bool
}

// DAW is the DAW session as seen by the router.
type DAW interface {
	Send(cmd sysex.Command, payload []byte) error
	Connected() bool
	MarkGrid() bool
}

// Config wires the router to its collaborators. GUI may be nil when no
// GUI link is configured.
type Config struct {
	Grid   Peer
	GUI    Peer
	DAW    DAW
	Faders *fader.Engine
	Colors *color.Pipeline
	Ring   *ring.Tracker
	Sink   telemetry.Sink
	Now    func() time.Time

	// RequireGUI adds the GUI link to the DAW readiness gate.
	RequireGUI bool
}

// Router owns the cross-link state. It is not safe for concurrent use.
type Router struct {
	grid       Peer
	gui        Peer
	daw        DAW
	faders     *fader.Engine
	colors     *color.Pipeline
	ring       *ring.Tracker
	sink       telemetry.Sink
	now        func() time.Time
	requireGUI bool
	log        *zap.Logger

	cache *Cache
}

// New creates a router and registers it as the fader listener and ring
// navigator.
func New(cfg Config) *Router {
	r := &Router{
		grid:       cfg.Grid,
		gui:        cfg.GUI,
		daw:        cfg.DAW,
		faders:     cfg.Faders,
		colors:     cfg.Colors,
		ring:       cfg.Ring,
		sink:       cfg.Sink,
		now:        cfg.Now,
		requireGUI: cfg.RequireGUI,
		log:        logging.Named("router"),
		cache:      NewCache(),
	}
	if r.gui == nil {
		r.gui = offline{}
	}
	if r.sink == nil {
		r.sink = telemetry.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.faders == nil {
		r.faders = fader.New(fader.Config{}, nil)
	}
	if r.colors == nil {
		r.colors = color.New(color.Config{Now: r.now}, nil)
	}
	if r.ring == nil {
		r.ring = ring.New(nil)
	}
	r.faders.SetListener(r)
	r.ring.SetNavigator(r)
	return r
}

// Cache returns the replay cache.
func (r *Router) Cache() *Cache { return r.cache }

// Ready reports whether every hardware link the DAW depends on is
// connected. It is the DAW session's readiness gate.
func (r *Router) Ready() bool {
	if !r.grid.Connected() {
		return false
	}
	return !r.requireGUI || r.gui.Connected()
}

// LinkConnected runs the on-connect side effects for a link.
func (r *Router) LinkConnected(name string) {
	r.emit(telemetry.KindLink, name, "connected")

	switch name {
	case GridLink:
		r.send(r.grid, wire.CmdConnectionAnimation, nil)
		r.send(r.grid, wire.CmdEnableKeys, nil)
		r.send(r.grid, wire.CmdLEDGridUpdate, sweepPayload())
		r.replayGrid(r.grid)
	case GUILink:
		r.replayGUI()
	case link.DAWLinkName:
		r.emit(telemetry.KindSession, name, "DAW session acknowledged")
		r.send(r.grid, wire.CmdEnableKeys, nil)
	}
}

// LinkDisconnected reacts to a link going down. Losing the DAW clears the
// grid and stops key scanning on the grid board.
func (r *Router) LinkDisconnected(name string, err error) {
	msg := "disconnected"
	if err != nil {
		msg = fmt.Sprintf("disconnected: %v", err)
	}
	r.emit(telemetry.KindLink, name, msg)

	if name != link.DAWLinkName {
		return
	}
	r.cache.ClearGrid()
	r.colors.Clear()
	off := make([]byte, color.FastBytes)
	r.send(r.grid, wire.CmdLEDGridUpdate, off)
	r.send(r.gui, wire.CmdLEDGridUpdate, off)
	r.send(r.grid, wire.CmdDisableKeys, nil)
}

// GridMissing is called by the DAW session watchdog.
func (r *Router) GridMissing(attempt int) {
	r.emit(telemetry.KindWarning, link.DAWLinkName, fmt.Sprintf("connected but no grid received (warning %d)", attempt))
}

// FaderMoved forwards a picked-up fader to the DAW.
func (r *Router) FaderMoved(ch int, param fader.Param, track, value int) {
	msb, lsb := color.Split14(value)
	t := byte(track) & 0x7F

	var err error
	switch param {
	case fader.ParamVolume:
		err = r.daw.Send(sysex.CmdMixerVolume, []byte{t, msb, lsb})
	case fader.ParamPan:
		err = r.daw.Send(sysex.CmdMixerPan, []byte{t, msb, lsb})
	default:
		idx, _ := param.SendIndex()
		err = r.daw.Send(sysex.CmdMixerSend, []byte{t, byte(idx), msb, lsb})
	}
	if err != nil {
		r.log.Debug("Fader move not sent", zap.Int("fader", ch), zap.Error(err))
	}
}

// PickupChanged mirrors pickup state to the GUI.
func (r *Router) PickupChanged(ch int, needs bool) {
	r.cache.SetPickup(ch, needs)
	r.send(r.gui, wire.CmdPickupState, []byte{byte(ch), boolByte(needs)})
	if !needs {
		r.emit(telemetry.KindPickup, fmt.Sprintf("fader %d", ch), "picked up")
	}
}

// Navigate sends one ring step to the DAW. A step taken while the DAW is
// offline only moves the provisional window.
func (r *Router) Navigate(d ring.Direction) error {
	return r.sendDAW(sysex.CmdRingNavigate, []byte{byte(d)})
}

// send writes to a peer, skipping peers that are not connected.
func (r *Router) send(p Peer, cmd wire.Command, payload []byte) {
	if !p.Connected() {
		return
	}
	if err := p.Send(cmd, payload); err != nil {
		r.log.Debug("Send failed", zap.String("command", cmd.String()), zap.Error(err))
	}
}

func (r *Router) sendDAW(cmd sysex.Command, payload []byte) error {
	if err := r.daw.Send(cmd, payload); err != nil {
		if errors.Is(err, link.ErrNotConnected) {
			r.log.Debug("DAW not connected, dropping", zap.String("command", cmd.String()))
			return nil
		}
		return err
	}
	return nil
}

func (r *Router) emit(kind telemetry.Kind, source, msg string) {
	r.sink.Emit(telemetry.Event{Time: r.now(), Kind: kind, Source: source, Message: msg})
}

func sweepPayload() []byte {
	p := make([]byte, color.FastBytes)
	for i := 0; i < color.NumPads; i++ {
		copy(p[i*3:], sweepColor[:])
	}
	return p
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// offline stands in for an unconfigured link.
type offline struct{}

func (offline) Send(cmd wire.Command, _ []byte) error {
	return fmt.Errorf("send %s: %w", cmd, link.ErrNotConnected)
}

func (offline) Connected() bool { return false }
