// Package app assembles the bridge: the grid board and GUI links, the DAW
// session, the router and the transports they run over, driven by one
// cooperative tick loop.
//
// All protocol state is owned by the goroutine calling Step or Run.
// Transports may read in the background, but they only hand bytes over
// through their non-blocking Poll.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/capture"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/config"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/fader"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/link"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/monitor"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/router"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
	"go.uber.org/zap"
)

// statusInterval is how often a status snapshot is published.
const statusInterval = 100 * time.Millisecond

// ErrClientGone is reported when the GUI endpoint loses its client.
var ErrClientGone = errors.New("gui client went away")

// Transports are the byte carriers of the three links. GUI may be nil.
type Transports struct {
	Grid transport.Stream
	GUI  transport.Stream
	DAW  transport.MessagePort
}

// Options carries the collaborators of an App. Zero fields take defaults.
type Options struct {
	Sink    telemetry.Sink
	LEDs    color.LEDDriver
	Capture *capture.Writer
	Now     func() time.Time

	// Status, when set, receives a snapshot every statusInterval.
	Status func(monitor.Status)
}

// Optional transport capabilities
type (
	clientCounter interface{ Detached() uint64 }
	dropCounter   interface{ Dropped() uint64 }
	errorReporter interface{ Err() error }
)

// stream is one wire-frame link with its receiver.
type stream struct {
	name     string
	t        transport.Stream
	link     *link.Link
	rx       *wire.Receiver
	lastByte time.Time
	failed   bool
	handle   func(wire.Frame) error
}

// App is the running bridge.
type App struct {
	cfg     *config.Config
	tr      Transports
	now     func() time.Time
	sink    telemetry.Sink
	capture *capture.Writer
	status  func(monitor.Status)
	log     *zap.Logger

	grid *stream
	gui  *stream
	daw  *link.DAWSession

	router *router.Router
	faders *fader.Engine
	colors *color.Pipeline
	ring   *ring.Tracker

	detached   uint64
	lastStatus time.Time
}

// New wires an App over the given transports. Grid and DAW are required.
func New(cfg *config.Config, tr Transports, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tr.Grid == nil || tr.DAW == nil {
		return nil, fmt.Errorf("app: grid and DAW transports are required")
	}

	a := &App{
		cfg:     cfg,
		tr:      tr,
		now:     opts.Now,
		sink:    opts.Sink,
		capture: opts.Capture,
		status:  opts.Status,
		log:     logging.Named("app"),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.sink == nil {
		a.sink = telemetry.Nop{}
	}

	timing := link.Timing{
		HandshakeTimeout: cfg.Timing.HandshakeTimeout,
		Backoff:          cfg.Timing.Backoff,
		PingInterval:     cfg.Timing.PingInterval,
		LinkTimeout:      cfg.Timing.LinkTimeout,
	}

	a.grid = a.newStream(router.GridLink, tr.Grid, timing)
	if tr.GUI != nil {
		a.gui = a.newStream(router.GUILink, tr.GUI, timing)
	}
	a.daw = link.NewDAWSession(link.DAWConfig{Now: a.now}, a.capture.Tap(link.DAWLinkName, capture.CodecSysEx, tr.DAW))

	a.faders = fader.New(fader.Config{
		Channels:  cfg.Faders.Count,
		Tolerance: cfg.Faders.Tolerance,
		Threshold: cfg.Faders.Threshold,
	}, nil)
	a.colors = color.New(color.Config{
		Gamma:        cfg.Color.Gamma,
		WhiteBalance: cfg.Color.WhiteBalance,
		Suppression:  cfg.Color.Suppression,
		Now:          a.now,
	}, opts.LEDs)
	a.ring = ring.New(nil)

	rcfg := router.Config{
		Grid:       a.grid.link,
		DAW:        a.daw,
		Faders:     a.faders,
		Colors:     a.colors,
		Ring:       a.ring,
		Sink:       a.sink,
		Now:        a.now,
		RequireGUI: cfg.GUI.Required && a.gui != nil,
	}
	if a.gui != nil {
		rcfg.GUI = a.gui.link
	}
	a.router = router.New(rcfg)

	a.grid.link.SetObserver(a.router)
	a.grid.handle = a.router.HandleGridFrame
	if a.gui != nil {
		a.gui.link.SetObserver(a.router)
		a.gui.handle = a.router.HandleGUIFrame
	}
	a.daw.SetObserver(a.router)
	a.daw.SetGate(link.GateFunc(a.router.Ready))

	return a, nil
}

func (a *App) newStream(name string, t transport.Stream, timing link.Timing) *stream {
	s := &stream{
		name: name,
		t:    t,
		rx:   wire.NewReceiver(wire.DefaultReceiveBuffer),
		link: link.New(link.Config{
			Name:   name,
			Role:   link.Initiator,
			Timing: timing,
			Now:    a.now,
		}, a.capture.Tap(name, capture.CodecWire, t)),
	}
	s.rx.OnError = func(err error) {
		a.log.Debug("Dropped frame", zap.String("link", name), zap.Error(err))
	}
	return s
}

// Router returns the command router.
func (a *App) Router() *router.Router { return a.router }

// Session returns the DAW session.
func (a *App) Session() *link.DAWSession { return a.daw }

// GridLink returns the grid board link.
func (a *App) GridLink() *link.Link { return a.grid.link }

// Step runs one tick: drain every transport, dispatch complete frames, run
// link timers and flush deferred pad colors.
func (a *App) Step() {
	now := a.now()

	a.pollStream(a.grid, now)
	if a.gui != nil {
		a.checkGUIClient()
		a.pollStream(a.gui, now)
	}
	a.pollDAW()

	a.grid.link.Tick()
	if a.gui != nil {
		a.gui.link.Tick()
	}
	a.daw.Tick()
	a.colors.Flush()

	if a.status != nil && now.Sub(a.lastStatus) >= statusInterval {
		a.lastStatus = now
		a.status(a.Status())
	}
}

func (a *App) pollStream(s *stream, now time.Time) {
	if er, ok := s.t.(errorReporter); ok && !s.failed {
		if err := er.Err(); err != nil {
			s.failed = true
			a.emit(telemetry.KindWarning, s.name, fmt.Sprintf("transport failed: %v", err))
			s.link.Lost(err)
		}
	}

	var frames []wire.Frame
	if data := s.t.Poll(); len(data) > 0 {
		s.lastByte = now
		frames = s.rx.Feed(data)
	} else if s.rx.Pending() > 0 && now.Sub(s.lastByte) >= a.cfg.Timing.FrameTimeout {
		frames = s.rx.Expire()
	}

	for _, f := range frames {
		a.capture.Wire(s.name, capture.In, f)
		logging.LogFrame("rx", s.name, f.Command.String(), f.Payload)
		if s.link.HandleFrame(f) {
			continue
		}
		if !s.link.Connected() {
			a.log.Debug("Frame on unconnected link dropped",
				zap.String("link", s.name),
				zap.String("command", f.Command.String()),
			)
			continue
		}
		if err := s.handle(f); err != nil {
			a.logRouteError(s.name, f.Command.String(), err)
		}
	}
}

// checkGUIClient drops the GUI link when the endpoint lost its client, so
// a reconnecting GUI gets a fresh handshake and a full replay.
func (a *App) checkGUIClient() {
	cc, ok := a.gui.t.(clientCounter)
	if !ok {
		return
	}
	if n := cc.Detached(); n != a.detached {
		a.detached = n
		a.gui.rx.Reset()
		a.gui.link.Lost(ErrClientGone)
	}
}

func (a *App) pollDAW() {
	for _, raw := range a.tr.DAW.Poll() {
		a.capture.Raw(link.DAWLinkName, capture.In, capture.CodecSysEx, raw)

		m, err := sysex.Decode(raw)
		if err != nil {
			a.log.Debug("Dropped DAW message", zap.Error(err))
			continue
		}
		m = m.Canonical()
		logging.LogFrame("rx", link.DAWLinkName, m.Command.String(), m.Payload)

		if a.daw.HandleMessage(m) {
			continue
		}
		if !a.daw.Connected() {
			a.log.Debug("DAW message before handshake dropped", zap.String("command", m.Command.String()))
			continue
		}
		if err := a.router.HandleDAWMessage(m); err != nil {
			a.logRouteError(link.DAWLinkName, m.Command.String(), err)
		}
	}
}

func (a *App) logRouteError(name, cmd string, err error) {
	fields := []zap.Field{zap.String("link", name), zap.String("command", cmd), zap.Error(err)}
	if errors.Is(err, protocol.ErrUnknownCommand) {
		a.log.Debug("Unknown command ignored", fields...)
		return
	}
	a.log.Warn("Frame rejected", fields...)
}

// Status returns a snapshot for the monitor. Call it from the tick
// goroutine.
func (a *App) Status() monitor.Status {
	links := []link.Snapshot{a.grid.link.Snapshot()}
	if a.gui != nil {
		links = append(links, a.gui.link.Snapshot())
	}
	links = append(links, a.daw.Snapshot())

	cache := a.router.Cache()
	tempo, hasTempo := cache.Tempo()
	playing, recording := cache.Transport()

	return monitor.Status{
		Links:         links,
		Ring:          a.ring.Window(),
		RingConfirmed: a.ring.Confirmed(),
		FaderMode:     a.faders.Mode(),
		Faders:        a.faders.Channels(),
		Tempo:         tempo,
		HasTempo:      hasTempo,
		Playing:       playing,
		Recording:     recording,
		Dropped:       a.dropped(),
	}
}

func (a *App) dropped() uint64 {
	var n uint64
	for _, s := range []*stream{a.grid, a.gui} {
		if s == nil {
			continue
		}
		st := s.rx.Stats()
		n += st.Framing + st.Checksum + st.Length
		if dc, ok := s.t.(dropCounter); ok {
			n += dc.Dropped()
		}
	}
	if dc, ok := a.tr.DAW.(dropCounter); ok {
		n += dc.Dropped()
	}
	return n
}

// Run steps the bridge every tick until ctx is cancelled, then closes the
// links.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Timing.Tick)
	defer ticker.Stop()

	a.log.Info("Bridge running", zap.Duration("tick", a.cfg.Timing.Tick))
	for {
		select {
		case <-ctx.Done():
			a.Close()
			return nil
		case <-ticker.C:
			a.Step()
		}
	}
}

// Close sends best-effort Disconnect notices and closes every transport.
func (a *App) Close() {
	a.grid.link.Close()
	if a.gui != nil {
		a.gui.link.Close()
	}
	a.daw.Close()

	closers := []interface{ Close() error }{a.tr.Grid, a.tr.DAW}
	if a.tr.GUI != nil {
		closers = append(closers, a.tr.GUI)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			a.log.Debug("Close failed", zap.Error(err))
		}
	}
}

func (a *App) emit(kind telemetry.Kind, source, msg string) {
	a.sink.Emit(telemetry.Event{Time: a.now(), Kind: kind, Source: source, Message: msg})
}
