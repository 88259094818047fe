package link

import (
	"fmt"
	"io"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"go.uber.org/zap"
)

// DAWLinkName is the name DAWSession reports to its observer.
const DAWLinkName = "daw"

// Grid watchdog defaults
const (
	DefaultGridWarnDelay    = 2 * time.Second
	DefaultGridWarnInterval = 2 * time.Second
	DefaultGridWarnLimit    = 3
)

// Gate reports whether the hardware links the DAW depends on are up.
type Gate interface {
	Ready() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

func (f GateFunc) Ready() bool { return f() }

// GridWatcher is an optional Observer extension notified when the DAW has
// been connected for a while without sending a grid.
type GridWatcher interface {
	GridMissing(attempt int)
}

// handshakeAck is the payload of the acknowledgement sent to the DAW.
var handshakeAck = []byte("TS")

// handshakeAckSeq is the fixed sequence number of the acknowledgement.
const handshakeAckSeq = 0x01

// DAWConfig configures a DAWSession.
type DAWConfig struct {
	Gate     Gate
	Observer Observer
	Now      func() time.Time

	GridWarnDelay    time.Duration
	GridWarnInterval time.Duration
	GridWarnLimit    int
}

// DAWSession is the asymmetric DAW link. It never initiates. It answers a
// DAW handshake only when Gate is ready.
type DAWSession struct {
	gate     Gate
	observer Observer
	now      func() time.Time
	w        io.Writer
	seq      sysex.Sequencer
	log      *zap.Logger

	warnDelay    time.Duration
	warnInterval time.Duration
	warnLimit    int

	connected   bool
	connectedAt time.Time
	lastRx      time.Time
	lastTx      time.Time
	gridSeen    bool
	warnings    int
	lastWarn    time.Time
	withheld    int
}

// NewDAWSession creates a disconnected session writing SysEx to w.
func NewDAWSession(cfg DAWConfig, w io.Writer) *DAWSession {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &DAWSession{
		gate:         cfg.Gate,
		observer:     cfg.Observer,
		now:          now,
		w:            w,
		log:          logging.Named("daw"),
		warnDelay:    cfg.GridWarnDelay,
		warnInterval: cfg.GridWarnInterval,
		warnLimit:    cfg.GridWarnLimit,
	}
	if s.warnDelay <= 0 {
		s.warnDelay = DefaultGridWarnDelay
	}
	if s.warnInterval <= 0 {
		s.warnInterval = DefaultGridWarnInterval
	}
	if s.warnLimit <= 0 {
		s.warnLimit = DefaultGridWarnLimit
	}
	return s
}

// SetObserver replaces the observer.
func (s *DAWSession) SetObserver(o Observer) { s.observer = o }

// SetGate replaces the readiness gate.
func (s *DAWSession) SetGate(g Gate) { s.gate = g }

func (s *DAWSession) Connected() bool { return s.connected }

// Withheld returns how many handshakes were left unanswered because the
// gate was not ready.
func (s *DAWSession) Withheld() int { return s.withheld }

// GridSeen reports whether a grid arrived since the last acknowledgement.
func (s *DAWSession) GridSeen() bool { return s.gridSeen }

// Snapshot returns the session bookkeeping in link form.
func (s *DAWSession) Snapshot() Snapshot {
	st := Disconnected
	if s.connected {
		st = Connected
	}
	return Snapshot{Name: DAWLinkName, State: st, LastTx: s.lastTx, LastRx: s.lastRx}
}

// HandleMessage consumes session management messages and returns false for
// everything else. The message must already be canonical.
func (s *DAWSession) HandleMessage(m sysex.Message) bool {
	now := s.now()
	s.lastRx = now

	switch m.Command {
	case sysex.CmdHandshake:
		s.handshake(now)
		return true

	case sysex.CmdPing:
		if s.connected {
			if err := s.Send(sysex.CmdPing, nil); err != nil {
				s.log.Debug("Ping reply failed", zap.Error(err))
			}
		}
		return true

	case sysex.CmdDisconnect:
		if s.connected {
			s.connected = false
			s.log.Info("DAW disconnected")
			if s.observer != nil {
				s.observer.LinkDisconnected(DAWLinkName, fmt.Errorf("%s: %w", DAWLinkName, ErrPeerDisconnected))
			}
		}
		return true
	}

	return false
}

func (s *DAWSession) handshake(now time.Time) {
	if s.gate != nil && !s.gate.Ready() {
		s.withheld++
		s.log.Debug("Handshake withheld, hardware links not ready", zap.Int("withheld", s.withheld))
		return
	}

	msg, err := sysex.Encode(sysex.CmdHandshake, handshakeAckSeq, handshakeAck)
	if err == nil {
		err = s.write(msg)
	}
	if err != nil {
		s.log.Warn("Handshake acknowledgement failed", zap.Error(err))
		return
	}

	s.gridSeen = false
	s.warnings = 0
	s.connectedAt = now
	if s.connected {
		return
	}
	s.connected = true
	s.log.Info("DAW connected")
	if s.observer != nil {
		s.observer.LinkConnected(DAWLinkName)
	}
}

// MarkGrid records that a grid update arrived from the DAW. It reports
// whether this is the first grid since the last acknowledgement.
func (s *DAWSession) MarkGrid() bool {
	first := !s.gridSeen
	s.gridSeen = true
	return first
}

// Tick runs the grid watchdog.
func (s *DAWSession) Tick() {
	if !s.connected || s.gridSeen || s.warnings >= s.warnLimit {
		return
	}
	now := s.now()
	if now.Sub(s.connectedAt) < s.warnDelay {
		return
	}
	if s.warnings > 0 && now.Sub(s.lastWarn) < s.warnInterval {
		return
	}
	s.warnings++
	s.lastWarn = now
	s.log.Warn("DAW connected but no grid received",
		zap.Int("attempt", s.warnings),
		zap.Duration("since_connect", now.Sub(s.connectedAt)),
	)
	if gw, ok := s.observer.(GridWatcher); ok {
		gw.GridMissing(s.warnings)
	}
}

// Send writes an extended message with the next sequence number. Messages
// are refused with ErrNotConnected until the DAW handshake was answered.
func (s *DAWSession) Send(cmd sysex.Command, payload []byte) error {
	if !s.connected {
		return fmt.Errorf("%s: send %s: %w", DAWLinkName, cmd, ErrNotConnected)
	}
	msg, err := sysex.Encode(cmd, s.seq.Next(), payload)
	if err != nil {
		return err
	}
	if err := s.write(msg); err != nil {
		return fmt.Errorf("%s: write %s: %w", DAWLinkName, cmd, err)
	}
	logging.LogFrame("tx", DAWLinkName, cmd.String(), payload)
	return nil
}

// Close drops the session without notifying the observer.
func (s *DAWSession) Close() {
	s.connected = false
}

func (s *DAWSession) write(msg []byte) error {
	if _, err := s.w.Write(msg); err != nil {
		return err
	}
	s.lastTx = s.now()
	return nil
}
