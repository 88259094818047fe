package link

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"go.uber.org/zap"
)

// Config configures a Link.
type Config struct {
	Name     string
	Role     Role
	Timing   Timing
	Observer Observer
	Now      func() time.Time // Defaults to time.Now
}

// Link is the state machine for one wire-frame link. It owns the link's
// transmit buffer, so only one goroutine may use a Link.
type Link struct {
	name     string
	role     Role
	timing   Timing
	observer Observer
	now      func() time.Time
	w        io.Writer
	log      *zap.Logger

	state       State
	attempted   bool
	lastAttempt time.Time
	lastPing    time.Time
	lastTx      time.Time
	lastRx      time.Time
	retryCount  int

	tx [wire.MaxFrame]byte
}

// New creates a disconnected link that writes frames to w.
func New(cfg Config, w io.Writer) *Link {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Link{
		name:     cfg.Name,
		role:     cfg.Role,
		timing:   cfg.Timing.withDefaults(),
		observer: cfg.Observer,
		now:      now,
		w:        w,
		log:      logging.Named("link").With(zap.String("link", cfg.Name)),
	}
}

// SetObserver replaces the observer. It is used when the observer is built
// after the links it watches.
func (l *Link) SetObserver(o Observer) {
	l.observer = o
}

func (l *Link) Name() string { return l.name }

func (l *Link) State() State { return l.state }

// Connected reports whether the link is in the Connected state.
func (l *Link) Connected() bool { return l.state == Connected }

// Snapshot returns a copy of the link's bookkeeping.
func (l *Link) Snapshot() Snapshot {
	return Snapshot{
		Name:       l.name,
		State:      l.state,
		LastTx:     l.lastTx,
		LastRx:     l.lastRx,
		RetryCount: l.retryCount,
	}
}

// Tick advances timers. It starts handshakes, expires pending handshakes,
// sends pings and detects dead links.
func (l *Link) Tick() {
	now := l.now()

	switch l.state {
	case Disconnected:
		if l.role != Initiator {
			return
		}
		if l.attempted && now.Sub(l.lastAttempt) < l.timing.Backoff {
			return
		}
		l.attempted = true
		l.lastAttempt = now
		l.state = HandshakePending
		if err := l.write(wire.CmdHandshake, wire.HandshakePayload); err != nil {
			l.log.Debug("Handshake send failed", zap.Error(err))
		}

	case HandshakePending:
		if now.Sub(l.lastAttempt) >= l.timing.HandshakeTimeout {
			l.state = Disconnected
			l.retryCount++
			l.log.Debug("Handshake timed out",
				zap.Int("retry", l.retryCount),
				zap.Duration("timeout", l.timing.HandshakeTimeout),
			)
		}

	case Connected:
		if now.Sub(l.lastRx) >= l.timing.LinkTimeout {
			err := fmt.Errorf("%s: no traffic for %s: %w", l.name, now.Sub(l.lastRx), protocol.ErrProtocolTimeout)
			_ = l.write(wire.CmdDisconnect, nil)
			l.drop(err)
			return
		}
		if now.Sub(l.lastPing) >= l.timing.PingInterval {
			l.lastPing = now
			if err := l.write(wire.CmdPing, nil); err != nil {
				l.log.Debug("Ping send failed", zap.Error(err))
			}
		}
	}
}

// HandleFrame consumes link management frames. It returns false for data
// frames, which the caller routes when the link is connected. Every inbound
// frame refreshes the keepalive.
func (l *Link) HandleFrame(f wire.Frame) bool {
	now := l.now()
	l.lastRx = now

	switch f.Command {
	case wire.CmdHandshake:
		if !bytes.Equal(f.Payload, wire.HandshakePayload) {
			l.log.Debug("Unexpected handshake payload", zap.Binary("payload", f.Payload))
		}
		if err := l.write(wire.CmdHandshakeReply, f.Payload); err != nil {
			l.log.Debug("Handshake reply send failed", zap.Error(err))
		}
		l.connect(now)
		return true

	case wire.CmdHandshakeReply:
		// A reply only completes a handshake this side sent. One arriving
		// after the attempt timed out is stale.
		if l.state == Disconnected {
			l.log.Debug("Ignoring handshake reply while disconnected")
			return true
		}
		l.connect(now)
		return true

	case wire.CmdPing:
		if l.role == Responder && l.state == Connected {
			_ = l.write(wire.CmdPing, nil)
		}
		return true

	case wire.CmdDisconnect:
		if l.state != Disconnected {
			l.drop(fmt.Errorf("%s: %w", l.name, ErrPeerDisconnected))
		}
		return true
	}

	return false
}

// Send writes a frame. Data frames are refused with ErrNotConnected unless
// the link is connected; link management frames always go out.
func (l *Link) Send(cmd wire.Command, payload []byte) error {
	if !cmd.IsSystem() && l.state != Connected {
		return fmt.Errorf("%s: send %s: %w", l.name, cmd, ErrNotConnected)
	}
	return l.write(cmd, payload)
}

// Close sends a best-effort Disconnect notice and drops the link without
// notifying the observer.
func (l *Link) Close() {
	if l.state == Connected {
		_ = l.write(wire.CmdDisconnect, nil)
	}
	l.state = Disconnected
	l.attempted = false
}

// Lost drops a connected link whose transport went away. A pending
// handshake is abandoned without notifying the observer.
func (l *Link) Lost(err error) {
	switch l.state {
	case Connected:
		l.drop(fmt.Errorf("%s: transport lost: %w", l.name, err))
	case HandshakePending:
		l.state = Disconnected
	}
}

func (l *Link) write(cmd wire.Command, payload []byte) error {
	n := wire.BuildFrame(l.tx[:], cmd, payload)
	if n == 0 {
		return fmt.Errorf("%s: build %s with %d byte payload: %w", l.name, cmd, len(payload), protocol.ErrLengthMismatch)
	}
	if _, err := l.w.Write(l.tx[:n]); err != nil {
		return fmt.Errorf("%s: write %s: %w", l.name, cmd, err)
	}
	l.lastTx = l.now()
	logging.LogFrame("tx", l.name, cmd.String(), payload)
	return nil
}

func (l *Link) connect(now time.Time) {
	if l.state == Connected {
		return
	}
	l.state = Connected
	l.retryCount = 0
	l.lastPing = now
	l.log.Info("Link connected", zap.String("role", l.role.String()))
	if l.observer != nil {
		l.observer.LinkConnected(l.name)
	}
}

// drop moves to Disconnected. An initiator retries after the backoff.
func (l *Link) drop(err error) {
	l.state = Disconnected
	l.attempted = true
	l.lastAttempt = l.now()
	l.log.Warn("Link disconnected", zap.Error(err))
	if l.observer != nil {
		l.observer.LinkDisconnected(l.name, err)
	}
}
