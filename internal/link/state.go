package link

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by Send for data frames on a link that is
	// not connected.
	ErrNotConnected = errors.New("link: not connected")

	// ErrPeerDisconnected is reported to observers when the peer sent a
	// Disconnect notice.
	ErrPeerDisconnected = errors.New("link: peer disconnected")
)

// State is the connection state of one link.
type State int

const (
	Disconnected State = iota
	HandshakePending
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case HandshakePending:
		return "handshake-pending"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Role selects which side of the handshake a link plays.
type Role int

const (
	// Initiator sends handshakes until the peer replies. The bridge uses it
	// for the grid board and GUI links.
	Initiator Role = iota
	// Responder never initiates. It replies to handshakes and echoes pings.
	Responder
)

func (r Role) String() string {
	if r == Responder {
		return "responder"
	}
	return "initiator"
}

// Timing holds the handshake and keepalive intervals.
type Timing struct {
	HandshakeTimeout time.Duration
	Backoff          time.Duration
	PingInterval     time.Duration
	LinkTimeout      time.Duration
}

// DefaultTiming returns the intervals the grid board firmware uses.
func DefaultTiming() Timing {
	return Timing{
		HandshakeTimeout: 1 * time.Second,
		Backoff:          1500 * time.Millisecond,
		PingInterval:     30 * time.Second,
		LinkTimeout:      90 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.HandshakeTimeout <= 0 {
		t.HandshakeTimeout = d.HandshakeTimeout
	}
	if t.Backoff <= 0 {
		t.Backoff = d.Backoff
	}
	if t.PingInterval <= 0 {
		t.PingInterval = d.PingInterval
	}
	if t.LinkTimeout <= 0 {
		t.LinkTimeout = 3 * t.PingInterval
	}
	return t
}

// Observer is notified of connection changes. LinkConnected fires once per
// transition into Connected, never for duplicate handshakes.
type Observer interface {
	LinkConnected(name string)
	LinkDisconnected(name string, err error)
}

// Snapshot is a read-only copy of a link's bookkeeping.
type Snapshot struct {
	Name       string
	State      State
	LastTx     time.Time
	LastRx     time.Time
	RetryCount int
}
