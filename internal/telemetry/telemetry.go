// Package telemetry carries human-readable state-change events from the
// bridge to whoever is watching: the log, the terminal monitor, or both.
package telemetry

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind classifies an event for display.
type Kind int

const (
	KindLink Kind = iota
	KindSession
	KindRing
	KindPickup
	KindTransport
	KindWarning
	KindLog // Log line routed to an event sink
)

func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindSession:
		return "session"
	case KindRing:
		return "ring"
	case KindPickup:
		return "pickup"
	case KindTransport:
		return "transport"
	case KindWarning:
		return "warning"
	case KindLog:
		return "log"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one state change. Source names the link or component.
type Event struct {
	Time    time.Time
	Kind    Kind
	Source  string
	Message string
}

func (e Event) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", e.Time.Format("15:04:05.000"), e.Kind, e.Source, e.Message)
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Emit(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(Event) {}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// LogSink writes events to a zap logger. Warnings are logged at warn level,
// everything else at info.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Emit(e Event) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("source", e.Source),
		zap.String("kind", e.Kind.String()),
	}
	if e.Kind == KindWarning {
		s.Logger.Warn(e.Message, fields...)
		return
	}
	s.Logger.Info(e.Message, fields...)
}

// Recorder keeps every event in memory. Tests use it to assert on the
// sequence of state changes.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// Count returns the number of recorded events of kind k.
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == k {
			n++
		}
	}
	return n
}
