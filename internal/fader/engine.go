// Package fader implements soft takeover for the non-motorized faders.
//
// A fader only takes control of its parameter once its physical position
// comes within a threshold of the parameter's current value in the DAW.
// Until then moves are swallowed, so a fader left at the bottom never
// slams a loud track to silence after a bank switch.
package fader

import (
	"fmt"
)

// Defaults
const (
	DefaultChannels  = 4
	DefaultTolerance = 2
	DefaultThreshold = 3

	MaxValue = 127
	// Scale14 maps a 7-bit value onto the 14-bit range: 127*129 = 16383.
	Scale14 = 129
)

// Param is the DAW parameter a fader drives.
type Param int

const (
	ParamVolume Param = iota
	ParamPan
	ParamSendA
	ParamSendB
	ParamSendC
	ParamSendD
)

func (p Param) String() string {
	switch p {
	case ParamVolume:
		return "volume"
	case ParamPan:
		return "pan"
	case ParamSendA:
		return "send-a"
	case ParamSendB:
		return "send-b"
	case ParamSendC:
		return "send-c"
	case ParamSendD:
		return "send-d"
	default:
		return fmt.Sprintf("param(%d)", int(p))
	}
}

// SendIndex returns the send slot of a send parameter.
func (p Param) SendIndex() (int, bool) {
	if p >= ParamSendA && p <= ParamSendD {
		return int(p - ParamSendA), true
	}
	return 0, false
}

// ParamForSend maps a send slot onto its parameter.
func ParamForSend(idx int) (Param, bool) {
	if idx < 0 || idx > 3 {
		return 0, false
	}
	return ParamSendA + Param(idx), true
}

// Mode is the mixer parameter mode selected on the panel.
type Mode int

const (
	ModeVolumePan Mode = iota
	ModeSendsAB
	ModeSendsCD
	ModeMasterReturns
)

func (m Mode) String() string {
	switch m {
	case ModeVolumePan:
		return "volume-pan"
	case ModeSendsAB:
		return "sends-ab"
	case ModeSendsCD:
		return "sends-cd"
	case ModeMasterReturns:
		return "master-returns"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Param returns the parameter faders drive in mode m.
func (m Mode) Param() Param {
	switch m {
	case ModeSendsAB:
		return ParamSendA
	case ModeSendsCD:
		return ParamSendC
	default:
		return ParamVolume
	}
}

// Listener receives fader output. Value is already scaled to 14 bits.
type Listener interface {
	FaderMoved(channel int, param Param, track int, value int)
	PickupChanged(channel int, needsPickup bool)
}

// Config configures an Engine. Zero fields take the defaults.
type Config struct {
	Channels  int
	Tolerance int
	Threshold int
}

// Channel is the state of one physical fader.
type Channel struct {
	Physical int
	Target   int
	PickedUp bool
	Track    int

	seen bool
}

type targetKey struct {
	param Param
	track int
}

// Engine tracks pickup for every fader.
type Engine struct {
	tolerance int
	threshold int
	listener  Listener

	channels   []Channel
	firstTrack int
	mode       Mode
	targets    map[targetKey]int
}

// New creates an engine with faders assigned to tracks 0..n-1 in volume
// mode. Every fader starts without pickup.
func New(cfg Config, l Listener) *Engine {
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	e := &Engine{
		tolerance: cfg.Tolerance,
		threshold: cfg.Threshold,
		listener:  l,
		channels:  make([]Channel, cfg.Channels),
		targets:   make(map[targetKey]int),
	}
	for i := range e.channels {
		e.channels[i].Track = i
	}
	return e
}

// SetListener replaces the listener.
func (e *Engine) SetListener(l Listener) { e.listener = l }

// NumChannels returns the number of faders.
func (e *Engine) NumChannels() int { return len(e.channels) }

// Mode returns the current parameter mode.
func (e *Engine) Mode() Mode { return e.mode }

// FirstTrack returns the track assigned to fader 0.
func (e *Engine) FirstTrack() int { return e.firstTrack }

// Channels returns a copy of every channel.
func (e *Engine) Channels() []Channel {
	out := make([]Channel, len(e.channels))
	copy(out, e.channels)
	return out
}

// UpdateRaw feeds a 12-bit ADC reading.
func (e *Engine) UpdateRaw(ch, raw int) error {
	if raw < 0 {
		raw = 0
	}
	return e.Update(ch, clamp(raw>>5))
}

// Update feeds a quantized 0..127 reading. Readings within the noise
// tolerance of the last accepted one are ignored. Before pickup, a reading
// is forwarded only if it brings the fader within the threshold of its
// target.
func (e *Engine) Update(ch, value int) error {
	if ch < 0 || ch >= len(e.channels) {
		return fmt.Errorf("fader channel %d out of range [0,%d)", ch, len(e.channels))
	}
	value = clamp(value)

	c := &e.channels[ch]
	if c.seen && abs(value-c.Physical) <= e.tolerance {
		return nil
	}
	c.Physical = value
	c.seen = true

	if !c.PickedUp {
		if abs(c.Physical-c.Target) > e.threshold {
			return nil
		}
		c.PickedUp = true
		e.notifyPickup(ch, false)
	}

	c.Target = value
	e.targets[targetKey{e.mode.Param(), c.Track}] = value
	if e.listener != nil {
		e.listener.FaderMoved(ch, e.mode.Param(), c.Track, value*Scale14)
	}
	return nil
}

// SetTarget records the DAW's value for a parameter. Value is 7-bit. When
// the parameter is on a fader, its target changes and pickup is checked
// against the current physical position.
func (e *Engine) SetTarget(param Param, track, value int) {
	value = clamp(value)
	e.targets[targetKey{param, track}] = value
	if param != e.mode.Param() {
		return
	}
	for i := range e.channels {
		if e.channels[i].Track == track {
			e.channels[i].Target = value
			e.checkPickup(i)
		}
	}
}

// SetTarget14 records a 14-bit value from the DAW.
func (e *Engine) SetTarget14(param Param, track, value14 int) {
	e.SetTarget(param, track, value14/Scale14)
}

// SetBank assigns fader i to track first+i.
func (e *Engine) SetBank(first int) {
	if first < 0 {
		first = 0
	}
	e.firstTrack = first
	e.reassign()
}

// SetMode switches the parameter the faders drive.
func (e *Engine) SetMode(m Mode) {
	e.mode = m
	e.reassign()
}

// reassign drops pickup on every fader, publishes that each needs pickup,
// and re-asserts pickup at once where the fader already sits on its new
// target.
func (e *Engine) reassign() {
	param := e.mode.Param()
	for i := range e.channels {
		c := &e.channels[i]
		c.Track = e.firstTrack + i
		c.Target = e.targets[targetKey{param, c.Track}]
		c.PickedUp = false
		e.notifyPickup(i, true)
	}
	for i := range e.channels {
		e.checkPickup(i)
	}
}

func (e *Engine) checkPickup(i int) {
	c := &e.channels[i]
	if c.PickedUp || !c.seen {
		return
	}
	if abs(c.Physical-c.Target) <= e.threshold {
		c.PickedUp = true
		e.notifyPickup(i, false)
	}
}

func (e *Engine) notifyPickup(ch int, needs bool) {
	if e.listener != nil {
		e.listener.PickupChanged(ch, needs)
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
