// Package color normalizes pad colors from the DAW into 8-bit RGB for the
// LED driver.
//
// Two input precisions exist. Fast colors carry one 7-bit byte per channel
// (max 127). Precise colors carry two 7-bit bytes per channel, MSB first
// (max 16383). Both go through the same correction: gamma first, then a
// per-channel white balance, each clamped to [0,255].
package color

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
)

// Grid geometry and payload sizes
const (
	NumPads      = 32
	FastBytes    = NumPads * 3 // 96
	PreciseBytes = NumPads * 6 // 192

	FastMax    = 0x7F
	PreciseMax = 0x3FFF
)

// Correction defaults
const (
	DefaultGamma       = 2.2
	DefaultSuppression = 100 * time.Millisecond
)

// DefaultWhiteBalance is applied after gamma. Green LEDs on the pad PCB run
// hot, so green is scaled down.
var DefaultWhiteBalance = [3]float64{1.00, 0.92, 1.00}

// ErrPadOutOfRange is returned for a pad index outside [0, NumPads).
var ErrPadOutOfRange = errors.New("color: pad index out of range")

// RGB is a corrected 8-bit color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// LEDDriver pushes corrected colors to hardware. SetPixel stages a pad and
// Commit makes staged pads visible.
type LEDDriver interface {
	SetPixel(pad int, c RGB)
	Commit()
}

// Config configures a Pipeline. Zero fields take the defaults.
type Config struct {
	Gamma        float64
	WhiteBalance [3]float64
	Suppression  time.Duration
	Now          func() time.Time
}

// Pipeline holds the current color of every pad. It is not safe for
// concurrent use.
type Pipeline struct {
	gamma       float64
	balance     [3]float64
	suppression time.Duration
	now         func() time.Time
	driver      LEDDriver

	pads     [NumPads]RGB
	lastBulk [NumPads]time.Time
	pending  [NumPads]RGB
	hasPend  [NumPads]bool
}

// New creates a pipeline that drives d. A nil driver only tracks state.
func New(cfg Config, d LEDDriver) *Pipeline {
	p := &Pipeline{
		gamma:       cfg.Gamma,
		balance:     cfg.WhiteBalance,
		suppression: cfg.Suppression,
		now:         cfg.Now,
		driver:      d,
	}
	if p.gamma <= 0 {
		p.gamma = DefaultGamma
	}
	if p.balance == ([3]float64{}) {
		p.balance = DefaultWhiteBalance
	}
	if p.suppression <= 0 {
		p.suppression = DefaultSuppression
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Correct converts one raw color with channel maximum max.
func (p *Pipeline) Correct(r, g, b, max int) RGB {
	return RGB{
		R: p.channel(r, max, p.balance[0]),
		G: p.channel(g, max, p.balance[1]),
		B: p.channel(b, max, p.balance[2]),
	}
}

func (p *Pipeline) channel(in, max int, balance float64) uint8 {
	if in <= 0 || max <= 0 {
		return 0
	}
	if in > max {
		in = max
	}
	v := math.Round(255 * math.Pow(float64(in)/float64(max), p.gamma))
	return clamp(math.Round(v * balance))
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

// ApplyBulk applies a whole-grid payload: 96 bytes fast or 192 bytes
// precise. Any other length is rejected before a pad is touched. A pad
// written by a bulk update within the suppression window keeps its color;
// the new color is held as pending until Flush.
func (p *Pipeline) ApplyBulk(payload []byte) error {
	var colors [NumPads]RGB
	switch len(payload) {
	case FastBytes:
		for i := range colors {
			o := i * 3
			colors[i] = p.Correct(int(payload[o]&0x7F), int(payload[o+1]&0x7F), int(payload[o+2]&0x7F), FastMax)
		}
	case PreciseBytes:
		for i := range colors {
			colors[i] = p.correctPrecise(payload[i*6 : i*6+6])
		}
	default:
		return fmt.Errorf("bulk color payload %d bytes (want %d or %d): %w",
			len(payload), FastBytes, PreciseBytes, protocol.ErrLengthMismatch)
	}

	now := p.now()
	changed := false
	for i, c := range colors {
		if !p.lastBulk[i].IsZero() && now.Sub(p.lastBulk[i]) < p.suppression {
			p.pending[i] = c
			p.hasPend[i] = true
			continue
		}
		p.set(i, c)
		p.lastBulk[i] = now
		p.hasPend[i] = false
		changed = true
	}
	if changed {
		p.commit()
	}
	return nil
}

// ApplyPadFast sets one pad from three 7-bit channels. Single-pad updates
// bypass bulk suppression and cancel a pending bulk color.
func (p *Pipeline) ApplyPadFast(pad int, rgb []byte) error {
	if len(rgb) < 3 {
		return fmt.Errorf("fast pad color %d bytes (want 3): %w", len(rgb), protocol.ErrLengthMismatch)
	}
	return p.applyPad(pad, p.Correct(int(rgb[0]&0x7F), int(rgb[1]&0x7F), int(rgb[2]&0x7F), FastMax))
}

// ApplyPadPrecise sets one pad from three MSB/LSB pairs.
func (p *Pipeline) ApplyPadPrecise(pad int, rgb []byte) error {
	if len(rgb) < 6 {
		return fmt.Errorf("precise pad color %d bytes (want 6): %w", len(rgb), protocol.ErrLengthMismatch)
	}
	return p.applyPad(pad, p.correctPrecise(rgb))
}

func (p *Pipeline) applyPad(pad int, c RGB) error {
	if pad < 0 || pad >= NumPads {
		return fmt.Errorf("pad %d: %w", pad, ErrPadOutOfRange)
	}
	p.set(pad, c)
	p.hasPend[pad] = false
	p.commit()
	return nil
}

func (p *Pipeline) correctPrecise(b []byte) RGB {
	return p.Correct(Join14(b[0], b[1]), Join14(b[2], b[3]), Join14(b[4], b[5]), PreciseMax)
}

// Flush applies pending bulk colors whose suppression window has passed.
// It reports whether any pad changed.
func (p *Pipeline) Flush() bool {
	now := p.now()
	changed := false
	for i := range p.pending {
		if !p.hasPend[i] || now.Sub(p.lastBulk[i]) < p.suppression {
			continue
		}
		p.set(i, p.pending[i])
		p.lastBulk[i] = now
		p.hasPend[i] = false
		changed = true
	}
	if changed {
		p.commit()
	}
	return changed
}

// Pending returns the number of pads holding a suppressed bulk color.
func (p *Pipeline) Pending() int {
	n := 0
	for _, ok := range p.hasPend {
		if ok {
			n++
		}
	}
	return n
}

// Clear turns every pad off, dropping pending colors and suppression.
func (p *Pipeline) Clear() {
	for i := range p.pads {
		p.set(i, RGB{})
		p.hasPend[i] = false
		p.lastBulk[i] = time.Time{}
	}
	p.commit()
}

// Pad returns the current color of one pad.
func (p *Pipeline) Pad(pad int) (RGB, error) {
	if pad < 0 || pad >= NumPads {
		return RGB{}, fmt.Errorf("pad %d: %w", pad, ErrPadOutOfRange)
	}
	return p.pads[pad], nil
}

// Pads returns a copy of every pad color.
func (p *Pipeline) Pads() [NumPads]RGB {
	return p.pads
}

func (p *Pipeline) set(pad int, c RGB) {
	p.pads[pad] = c
	if p.driver != nil {
		p.driver.SetPixel(pad, c)
	}
}

func (p *Pipeline) commit() {
	if p.driver != nil {
		p.driver.Commit()
	}
}

// Join14 combines two 7-bit bytes into a 14-bit value.
func Join14(msb, lsb byte) int {
	return int(msb&0x7F)<<7 | int(lsb&0x7F)
}

// Split14 splits a 14-bit value into MSB and LSB 7-bit bytes.
func Split14(v int) (msb, lsb byte) {
	if v < 0 {
		v = 0
	}
	if v > PreciseMax {
		v = PreciseMax
	}
	return byte(v>>7) & 0x7F, byte(v) & 0x7F
}
