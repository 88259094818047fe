package gridboard

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/ring"
)

// Fader ADC range
const MaxRaw = 4095

// Navigation button ids understood by the bridge
const (
	ButtonUp    = 0
	ButtonDown  = 1
	ButtonLeft  = 2
	ButtonRight = 3
)

var shiftCommands = map[ring.Direction]wire.Command{
	ring.Left:  wire.CmdGridShiftLeft,
	ring.Right: wire.CmdGridShiftRight,
	ring.Up:    wire.CmdGridShiftUp,
	ring.Down:  wire.CmdGridShiftDown,
}

// PressPad launches the clip under pad. The pad is mapped through the last
// ring broadcast onto an absolute track and scene.
func (b *Board) PressPad(pad int) error {
	if pad < 0 || pad >= color.NumPads {
		return fmt.Errorf("pad %d: %w", pad, color.ErrPadOutOfRange)
	}
	if !b.keysEnabled {
		return ErrKeysDisabled
	}
	track, scene := b.ring.PadCoords(pad)
	return b.link.Send(wire.CmdClipLaunch, []byte{byte(track) & 0x7F, byte(scene) & 0x7F})
}

// StopTrack stops every visible clip of a track column.
func (b *Board) StopTrack(column int) error {
	track, _ := b.ring.PadCoords(column % ring.DefaultWidth)
	return b.link.Send(wire.CmdTrackStop, []byte{byte(track) & 0x7F})
}

// LaunchScene fires a scene row.
func (b *Board) LaunchScene(row int) error {
	_, scene := b.ring.PadCoords((row % ring.DefaultHeight) * ring.DefaultWidth)
	return b.link.Send(wire.CmdSceneLaunch, []byte{byte(scene) & 0x7F})
}

// MoveFader reports a 12-bit ADC reading.
func (b *Board) MoveFader(ch, raw int) error {
	raw = min(max(raw, 0), MaxRaw)
	return b.link.Send(wire.CmdFaderRaw, []byte{byte(ch), byte(raw>>7) & 0x7F, byte(raw) & 0x7F})
}

// Button reports a navigation button edge.
func (b *Board) Button(id int, pressed bool) error {
	var state byte
	if pressed {
		state = 1
	}
	return b.link.Send(wire.CmdButtonEvent, []byte{byte(id), state})
}

// TurnEncoder reports a relative encoder move as a signed 7-bit delta.
func (b *Board) TurnEncoder(id, delta int) error {
	delta = min(max(delta, -64), 63)
	return b.link.Send(wire.CmdEncoderDelta, []byte{byte(id), byte(delta) & 0x7F})
}

// Shift moves the session ring one step.
func (b *Board) Shift(d ring.Direction) error {
	cmd, ok := shiftCommands[d]
	if !ok {
		return fmt.Errorf("shift %s: unknown direction", d)
	}
	return b.link.Send(cmd, nil)
}

// BankUp and BankDown move the session ring by a whole bank of scenes.
func (b *Board) BankUp() error   { return b.link.Send(wire.CmdGridBankUp, nil) }
func (b *Board) BankDown() error { return b.link.Send(wire.CmdGridBankDown, nil) }

// TogglePlay and ToggleRecord send transport toggles without a state, so
// the bridge flips its cached state.
func (b *Board) TogglePlay() error   { return b.link.Send(wire.CmdTransportPlay, nil) }
func (b *Board) ToggleRecord() error { return b.link.Send(wire.CmdTransportRecord, nil) }

// RequestRefresh asks the bridge to replay the cached grid.
func (b *Board) RequestRefresh() error { return b.link.Send(wire.CmdGridRefresh, nil) }
