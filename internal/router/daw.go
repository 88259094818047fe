package router

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/fader"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
	"go.uber.org/zap"
)

// maxNameLen bounds clip and track names forwarded to the GUI.
const maxNameLen = 62

// HandleDAWMessage dispatches one canonical message from the DAW.
// Unrecognized opcodes return an error wrapping protocol.ErrUnknownCommand.
func (r *Router) HandleDAWMessage(m sysex.Message) error {
	p := m.Payload
	logging.LogFrame("rx", "daw", m.Command.String(), p)

	switch m.Command {
	case sysex.CmdGridUpdate:
		return r.dawGrid(p)
	case sysex.CmdGridSinglePad:
		return r.dawSinglePad(p)
	case sysex.CmdRingPosition:
		return r.dawRing(p)
	case sysex.CmdClipState:
		return r.dawClipState(p)
	case sysex.CmdClipName:
		return r.dawClipName(p)
	case sysex.CmdTrackName:
		return r.dawTrackName(p)
	case sysex.CmdTempo:
		return r.dawTempo(p)
	case sysex.CmdTransportPlay, sysex.CmdTransportRecord:
		return r.dawTransport(m.Command, p)
	case sysex.CmdMixerVolume, sysex.CmdMixerPan:
		if len(p) < 3 {
			return lengthError(m.Command, len(p), 3)
		}
		param := fader.ParamVolume
		if m.Command == sysex.CmdMixerPan {
			param = fader.ParamPan
		}
		r.faders.SetTarget14(param, int(p[0]&0x7F), color.Join14(p[1], p[2]))
		return nil
	case sysex.CmdMixerSend:
		if len(p) < 4 {
			return lengthError(m.Command, len(p), 4)
		}
		param, ok := fader.ParamForSend(int(p[1] & 0x7F))
		if !ok {
			r.log.Debug("Send slot out of range", zap.Int("track", int(p[0]&0x7F)), zap.Int("slot", int(p[1]&0x7F)))
			return nil
		}
		r.faders.SetTarget14(param, int(p[0]&0x7F), color.Join14(p[2], p[3]))
		return nil
	}

	if m.Command.Known() {
		r.log.Debug("DAW message not mirrored", zap.String("command", m.Command.String()), zap.Int("length", len(p)))
		return nil
	}
	return fmt.Errorf("daw opcode 0x%02X: %w", byte(m.Command), protocol.ErrUnknownCommand)
}

func (r *Router) dawGrid(p []byte) error {
	var cmd wire.Command
	switch len(p) {
	case color.FastBytes:
		cmd = wire.CmdLEDGridUpdate
	case color.PreciseBytes:
		cmd = wire.CmdLEDGridUpdate14
	default:
		return fmt.Errorf("grid update %d bytes (want %d or %d): %w",
			len(p), color.FastBytes, color.PreciseBytes, protocol.ErrLengthMismatch)
	}

	if err := r.colors.ApplyBulk(p); err != nil {
		return err
	}
	r.cache.SetGrid(cmd, p)
	r.send(r.grid, cmd, p)
	r.send(r.gui, cmd, p)

	if r.daw.MarkGrid() {
		r.log.Info("First grid received, enabling keys")
		r.send(r.grid, wire.CmdEnableKeys, nil)
	}
	return nil
}

func (r *Router) dawSinglePad(p []byte) error {
	if len(p) != 7 {
		return fmt.Errorf("single pad %d bytes (want 7): %w", len(p), protocol.ErrLengthMismatch)
	}
	pad := int(p[0] & 0x7F)
	if err := r.colors.ApplyPadPrecise(pad, p[1:]); err != nil {
		return err
	}
	r.cache.SetPad(p)
	r.send(r.grid, wire.CmdLEDPadUpdate14, p)
	r.send(r.gui, wire.CmdLEDPadUpdate14, p)
	return nil
}

func (r *Router) dawRing(p []byte) error {
	if err := r.ring.Apply(p); err != nil {
		return err
	}
	out := r.ring.Payload()
	r.cache.SetRing(out)
	r.send(r.grid, wire.CmdRingPosition, out)
	r.send(r.gui, wire.CmdRingPosition, out)
	r.emit(telemetry.KindRing, "ring", r.ring.Window().String())
	return nil
}

func (r *Router) dawClipState(p []byte) error {
	if len(p) < 9 {
		return lengthError(sysex.CmdClipState, len(p), 9)
	}
	track, scene, state := int(p[0]&0x7F), int(p[1]&0x7F), p[2]&0x7F
	if track >= GridTracks || scene >= GridScenes {
		return fmt.Errorf("clip state track %d scene %d: %w", track, scene, color.ErrPadOutOfRange)
	}
	pad := scene*GridTracks + track

	if err := r.colors.ApplyPadPrecise(pad, p[3:9]); err != nil {
		return err
	}
	padMsg := append([]byte{byte(pad)}, p[3:9]...)
	r.cache.SetPad(padMsg)
	r.cache.SetClipState(pad, state)
	r.send(r.grid, wire.CmdLEDPadUpdate14, padMsg)
	r.send(r.grid, wire.CmdLEDClipState, []byte{byte(pad), state})
	r.send(r.gui, wire.CmdLEDPadUpdate14, padMsg)
	return nil
}

func (r *Router) dawClipName(p []byte) error {
	if len(p) < 3 {
		return lengthError(sysex.CmdClipName, len(p), 3)
	}
	track, scene := p[0]&0x7F, p[1]&0x7F
	name := cleanName(p[2:])
	r.cache.SetClipName(int(track), int(scene), name)
	r.send(r.gui, wire.CmdClipName, append([]byte{track, scene}, name...))
	return nil
}

func (r *Router) dawTrackName(p []byte) error {
	if len(p) < 2 {
		return lengthError(sysex.CmdTrackName, len(p), 2)
	}
	track := p[0] & 0x7F
	name := cleanName(p[1:])
	r.cache.SetTrackName(int(track), name)
	r.send(r.gui, wire.CmdTrackName, append([]byte{track}, name...))
	return nil
}

func (r *Router) dawTempo(p []byte) error {
	if len(p) < 2 {
		return lengthError(sysex.CmdTempo, len(p), 2)
	}
	msb, lsb := p[0]&0x7F, p[1]&0x7F
	r.cache.SetTempo(msb, lsb)
	r.send(r.gui, wire.CmdTempo, []byte{msb, lsb})
	bpm, _ := r.cache.Tempo()
	r.emit(telemetry.KindTransport, "daw", fmt.Sprintf("tempo %.1f BPM", bpm))
	return nil
}

func (r *Router) dawTransport(cmd sysex.Command, p []byte) error {
	on := len(p) > 0 && p[0]&0x7F > 0
	if cmd == sysex.CmdTransportPlay {
		r.cache.SetPlaying(on)
	} else {
		r.cache.SetRecording(on)
	}
	playing, recording := r.cache.Transport()
	r.send(r.gui, wire.CmdTransportState, []byte{boolByte(playing), boolByte(recording)})
	r.emit(telemetry.KindTransport, "daw", fmt.Sprintf("playing=%v recording=%v", playing, recording))
	return nil
}

// cleanName masks a name to 7-bit ASCII, cuts it at the first NUL and
// bounds its length.
func cleanName(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		c &= 0x7F
		if c == 0 {
			break
		}
		out = append(out, c)
		if len(out) == maxNameLen {
			break
		}
	}
	return string(out)
}

func lengthError(cmd sysex.Command, got, want int) error {
	return fmt.Errorf("%s payload %d bytes (min %d): %w", cmd, got, want, protocol.ErrLengthMismatch)
}
