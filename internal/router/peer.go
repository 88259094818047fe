package router

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/fader"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"go.uber.org/zap"
)

// Scenes moved by one grid bank step.
const bankScenes = GridScenes

// Peer commands that forward to the DAW with the payload unchanged.
var passthrough = map[wire.Command]sysex.Command{
	wire.CmdUIBrowser:     sysex.CmdBrowserMode,
	wire.CmdUIDevice:      sysex.CmdViewState,
	wire.CmdUIClip:        sysex.CmdDetailClip,
	wire.CmdUIHotswap:     sysex.CmdBrowserMode,
	wire.CmdUILoadDevice:  sysex.CmdLoadDevice,
	wire.CmdUICreateScene: sysex.CmdCreateScene,
	wire.CmdTrackSelect:   sysex.CmdTrackSelect,
	wire.CmdClipLaunch:    sysex.CmdClipTrigger,
	wire.CmdClipStop:      sysex.CmdClipStop,
	wire.CmdSceneLaunch:   sysex.CmdSceneFire,
}

// Minimum payload per command. Absent entries need nothing.
var minPayload = map[wire.Command]int{
	wire.CmdUICreateTrack:   1,
	wire.CmdUINavigate:      1,
	wire.CmdUIShift:         1,
	wire.CmdMixerBankChange: 1,
	wire.CmdMixerParamMode:  1,
	wire.CmdTrackSelect:     1,
	wire.CmdClipLaunch:      2,
	wire.CmdClipStop:        2,
	wire.CmdSceneLaunch:     1,
	wire.CmdTrackStop:       1,
	wire.CmdFaderRaw:        3,
	wire.CmdButtonEvent:     2,
	wire.CmdEncoderDelta:    2,
}

var createTrack = [...]sysex.Command{
	sysex.CmdCreateMidiTrack,
	sysex.CmdCreateAudioTrack,
	sysex.CmdCreateReturnTrack,
}

// Window moves for UINavigate and the navigation buttons: up, down, left,
// right.
var navSteps = [...][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

var gridShifts = map[wire.Command][2]int{
	wire.CmdGridShiftLeft:  {-1, 0},
	wire.CmdGridShiftRight: {1, 0},
	wire.CmdGridShiftUp:    {0, -1},
	wire.CmdGridShiftDown:  {0, 1},
	wire.CmdGridBankUp:     {0, bankScenes},
	wire.CmdGridBankDown:   {0, -bankScenes},
}

// HandleGridFrame dispatches one validated frame from the grid board.
func (r *Router) HandleGridFrame(f wire.Frame) error {
	return r.handlePeerFrame(GridLink, r.grid, f)
}

// HandleGUIFrame dispatches one validated frame from the GUI. The GUI
// shares the grid board's command table.
func (r *Router) HandleGUIFrame(f wire.Frame) error {
	return r.handlePeerFrame(GUILink, r.gui, f)
}

func (r *Router) handlePeerFrame(name string, src Peer, f wire.Frame) error {
	cmd, p := f.Command, f.Payload
	logging.LogFrame("rx", name, cmd.String(), p)

	if n := minPayload[cmd]; len(p) < n {
		return fmt.Errorf("%s from %s: payload %d bytes (min %d): %w", cmd, name, len(p), n, protocol.ErrLengthMismatch)
	}

	if dst, ok := passthrough[cmd]; ok {
		return r.sendDAW(dst, p)
	}
	if d, ok := gridShifts[cmd]; ok {
		return r.ring.Shift(d[0], d[1])
	}

	switch cmd {
	case wire.CmdUICreateTrack:
		if int(p[0]) >= len(createTrack) {
			r.log.Debug("Unknown track type", zap.Uint8("type", p[0]))
			return nil
		}
		return r.sendDAW(createTrack[p[0]], nil)

	case wire.CmdUINavigate:
		return r.navigate(p[0])

	case wire.CmdUIShift:
		pressed := p[0] != 0
		r.cache.SetShift(pressed)
		r.send(r.gui, wire.CmdShiftState, []byte{boolByte(pressed)})
		return nil

	case wire.CmdMixerBankChange:
		r.faders.SetBank(int(p[0]) * r.faders.NumChannels())
		return nil

	case wire.CmdMixerParamMode:
		if p[0] > byte(fader.ModeMasterReturns) {
			r.log.Debug("Unknown mixer mode", zap.Uint8("mode", p[0]))
			return nil
		}
		r.faders.SetMode(fader.Mode(p[0]))
		return nil

	case wire.CmdTransportPlay, wire.CmdTransportRecord:
		return r.transport(cmd, p)

	case wire.CmdTrackStop:
		for scene := 0; scene < GridScenes; scene++ {
			if err := r.sendDAW(sysex.CmdClipStop, []byte{p[0], byte(scene)}); err != nil {
				return err
			}
		}
		return nil

	case wire.CmdFaderRaw:
		return r.faders.UpdateRaw(int(p[0]), int(p[1]&0x7F)<<7|int(p[2]&0x7F))

	case wire.CmdButtonEvent:
		if p[1] == 0 || int(p[0]) >= len(navSteps) {
			return nil
		}
		return r.navigate(p[0])

	case wire.CmdEncoderDelta:
		d := int(p[1] & 0x7F)
		if d&0x40 != 0 {
			d -= 0x80
		}
		switch p[0] {
		case 0:
			return r.ring.Shift(d, 0)
		case 1:
			return r.ring.Shift(0, d)
		}
		return nil

	case wire.CmdGridRefresh:
		if name == GUILink {
			r.replayGUI()
		} else {
			r.replayGrid(src)
		}
		return nil
	}

	if cmd.Known() {
		r.log.Debug("Peer frame ignored", zap.String("link", name), zap.String("command", cmd.String()))
		return nil
	}
	return fmt.Errorf("%s opcode 0x%02X: %w", name, byte(cmd), protocol.ErrUnknownCommand)
}

func (r *Router) navigate(dir byte) error {
	if int(dir) >= len(navSteps) {
		r.log.Debug("Unknown navigation direction", zap.Uint8("direction", dir))
		return nil
	}
	s := navSteps[dir]
	return r.ring.Shift(s[0], s[1])
}

// transport forwards a play or record request. Without a state byte the
// cached state is toggled.
func (r *Router) transport(cmd wire.Command, p []byte) error {
	playing, recording := r.cache.Transport()
	dst, on := sysex.CmdTransportPlay, !playing
	if cmd == wire.CmdTransportRecord {
		dst, on = sysex.CmdTransportRecord, !recording
	}
	if len(p) > 0 {
		on = p[0] != 0
	}
	return r.sendDAW(dst, []byte{boolByte(on)})
}
