package sysex

import "fmt"

// Command is a 7-bit opcode on the DAW link. Values are grouped by range:
//   - 0x00-0x0F system and navigation
//   - 0x10-0x1F clip and scene
//   - 0x20-0x2F mixer and track
//   - 0x30-0x3F device and rack
//   - 0x40-0x4F transport and automation
//   - 0x50-0x5F notes and sequencer (unassigned)
//   - 0x60-0x6F grid, groove and quantize
//   - 0x70-0x7F song and clip actions
type Command byte

// System and navigation
const (
	CmdHandshake         Command = 0x01
	CmdHandshakeReply    Command = 0x02
	CmdPing              Command = 0x03
	CmdDisconnect        Command = 0x04
	CmdBrowserMode       Command = 0x05
	CmdViewState         Command = 0x06
	CmdDetailClip        Command = 0x07
	CmdCreateMidiTrack   Command = 0x08
	CmdCreateAudioTrack  Command = 0x09
	CmdCreateReturnTrack Command = 0x0A
	CmdCreateScene       Command = 0x0B
	CmdSelectedTrack     Command = 0x0C
	CmdSelectedScene     Command = 0x0D
	CmdLoadDevice        Command = 0x0E
)

// Clip and scene
const (
	CmdClipState        Command = 0x10 // [track, scene, state, Rm, Rl, Gm, Gl, Bm, Bl]
	CmdClipTrigger      Command = 0x11 // [track, scene]
	CmdClipStop         Command = 0x12 // [track, scene]
	CmdSceneFire        Command = 0x13 // [scene]
	CmdClipName         Command = 0x14 // [track, scene, name...]
	CmdSceneName        Command = 0x15
	CmdSceneColor       Command = 0x16
	CmdSceneIsTriggered Command = 0x17
	CmdClipLoop         Command = 0x18
	CmdClipMuted        Command = 0x19
	CmdClipWarp         Command = 0x1A
	CmdClipStart        Command = 0x1B
	CmdClipEnd          Command = 0x1C
)

// Mixer and track
const (
	CmdMixerVolume    Command = 0x20 // [track, MSB, LSB]
	CmdMixerPan       Command = 0x21 // [track, MSB, LSB]
	CmdTrackMute      Command = 0x22
	CmdTrackSolo      Command = 0x23
	CmdTrackArm       Command = 0x24
	CmdMixerSend      Command = 0x25 // [track, send, MSB, LSB]
	CmdTrackName      Command = 0x26 // [track, name...]
	CmdTrackSelect    Command = 0x27 // [track]
	CmdTrackColor     Command = 0x28
	CmdTrackCrossfade Command = 0x29
)

// Device and rack
const (
	CmdDeviceParameter Command = 0x30
	CmdDeviceOnOff     Command = 0x31
)

// Transport and automation
const (
	CmdTransportPlay      Command = 0x40 // [state]
	CmdTransportRecord    Command = 0x41 // [state]
	CmdTransportLoop      Command = 0x42
	CmdTransportMetronome Command = 0x43
	CmdTempo              Command = 0x44 // [MSB, LSB] in 0.1 BPM
	CmdTransportSignature Command = 0x45
	CmdTransportPosition  Command = 0x46
	CmdRecordQuantization Command = 0x47
	CmdBackToArranger     Command = 0x48
	CmdArrangementRecord  Command = 0x49
)

// Grid, groove and quantize
const (
	CmdGridUpdate    Command = 0x60 // 96 bytes fast or 192 bytes precise
	CmdGridSinglePad Command = 0x61 // [pad, Rm, Rl, Gm, Gl, Bm, Bl]
	CmdRingPosition  Command = 0x62 // [tMSB, tLSB, sMSB, sLSB, width, height, overview]
	CmdRingNavigate  Command = 0x68 // [direction]
	CmdQuantizeClip  Command = 0x69
)

// Song and clip actions
const (
	CmdUndo Command = 0x70
	CmdRedo Command = 0x71
)

var commandNames = map[Command]string{
	CmdHandshake:          "Handshake",
	CmdHandshakeReply:     "HandshakeReply",
	CmdPing:               "Ping",
	CmdDisconnect:         "Disconnect",
	CmdBrowserMode:        "BrowserMode",
	CmdViewState:          "ViewState",
	CmdDetailClip:         "DetailClip",
	CmdCreateMidiTrack:    "CreateMidiTrack",
	CmdCreateAudioTrack:   "CreateAudioTrack",
	CmdCreateReturnTrack:  "CreateReturnTrack",
	CmdCreateScene:        "CreateScene",
	CmdSelectedTrack:      "SelectedTrack",
	CmdSelectedScene:      "SelectedScene",
	CmdLoadDevice:         "LoadDevice",
	CmdClipState:          "ClipState",
	CmdClipTrigger:        "ClipTrigger",
	CmdClipStop:           "ClipStop",
	CmdSceneFire:          "SceneFire",
	CmdClipName:           "ClipName",
	CmdSceneName:          "SceneName",
	CmdSceneColor:         "SceneColor",
	CmdSceneIsTriggered:   "SceneIsTriggered",
	CmdClipLoop:           "ClipLoop",
	CmdClipMuted:          "ClipMuted",
	CmdClipWarp:           "ClipWarp",
	CmdClipStart:          "ClipStart",
	CmdClipEnd:            "ClipEnd",
	CmdMixerVolume:        "MixerVolume",
	CmdMixerPan:           "MixerPan",
	CmdTrackMute:          "TrackMute",
	CmdTrackSolo:          "TrackSolo",
	CmdTrackArm:           "TrackArm",
	CmdMixerSend:          "MixerSend",
	CmdTrackName:          "TrackName",
	CmdTrackSelect:        "TrackSelect",
	CmdTrackColor:         "TrackColor",
	CmdTrackCrossfade:     "TrackCrossfade",
	CmdDeviceParameter:    "DeviceParameter",
	CmdDeviceOnOff:        "DeviceOnOff",
	CmdTransportPlay:      "TransportPlay",
	CmdTransportRecord:    "TransportRecord",
	CmdTransportLoop:      "TransportLoop",
	CmdTransportMetronome: "TransportMetronome",
	CmdTempo:              "Tempo",
	CmdTransportSignature: "TransportSignature",
	CmdTransportPosition:  "TransportPosition",
	CmdRecordQuantization: "RecordQuantization",
	CmdBackToArranger:     "BackToArranger",
	CmdArrangementRecord:  "ArrangementRecord",
	CmdGridUpdate:         "GridUpdate",
	CmdGridSinglePad:      "GridSinglePad",
	CmdRingPosition:       "RingPosition",
	CmdRingNavigate:       "RingNavigate",
	CmdQuantizeClip:       "QuantizeClip",
	CmdUndo:               "Undo",
	CmdRedo:               "Redo",
}

// Known reports whether c is in the command table.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}

// legacyOpcodes maps opcodes used by earlier firmware generations in vendor
// and short frames onto the current table.
var legacyOpcodes = map[byte]Command{
	0x01: CmdHandshake,
	0x02: CmdHandshakeReply,
	0x03: CmdPing,
	0x10: CmdClipTrigger,
	0x11: CmdClipStop,
	0x12: CmdClipStop,
	0x50: CmdTransportPlay,
	0x51: CmdTransportPlay,
	0x52: CmdTransportRecord,
	0x53: CmdTransportLoop,
	0x54: CmdTransportMetronome,
}

// legacyStop is the one legacy opcode whose meaning needs a payload: the
// old transport stop maps to TransportPlay with state 0.
const legacyStop = 0x51

// ResolveLegacy maps an opcode carried in a vendor or short frame onto the
// canonical table. The returned payload replaces the frame payload when the
// old opcode implied a value.
func ResolveLegacy(opcode byte, payload []byte) (Command, []byte, bool) {
	cmd, ok := legacyOpcodes[opcode]
	if !ok {
		return 0, nil, false
	}
	if opcode == legacyStop {
		return cmd, []byte{0x00}, true
	}
	return cmd, payload, true
}
