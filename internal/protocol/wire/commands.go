package wire

import "fmt"

// Command is an opcode on the binary link. One table covers both directions
// and no value is reused, so a frame can be named without knowing which
// peer sent it.
type Command byte

// Link management
const (
	CmdHandshake      Command = 0x01 // Payload: "PUSHCLONE"
	CmdHandshakeReply Command = 0x02 // Payload: echo of the handshake payload
	CmdPing           Command = 0x03
	CmdDisconnect     Command = 0x04 // Best-effort notice before dropping the link
)

// Peer to bridge: UI panel, grid and transport input
const (
	CmdUIBrowser       Command = 0x80 // [state]
	CmdUIDevice        Command = 0x81 // [state]
	CmdUIClip          Command = 0x82 // [state]
	CmdUICreateTrack   Command = 0x83 // [0=MIDI, 1=audio, 2=return]
	CmdUIHotswap       Command = 0x84 // [mode]
	CmdUINavigate      Command = 0x85 // [0=up, 1=down, 2=left, 3=right]
	CmdUILoadDevice    Command = 0x86
	CmdUICreateScene   Command = 0x87
	CmdUIShift         Command = 0x88 // [pressed]
	CmdMixerBankChange Command = 0x89 // [bank]
	CmdMixerParamMode  Command = 0x8A // [mode]
	CmdTrackSelect     Command = 0x8B // [track]
	CmdGridBankUp      Command = 0x8C
	CmdGridBankDown    Command = 0x8D
	CmdTransportPlay   Command = 0x8E // [state] optional
	CmdTransportRecord Command = 0x8F // [state] optional
	CmdClipLaunch      Command = 0x90 // [track, scene]
	CmdClipStop        Command = 0x91 // [track, scene]
	CmdSceneLaunch     Command = 0x92 // [scene]
	CmdTrackStop       Command = 0x93 // [track]
	CmdFaderRaw        Command = 0x94 // [channel, rawMSB, rawLSB] 12-bit ADC reading
	CmdButtonEvent     Command = 0x95 // [button, pressed]
	CmdEncoderDelta    Command = 0x96 // [encoder, delta] delta is signed 7-bit
	CmdGridRefresh     Command = 0x97
	CmdGridShiftLeft   Command = 0xB0
	CmdGridShiftRight  Command = 0xB1
	CmdGridShiftUp     Command = 0xB2
	CmdGridShiftDown   Command = 0xB3
)

// Bridge to peer: LED feedback and mirrored DAW state
const (
	CmdLEDGridUpdate       Command = 0xA0 // 32 x (R,G,B) 7-bit = 96 bytes
	CmdLEDPadUpdate        Command = 0xA1 // [pad, R, G, B] 7-bit
	CmdLEDUIState          Command = 0xA2 // [panel, state]
	CmdEnableKeys          Command = 0xA3
	CmdDisableKeys         Command = 0xA4
	CmdConnectionAnimation Command = 0xA5
	CmdLEDGridUpdate14     Command = 0xA6 // 32 x (Rm,Rl,Gm,Gl,Bm,Bl) = 192 bytes
	CmdLEDPadUpdate14      Command = 0xA7 // [pad, Rm, Rl, Gm, Gl, Bm, Bl]
	CmdLEDClipState        Command = 0xA8 // [pad, state]
	CmdRingPosition        Command = 0xA9 // [tMSB, tLSB, sMSB, sLSB, width, height, overview]
	CmdClipName            Command = 0xAB // [track, scene, name...]
	CmdTrackName           Command = 0xAC // [track, name...]
	CmdTempo               Command = 0xAD // [MSB, LSB] in 0.1 BPM
	CmdTransportState      Command = 0xAE // [playing, recording]
	CmdPickupState         Command = 0xAF // [fader, needsPickup]
	CmdShiftState          Command = 0xB4 // [pressed]
)

var commandNames = map[Command]string{
	CmdHandshake:           "Handshake",
	CmdHandshakeReply:      "HandshakeReply",
	CmdPing:                "Ping",
	CmdDisconnect:          "Disconnect",
	CmdUIBrowser:           "UIBrowser",
	CmdUIDevice:            "UIDevice",
	CmdUIClip:              "UIClip",
	CmdUICreateTrack:       "UICreateTrack",
	CmdUIHotswap:           "UIHotswap",
	CmdUINavigate:          "UINavigate",
	CmdUILoadDevice:        "UILoadDevice",
	CmdUICreateScene:       "UICreateScene",
	CmdUIShift:             "UIShift",
	CmdMixerBankChange:     "MixerBankChange",
	CmdMixerParamMode:      "MixerParamMode",
	CmdTrackSelect:         "TrackSelect",
	CmdGridBankUp:          "GridBankUp",
	CmdGridBankDown:        "GridBankDown",
	CmdTransportPlay:       "TransportPlay",
	CmdTransportRecord:     "TransportRecord",
	CmdClipLaunch:          "ClipLaunch",
	CmdClipStop:            "ClipStop",
	CmdSceneLaunch:         "SceneLaunch",
	CmdTrackStop:           "TrackStop",
	CmdFaderRaw:            "FaderRaw",
	CmdButtonEvent:         "ButtonEvent",
	CmdEncoderDelta:        "EncoderDelta",
	CmdGridRefresh:         "GridRefresh",
	CmdGridShiftLeft:       "GridShiftLeft",
	CmdGridShiftRight:      "GridShiftRight",
	CmdGridShiftUp:         "GridShiftUp",
	CmdGridShiftDown:       "GridShiftDown",
	CmdLEDGridUpdate:       "LEDGridUpdate",
	CmdLEDPadUpdate:        "LEDPadUpdate",
	CmdLEDUIState:          "LEDUIState",
	CmdEnableKeys:          "EnableKeys",
	CmdDisableKeys:         "DisableKeys",
	CmdConnectionAnimation: "ConnectionAnimation",
	CmdLEDGridUpdate14:     "LEDGridUpdate14",
	CmdLEDPadUpdate14:      "LEDPadUpdate14",
	CmdLEDClipState:        "LEDClipState",
	CmdRingPosition:        "RingPosition",
	CmdClipName:            "ClipName",
	CmdTrackName:           "TrackName",
	CmdTempo:               "Tempo",
	CmdTransportState:      "TransportState",
	CmdPickupState:         "PickupState",
	CmdShiftState:          "ShiftState",
}

// Known reports whether c is in the command table.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// IsSystem reports whether c is a link management command. System commands
// are exchanged regardless of link state.
func (c Command) IsSystem() bool {
	return c >= CmdHandshake && c <= CmdDisconnect
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}

// HandshakePayload identifies a pushclone peer during the handshake.
var HandshakePayload = []byte("PUSHCLONE")
