package router

import (
	"sort"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/color"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
)

type clipKey struct {
	track, scene int
}

// Cache keeps the last DAW state so a peer that (re)connects can be
// brought up to date without asking the DAW.
type Cache struct {
	gridCmd wire.Command
	grid    []byte

	// Single-pad updates received after the last bulk grid, as
	// LEDPadUpdate14 payloads.
	pads      [color.NumPads][]byte
	clipState [color.NumPads]int // -1 when unknown

	ring []byte

	trackNames map[int]string
	clipNames  map[clipKey]string

	tempo     []byte
	playing   bool
	recording bool
	transport bool

	shift   bool
	pickups map[int]bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{
		trackNames: make(map[int]string),
		clipNames:  make(map[clipKey]string),
		pickups:    make(map[int]bool),
	}
	c.ClearGrid()
	return c
}

// SetGrid stores a bulk grid and drops single-pad overrides.
func (c *Cache) SetGrid(cmd wire.Command, payload []byte) {
	c.gridCmd = cmd
	c.grid = append(c.grid[:0], payload...)
	for i := range c.pads {
		c.pads[i] = nil
	}
}

// SetPad stores a precise single-pad update ([pad, Rm, Rl, Gm, Gl, Bm, Bl]).
func (c *Cache) SetPad(payload []byte) {
	pad := int(payload[0])
	if pad < 0 || pad >= color.NumPads {
		return
	}
	c.pads[pad] = append([]byte(nil), payload...)
}

// SetClipState stores a clip state for a pad.
func (c *Cache) SetClipState(pad int, state byte) {
	if pad >= 0 && pad < color.NumPads {
		c.clipState[pad] = int(state)
	}
}

// ClearGrid forgets every pad.
func (c *Cache) ClearGrid() {
	c.gridCmd = 0
	c.grid = nil
	for i := range c.pads {
		c.pads[i] = nil
		c.clipState[i] = -1
	}
}

// HasGrid reports whether a bulk grid is cached.
func (c *Cache) HasGrid() bool { return c.grid != nil }

// SetRing stores a ring position payload.
func (c *Cache) SetRing(payload []byte) {
	c.ring = append(c.ring[:0], payload...)
}

func (c *Cache) SetTrackName(track int, name string) { c.trackNames[track] = name }

func (c *Cache) SetClipName(track, scene int, name string) {
	c.clipNames[clipKey{track, scene}] = name
}

// TrackName returns a cached track name.
func (c *Cache) TrackName(track int) (string, bool) {
	n, ok := c.trackNames[track]
	return n, ok
}

func (c *Cache) SetTempo(msb, lsb byte) { c.tempo = []byte{msb, lsb} }

// Tempo returns the cached tempo in BPM.
func (c *Cache) Tempo() (float64, bool) {
	if c.tempo == nil {
		return 0, false
	}
	return float64(color.Join14(c.tempo[0], c.tempo[1])) / 10, true
}

func (c *Cache) SetPlaying(v bool) {
	c.playing = v
	c.transport = true
}

func (c *Cache) SetRecording(v bool) {
	c.recording = v
	c.transport = true
}

// Transport returns the cached transport state.
func (c *Cache) Transport() (playing, recording bool) { return c.playing, c.recording }

func (c *Cache) SetShift(v bool) { c.shift = v }

func (c *Cache) SetPickup(ch int, needs bool) { c.pickups[ch] = needs }

// gridFrames returns the frames that rebuild the pad grid on a peer.
func (c *Cache) gridFrames(withClipState bool) []frame {
	var out []frame
	if c.grid != nil {
		out = append(out, frame{c.gridCmd, c.grid})
	}
	for _, p := range c.pads {
		if p != nil {
			out = append(out, frame{wire.CmdLEDPadUpdate14, p})
		}
	}
	if withClipState {
		for pad, st := range c.clipState {
			if st >= 0 {
				out = append(out, frame{wire.CmdLEDClipState, []byte{byte(pad), byte(st)}})
			}
		}
	}
	if c.ring != nil {
		out = append(out, frame{wire.CmdRingPosition, c.ring})
	}
	return out
}

// guiFrames returns everything a GUI needs after it connects, in a stable
// order.
func (c *Cache) guiFrames() []frame {
	out := c.gridFrames(false)

	tracks := make([]int, 0, len(c.trackNames))
	for t := range c.trackNames {
		tracks = append(tracks, t)
	}
	sort.Ints(tracks)
	for _, t := range tracks {
		out = append(out, frame{wire.CmdTrackName, append([]byte{byte(t)}, c.trackNames[t]...)})
	}

	clips := make([]clipKey, 0, len(c.clipNames))
	for k := range c.clipNames {
		clips = append(clips, k)
	}
	sort.Slice(clips, func(i, j int) bool {
		if clips[i].track != clips[j].track {
			return clips[i].track < clips[j].track
		}
		return clips[i].scene < clips[j].scene
	})
	for _, k := range clips {
		out = append(out, frame{wire.CmdClipName, append([]byte{byte(k.track), byte(k.scene)}, c.clipNames[k]...)})
	}

	if c.tempo != nil {
		out = append(out, frame{wire.CmdTempo, c.tempo})
	}
	if c.transport {
		out = append(out, frame{wire.CmdTransportState, []byte{boolByte(c.playing), boolByte(c.recording)}})
	}
	out = append(out, frame{wire.CmdShiftState, []byte{boolByte(c.shift)}})

	chans := make([]int, 0, len(c.pickups))
	for ch := range c.pickups {
		chans = append(chans, ch)
	}
	sort.Ints(chans)
	for _, ch := range chans {
		out = append(out, frame{wire.CmdPickupState, []byte{byte(ch), boolByte(c.pickups[ch])}})
	}
	return out
}

type frame struct {
	cmd     wire.Command
	payload []byte
}

func (r *Router) replayGrid(p Peer) {
	for _, f := range r.cache.gridFrames(true) {
		r.send(p, f.cmd, f.payload)
	}
}

func (r *Router) replayGUI() {
	for _, f := range r.cache.guiFrames() {
		r.send(r.gui, f.cmd, f.payload)
	}
}
