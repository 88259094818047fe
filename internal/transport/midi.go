package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

// MIDIConfig selects the DAW ports by name substring.
type MIDIConfig struct {
	In        string
	Out       string
	QueueSize int
}

// MIDI carries SysEx messages to and from the DAW. Each Write must be one
// complete message including F0 and F7. Poll returns whole messages.
type MIDI struct {
	*Queue
	in     drivers.In
	out    drivers.Out
	send   func(midi.Message) error
	stop   func()
	closed atomic.Bool
}

// OpenMIDI opens the first input and output ports whose names contain
// the configured substrings and starts listening for SysEx. A MIDI driver
// must be registered by the caller.
func OpenMIDI(cfg MIDIConfig) (*MIDI, error) {
	in, err := midi.FindInPort(cfg.In)
	if err != nil {
		return nil, fmt.Errorf("find MIDI input %q: %w", cfg.In, err)
	}
	out, err := midi.FindOutPort(cfg.Out)
	if err != nil {
		return nil, fmt.Errorf("find MIDI output %q: %w", cfg.Out, err)
	}

	m := &MIDI{Queue: NewQueue(cfg.QueueSize), in: in, out: out}

	m.send, err = midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open MIDI output %s: %w", out, err)
	}

	m.stop, err = midi.ListenTo(in, m.receive, midi.UseSysEx(), midi.HandleError(func(err error) {
		logging.Warn("MIDI listener error", zap.String("port", in.String()), zap.Error(err))
	}))
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("listen on MIDI input %s: %w", in, err)
	}

	logging.Info("MIDI ports opened", zap.String("in", in.String()), zap.String("out", out.String()))
	return m, nil
}

func (m *MIDI) receive(msg midi.Message, _ int32) {
	var data []byte
	if !msg.GetSysEx(&data) {
		return
	}
	frame := make([]byte, 0, len(data)+2)
	frame = append(frame, 0xF0)
	frame = append(frame, data...)
	frame = append(frame, 0xF7)
	if !m.Push(frame) {
		logging.Debug("MIDI queue full, message dropped", zap.Int("bytes", len(frame)))
	}
}

func (m *MIDI) Write(p []byte) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if err := m.send(midi.Message(p)); err != nil {
		return 0, fmt.Errorf("send to %s: %w", m.out, err)
	}
	return len(p), nil
}

// Poll returns every SysEx message received since the last call.
func (m *MIDI) Poll() [][]byte { return m.Chunks() }

func (m *MIDI) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.stop()
	errIn := m.in.Close()
	errOut := m.out.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}

// MIDIPorts lists the MIDI input and output port names.
func MIDIPorts() (ins, outs []string) {
	for _, p := range midi.GetInPorts() {
		ins = append(ins, p.String())
	}
	for _, p := range midi.GetOutPorts() {
		outs = append(outs, p.String())
	}
	return ins, outs
}
