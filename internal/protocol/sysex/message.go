package sysex

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
)

// Framing constants
const (
	Start          = 0xF0
	End            = 0xF7
	ManufacturerID = 0x7D // Educational/development ID
	DeviceID       = 0x00
	ExtendedMarker = 0x7F

	HeaderSize = 8 // F0 MFG DEV 7F CMD SEQ LEN_MSB LEN_LSB
	Overhead   = HeaderSize + 2
	MaxPayload = 0x3FFF // Two 7-bit length bytes
	DataMask   = 0x7F
)

// Form identifies which framing a message used.
type Form int

const (
	// FormExtended carries sequence, length and checksum.
	FormExtended Form = iota
	// FormVendor is F0 MFG DEV CMD DATA F7.
	FormVendor
	// FormShort is F0 CMD DATA F7, used for single-byte system commands.
	FormShort
)

func (f Form) String() string {
	switch f {
	case FormExtended:
		return "extended"
	case FormVendor:
		return "vendor"
	case FormShort:
		return "short"
	default:
		return fmt.Sprintf("form(%d)", int(f))
	}
}

// Message is a decoded SysEx message.
type Message struct {
	Form     Form
	Command  Command
	Sequence byte   // Extended form only
	Payload  []byte // Aliases the decoded buffer
}

func (m Message) String() string {
	return fmt.Sprintf("SysEx{form=%s, cmd=%s, seq=%d, len=%d}", m.Form, m.Command, m.Sequence, len(m.Payload))
}

// Checksum is the 7-bit XOR of the command, sequence and payload.
func Checksum(cmd Command, seq byte, payload []byte) byte {
	sum := byte(cmd) ^ seq
	for _, b := range payload {
		sum ^= b
	}
	return sum & DataMask
}

// Encode builds an extended-form message. Every payload byte is masked to 7
// bits before it is written and checksummed.
func Encode(cmd Command, seq byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("encode %s: payload %d bytes (max %d): %w",
			cmd, len(payload), MaxPayload, protocol.ErrLengthMismatch)
	}

	msg := make([]byte, 0, Overhead+len(payload))
	msg = append(msg,
		Start, ManufacturerID, DeviceID, ExtendedMarker,
		byte(cmd)&DataMask,
		seq&DataMask,
		byte(len(payload)>>7)&DataMask,
		byte(len(payload))&DataMask,
	)

	sum := (byte(cmd) & DataMask) ^ (seq & DataMask)
	for _, b := range payload {
		b &= DataMask
		sum ^= b
		msg = append(msg, b)
	}

	return append(msg, sum&DataMask, End), nil
}

// EncodeShort builds a short-form message (F0 CMD DATA F7).
func EncodeShort(cmd Command, data ...byte) []byte {
	msg := make([]byte, 0, len(data)+3)
	msg = append(msg, Start, byte(cmd)&DataMask)
	for _, b := range data {
		msg = append(msg, b&DataMask)
	}
	return append(msg, End)
}

// Decode parses one complete SysEx message including its F0 and F7 bytes.
// Bytes 1 to 3 select the parse path: 7D 00 7F is the extended form, 7D 00
// the vendor form, anything else the short form. An extended message is
// rejected as a whole when its length or checksum disagree.
func Decode(data []byte) (Message, error) {
	if len(data) < 3 {
		return Message{}, fmt.Errorf("sysex too short: %d bytes: %w", len(data), protocol.ErrLengthMismatch)
	}
	if data[0] != Start {
		return Message{}, fmt.Errorf("invalid start byte 0x%02x: %w", data[0], protocol.ErrFraming)
	}
	if data[len(data)-1] != End {
		return Message{}, fmt.Errorf("invalid end byte 0x%02x: %w", data[len(data)-1], protocol.ErrFraming)
	}
	body := data[1 : len(data)-1]
	for i, b := range body {
		if b > DataMask {
			return Message{}, fmt.Errorf("byte %d is 0x%02x, not 7-bit: %w", i+1, b, protocol.ErrFraming)
		}
	}

	switch {
	case isExtended(data):
		return decodeExtended(data)
	case isVendor(data):
		return Message{Form: FormVendor, Command: Command(data[3]), Payload: data[4 : len(data)-1]}, nil
	default:
		return Message{Form: FormShort, Command: Command(data[1]), Payload: data[2 : len(data)-1]}, nil
	}
}

func isExtended(data []byte) bool {
	return len(data) >= 4 && data[1] == ManufacturerID && data[2] == DeviceID && data[3] == ExtendedMarker
}

func isVendor(data []byte) bool {
	return len(data) >= 5 && data[1] == ManufacturerID && data[2] == DeviceID
}

func decodeExtended(data []byte) (Message, error) {
	if len(data) < Overhead {
		return Message{}, fmt.Errorf("extended sysex %d bytes (min %d): %w", len(data), Overhead, protocol.ErrLengthMismatch)
	}

	cmd := Command(data[4])
	seq := data[5]
	payloadLen := int(data[6])<<7 | int(data[7])
	if want := HeaderSize + payloadLen + 2; len(data) != want {
		return Message{}, fmt.Errorf("extended sysex %d bytes, declared payload %d needs %d: %w",
			len(data), payloadLen, want, protocol.ErrLengthMismatch)
	}

	payload := data[HeaderSize : HeaderSize+payloadLen]
	if want, got := Checksum(cmd, seq, payload), data[HeaderSize+payloadLen]; want != got {
		return Message{}, fmt.Errorf("checksum 0x%02x, computed 0x%02x: %w", got, want, protocol.ErrChecksum)
	}

	return Message{Form: FormExtended, Command: cmd, Sequence: seq, Payload: payload}, nil
}

// Sequencer hands out extended-form sequence numbers. The first call to
// Next returns 1 and the counter wraps modulo 128.
type Sequencer struct {
	seq byte
}

// Next advances and returns the sequence number.
func (s *Sequencer) Next() byte {
	s.seq = (s.seq + 1) & DataMask
	return s.seq
}

// Current returns the last sequence number handed out.
func (s *Sequencer) Current() byte {
	return s.seq
}

// Canonical resolves the opcode of a vendor or short message through the
// legacy table. Extended messages and unmapped opcodes are returned as is.
func (m Message) Canonical() Message {
	if m.Form == FormExtended {
		return m
	}
	if cmd, payload, ok := ResolveLegacy(byte(m.Command), m.Payload); ok {
		m.Command = cmd
		m.Payload = payload
	}
	return m
}
