package wire

import (
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
)

// Frame layout constants
const (
	SyncByte   = 0xAA
	Overhead   = 4   // Sync + Command + Length + Checksum
	MaxPayload = 255 // Length is a single byte
	MaxFrame   = MaxPayload + Overhead
)

// Frame is a validated binary frame.
type Frame struct {
	Command Command
	Payload []byte // Aliases the parsed buffer; copy before retaining
}

// Len returns the declared payload length.
func (f Frame) Len() int {
	return len(f.Payload)
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{cmd=%s, len=%d}", f.Command, len(f.Payload))
}

// FrameSize returns the encoded size of a frame carrying payloadLen bytes.
func FrameSize(payloadLen int) int {
	return payloadLen + Overhead
}

// Checksum computes the XOR of the command, the length byte and the payload.
func Checksum(cmd Command, payload []byte) byte {
	sum := byte(cmd) ^ byte(len(payload))
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// BuildFrame encodes a frame into dst and returns the number of bytes
// written. It returns 0 without touching dst when dst cannot hold the frame
// or the payload is longer than MaxPayload.
//
// Frame Structure:
//
//	[0]     0xAA      Sync byte
//	[1]     cmd       Command
//	[2]     len       Payload length
//	[3..]   payload   len bytes
//	[len+3] checksum  cmd ^ len ^ payload[0] ^ ... ^ payload[len-1]
func BuildFrame(dst []byte, cmd Command, payload []byte) int {
	if len(payload) > MaxPayload {
		return 0
	}
	total := FrameSize(len(payload))
	if len(dst) < total {
		return 0
	}

	dst[0] = SyncByte
	dst[1] = byte(cmd)
	dst[2] = byte(len(payload))
	copy(dst[3:], payload)
	dst[total-1] = Checksum(cmd, payload)
	return total
}

// EncodeFrame is the allocating form of BuildFrame.
func EncodeFrame(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("encode %s: payload %d bytes (max %d): %w",
			cmd, len(payload), MaxPayload, protocol.ErrLengthMismatch)
	}
	buf := make([]byte, FrameSize(len(payload)))
	BuildFrame(buf, cmd, payload)
	return buf, nil
}

// ParseFrame validates one complete frame. The buffer must hold exactly one
// frame: a buffer longer or shorter than the declared length is rejected.
func ParseFrame(buf []byte) (Frame, error) {
	if len(buf) < Overhead {
		return Frame{}, fmt.Errorf("frame too short: %d bytes (min %d): %w",
			len(buf), Overhead, protocol.ErrLengthMismatch)
	}
	if buf[0] != SyncByte {
		return Frame{}, fmt.Errorf("invalid sync byte: 0x%02x (expected 0x%02x): %w",
			buf[0], SyncByte, protocol.ErrFraming)
	}

	cmd := Command(buf[1])
	payloadLen := int(buf[2])
	if len(buf) != FrameSize(payloadLen) {
		return Frame{}, fmt.Errorf("frame length %d does not match declared payload %d: %w",
			len(buf), payloadLen, protocol.ErrLengthMismatch)
	}

	payload := buf[3 : 3+payloadLen]
	if want, got := Checksum(cmd, payload), buf[len(buf)-1]; want != got {
		return Frame{}, fmt.Errorf("checksum 0x%02x, computed 0x%02x: %w",
			got, want, protocol.ErrChecksum)
	}

	return Frame{Command: cmd, Payload: payload}, nil
}
