package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol"
)

// DefaultReceiveBuffer matches the receive buffer of the grid-board firmware.
const DefaultReceiveBuffer = 256

// Stats counts what a Receiver accepted and dropped.
type Stats struct {
	Frames    uint64 // Validated frames returned to the caller
	Discarded uint64 // Bytes skipped while hunting for a sync byte
	Framing   uint64
	Checksum  uint64
	Length    uint64 // Includes frames that would not fit the buffer
}

// Receiver turns a byte stream into validated frames.
//
// Bytes are discarded until a sync byte is seen. From there the receiver
// accumulates until the length declared in the third byte is complete, then
// validates the frame. A frame that fails validation, or that declares more
// bytes than the buffer can hold, is dropped and the bytes after its sync
// byte are scanned again so a truncated frame cannot hide the next one.
type Receiver struct {
	buf   *protocol.Buffer
	stats Stats

	// OnError, when set, is called for every dropped frame.
	OnError func(err error)
}

// NewReceiver creates a receiver with the given buffer capacity. Capacities
// below the frame overhead are raised to it.
func NewReceiver(capacity int) *Receiver {
	if capacity < Overhead {
		capacity = Overhead
	}
	return &Receiver{buf: protocol.NewBuffer(capacity)}
}

// Feed consumes p and returns every frame it completed, in arrival order.
// Returned payloads are copies and stay valid after the next call.
func (r *Receiver) Feed(p []byte) []Frame {
	var frames []Frame
	pending := p

	for len(pending) > 0 {
		b := pending[0]
		pending = pending[1:]

		if r.buf.Len() == 0 && b != SyncByte {
			r.stats.Discarded++
			continue
		}
		// Capacity is at least Overhead and a declared length larger than
		// the buffer is rejected below, so this append cannot overflow.
		_ = r.buf.Append(b)

		n := r.buf.Len()
		if n < 3 {
			continue
		}

		need := FrameSize(int(r.buf.Bytes()[2]))
		if need > r.buf.Cap() {
			r.drop(fmt.Errorf("declared frame of %d bytes exceeds receive buffer %d: %w: %w",
				need, r.buf.Cap(), protocol.ErrLengthMismatch, protocol.ErrOverCapacity))
			pending = r.rescan(pending)
			continue
		}
		if n < need {
			continue
		}

		frame, err := ParseFrame(r.buf.Bytes())
		if err != nil {
			r.drop(err)
			pending = r.rescan(pending)
			continue
		}

		frames = append(frames, Frame{
			Command: frame.Command,
			Payload: append([]byte(nil), frame.Payload...),
		})
		r.stats.Frames++
		r.buf.Reset()
	}

	return frames
}

// Expire abandons a partial frame that stopped receiving bytes and scans
// its tail for another sync byte. Callers invoke it when the link has been
// quiet long enough that the in-flight frame cannot complete.
func (r *Receiver) Expire() []Frame {
	if r.buf.Len() == 0 {
		return nil
	}
	r.drop(fmt.Errorf("partial frame of %d bytes stalled: %w", r.buf.Len(), protocol.ErrLengthMismatch))
	return r.Feed(r.rescan(nil))
}

// Pending returns the number of bytes held for an incomplete frame.
func (r *Receiver) Pending() int {
	return r.buf.Len()
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() Stats {
	return r.stats
}

// Reset drops any partial frame without counting it as an error.
func (r *Receiver) Reset() {
	r.buf.Reset()
}

func (r *Receiver) drop(err error) {
	switch {
	case errors.Is(err, protocol.ErrChecksum):
		r.stats.Checksum++
	case errors.Is(err, protocol.ErrFraming):
		r.stats.Framing++
	default:
		r.stats.Length++
	}
	if r.OnError != nil {
		r.OnError(err)
	}
}

// rescan empties the buffer and returns the bytes that still have to be
// processed: everything after the dropped sync byte, starting at the next
// sync byte, followed by rest.
func (r *Receiver) rescan(rest []byte) []byte {
	held := r.buf.Bytes()
	var tail []byte
	if len(held) > 1 {
		if i := bytes.IndexByte(held[1:], SyncByte); i >= 0 {
			tail = append(tail, held[1+i:]...)
			r.stats.Discarded += uint64(i + 1)
		} else {
			r.stats.Discarded += uint64(len(held))
		}
	} else {
		r.stats.Discarded += uint64(len(held))
	}
	r.buf.Reset()

	if len(tail) == 0 {
		return rest
	}
	return append(tail, rest...)
}
