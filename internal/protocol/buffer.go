package protocol

import "fmt"

// Buffer is a fixed-capacity byte accumulator. Append never grows the
// backing array past the capacity given to NewBuffer.
type Buffer struct {
	data []byte
}

// NewBuffer creates an empty buffer that holds at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Append adds p to the buffer. If p does not fit, nothing is appended and
// the returned error wraps ErrOverCapacity.
func (b *Buffer) Append(p ...byte) error {
	if len(b.data)+len(p) > cap(b.data) {
		return fmt.Errorf("append %d bytes to %d/%d: %w", len(p), len(b.data), cap(b.data), ErrOverCapacity)
	}
	b.data = append(b.data, p...)
	return nil
}

// Bytes returns the accumulated bytes. The slice aliases the buffer and is
// only valid until the next Append or Reset.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Free returns how many more bytes fit.
func (b *Buffer) Free() int {
	return cap(b.data) - len(b.data)
}

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
