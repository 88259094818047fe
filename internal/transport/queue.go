package transport

import (
	"errors"
	"sync/atomic"
)

// DefaultQueueSize is the number of chunks buffered between a reader
// goroutine and Poll.
const DefaultQueueSize = 256

// ErrClosed is returned by writes to a closed transport.
var ErrClosed = errors.New("transport: closed")

// Stream is a byte-oriented transport. Poll never blocks.
type Stream interface {
	Write(p []byte) (int, error)
	Poll() []byte
	Close() error
}

// MessagePort is a message-oriented transport: each Write is one whole
// message and Poll returns whole messages.
type MessagePort interface {
	Write(p []byte) (int, error)
	Poll() [][]byte
	Close() error
}

// Queue is a bounded chunk queue filled by one reader goroutine and
// drained by the tick loop. A push to a full queue is dropped and counted.
type Queue struct {
	ch      chan []byte
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to size chunks.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan []byte, size)}
}

// Push copies p into the queue. It reports false when the chunk was
// dropped.
func (q *Queue) Push(p []byte) bool {
	select {
	case q.ch <- append([]byte(nil), p...):
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Chunks drains every queued chunk without blocking.
func (q *Queue) Chunks() [][]byte {
	var out [][]byte
	for {
		select {
		case c := <-q.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

// Bytes drains the queue into one slice.
func (q *Queue) Bytes() []byte {
	var out []byte
	for _, c := range q.Chunks() {
		out = append(out, c...)
	}
	return out
}

// Dropped returns the number of chunks lost to a full queue.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
