package transport

import "sync/atomic"

// PipeEnd is one side of an in-memory stream pair.
type PipeEnd struct {
	*Queue
	peer   *PipeEnd
	closed atomic.Bool
}

// Pipe returns two connected stream ends. Bytes written to one are
// polled from the other.
func Pipe(size int) (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{Queue: NewQueue(size)}
	b := &PipeEnd{Queue: NewQueue(size)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Write(b []byte) (int, error) {
	if p.closed.Load() || p.peer.closed.Load() {
		return 0, ErrClosed
	}
	p.peer.Push(b)
	return len(b), nil
}

func (p *PipeEnd) Poll() []byte { return p.Bytes() }

func (p *PipeEnd) Close() error {
	p.closed.Store(true)
	return nil
}
