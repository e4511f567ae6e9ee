package sdk

import (
	"io"
	"sync"
)

// pcmBuffer is a blocking byte queue shared by the capture and playback
// paths. Appends come from an audio callback, reads come from the consumer;
// frames are delivered strictly in append order.
type pcmBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newPCMBuffer(capacity int) *pcmBuffer {
	b := &pcmBuffer{buf: make([]byte, 0, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pcmBuffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buf = append(b.buf, p...)
	b.cond.Signal()
}

// Read blocks until data is available. Returns io.EOF once the buffer is
// closed and drained.
func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.buf) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.buf) == 0 && b.closed {
		return 0, io.EOF
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Flush discards everything queued but keeps the buffer usable.
func (b *pcmBuffer) Flush() {
	b.mu.Lock()
	b.buf = b.buf[:0]
	b.mu.Unlock()
}

func (b *pcmBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *pcmBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
