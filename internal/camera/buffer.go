package camera

import (
	"context"
	"sync"
)

// Buffer holds the most recent frame. Writers never block; readers either
// peek with Latest or wait for a newer frame with Next.
type Buffer struct {
	mu      sync.Mutex
	frame   Frame
	seq     uint64
	changed chan struct{}
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{changed: make(chan struct{})}
}

// Set replaces the held frame and wakes waiting readers.
func (b *Buffer) Set(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = f
	b.seq++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Latest returns the held frame and its sequence number (0 when empty).
func (b *Buffer) Latest() (Frame, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.seq
}

// Next blocks until a frame newer than seq is available or ctx ends.
func (b *Buffer) Next(ctx context.Context, seq uint64) (Frame, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > seq {
			f, s := b.frame, b.seq
			b.mu.Unlock()
			return f, s, nil
		}
		ch := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, seq, ctx.Err()
		case <-ch:
		}
	}
}
