package render

import "sync"

// RingBuffer is a fixed-capacity circular buffer. Hosts use it to bound the
// scrollback they keep on screen; the underlying regions are never trimmed.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	buf      []T
	capacity int
	pos      int // next write position
	full     bool
}

// NewRingBuffer creates a ring buffer with the given capacity (minimum 1).
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Write adds an item, overwriting the oldest one when full.
func (rb *RingBuffer[T]) Write(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.pos] = item
	rb.pos = (rb.pos + 1) % rb.capacity
	if rb.pos == 0 {
		rb.full = true
	}
}

// Reset empties the buffer.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.buf {
		rb.buf[i] = zero
	}
	rb.pos = 0
	rb.full = false
}

// ReadAll returns all items in insertion order.
func (rb *RingBuffer[T]) ReadAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if !rb.full {
		result := make([]T, rb.pos)
		copy(result, rb.buf[:rb.pos])
		return result
	}

	result := make([]T, rb.capacity)
	copy(result, rb.buf[rb.pos:])
	copy(result[rb.capacity-rb.pos:], rb.buf[:rb.pos])
	return result
}
