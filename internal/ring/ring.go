// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// element once full. Storage is allocated once in New; Push never allocates.
package ring

// Buffer is a fixed-capacity circular buffer.
// Not safe for concurrent use; the caller must synchronize.
type Buffer[T any] struct {
	buf      []T
	head     int // next write position
	count    int
	overflow bool // true if any element was evicted since last drain/reset
}

// New creates a Buffer holding at most capacity elements.
// It panics if capacity is less than one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic("ring: capacity must be at least 1")
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the buffer is full.
func (r *Buffer[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count == len(r.buf) {
		// head was pointing at the oldest element, which is now gone
		r.overflow = true
		return
	}
	r.count++
}

// Len returns the number of stored elements.
func (r *Buffer[T]) Len() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Buffer[T]) Cap() int {
	return len(r.buf)
}

// Overflowed reports whether an element was evicted since the last Drain or Reset.
func (r *Buffer[T]) Overflowed() bool {
	return r.overflow
}

// At returns the i-th element counted from the oldest.
func (r *Buffer[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.count {
		return zero, false
	}
	return r.buf[(r.start()+i)%len(r.buf)], true
}

// Last returns the most recently pushed element.
func (r *Buffer[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

// AppendTo appends the stored elements, oldest first, to dst.
func (r *Buffer[T]) AppendTo(dst []T) []T {
	start := r.start()
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.buf[(start+i)%len(r.buf)])
	}
	return dst
}

// Snapshot returns a copy of the stored elements, oldest first.
// Returns nil when empty.
func (r *Buffer[T]) Snapshot() []T {
	if r.count == 0 {
		return nil
	}
	return r.AppendTo(make([]T, 0, r.count))
}

// Drain returns all stored elements, oldest first, and empties the buffer.
func (r *Buffer[T]) Drain() []T {
	out := r.Snapshot()
	r.Reset()
	return out
}

// Reset empties the buffer without releasing storage.
func (r *Buffer[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
	r.overflow = false
}

// start is the index of the oldest element.
func (r *Buffer[T]) start() int {
	return (r.head - r.count + len(r.buf)) % len(r.buf)
}
