// Package ringbuf provides a fixed-capacity ring that keeps the most recent
// values and overwrites the oldest one when full. It is not safe for
// concurrent use.
package ringbuf

// Ring holds the most recent pushed values. Capacity is a power of two so the
// index wraps with a mask.
type Ring[T any] struct {
	buf  []T
	mask uint64
	head uint64 // total pushes
}

// New creates a ring. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New[T any](capacity int) *Ring[T] {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Push appends v, overwriting the oldest value when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head&r.mask] = v
	r.head++
}

// Back returns the value pushed k steps before the latest one; Back(0) is the
// latest. ok is false when fewer than k+1 values are held.
func (r *Ring[T]) Back(k int) (v T, ok bool) {
	if k < 0 || k >= r.Len() {
		return v, false
	}
	return r.buf[(r.head-1-uint64(k))&r.mask], true
}

// Len returns the number of values held.
func (r *Ring[T]) Len() int {
	if r.head < uint64(len(r.buf)) {
		return int(r.head)
	}
	return len(r.buf)
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
