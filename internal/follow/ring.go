package follow

// Ring is a fixed-capacity circular buffer. When full, pushing evicts the
// oldest element. It backs the initial "last N" pass over a source and is
// discarded once that output is flushed; it is confined to the engine's
// control flow and needs no locking.
type Ring[T any] struct {
	items []T
	head  int // next write position
	count int
}

// NewRing creates a ring buffer holding at most capacity elements.
// A capacity of zero or less yields a ring that retains nothing.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		return &Ring[T]{}
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push adds v, evicting the oldest element if the ring is full.
func (r *Ring[T]) Push(v T) {
	if len(r.items) == 0 {
		return
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Len returns the number of retained elements.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Drain returns the retained elements oldest-to-newest and empties the ring.
func (r *Ring[T]) Drain() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	if r.count < len(r.items) {
		copy(out, r.items[:r.count])
	} else {
		n := copy(out, r.items[r.head:])
		copy(out[n:], r.items[:r.head])
	}
	r.head = 0
	r.count = 0
	return out
}
