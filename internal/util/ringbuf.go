package util

import "sync"

// RingBuffer keeps the most recent items pushed into it, up to a fixed
// capacity; once full, each Push evicts the oldest entry. Safe for
// concurrent use.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int // overwrite position once the buffer has wrapped
	full  bool
	cap   int
}

func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, 0, capacity), cap: capacity}
}

// Push stores item, evicting the oldest entry when the window is full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		r.items = append(r.items, item)
		r.full = len(r.items) == r.cap
		return
	}
	r.items[r.next] = item
	r.next = (r.next + 1) % r.cap
}

// Snapshot returns a copy of the buffered items, oldest first.
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		out := make([]T, len(r.items))
		copy(out, r.items)
		return out
	}
	out := make([]T, 0, r.cap)
	out = append(out, r.items[r.next:]...)
	out = append(out, r.items[:r.next]...)
	return out
}

func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
