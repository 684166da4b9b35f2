package queue

import (
	"container/list"
	"sync"
)

// Bounded is a FIFO queue with a fixed capacity and a drop-oldest overflow
// policy. Pushing into a full queue evicts the oldest element and records
// the drop. Safe for concurrent use.
type Bounded[T any] struct {
	capacity int

	mu      sync.Mutex
	items   *list.List // front = oldest
	dropped uint64
}

// NewBounded creates a bounded queue. Capacity must be positive,
// otherwise it panics.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		panic("bounded queue capacity must be positive")
	}
	return &Bounded[T]{
		capacity: capacity,
		items:    list.New(),
	}
}

// Push appends v. When the queue is full, the oldest element is discarded
// first; the returned flag reports whether that happened.
func (q *Bounded[T]) Push(v T) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() >= q.capacity {
		if oldest := q.items.Front(); oldest != nil {
			q.items.Remove(oldest)
			q.dropped++
			dropped = true
		}
	}
	q.items.PushBack(v)
	return dropped
}

// Pop removes and returns the oldest element.
func (q *Bounded[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		var zero T
		return zero, false
	}
	q.items.Remove(front)
	return front.Value.(T), true
}

// Len returns the number of queued elements.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Dropped returns how many elements have been discarded by overflow.
func (q *Bounded[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear removes all queued elements and returns how many were removed.
func (q *Bounded[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Len()
	q.items.Init()
	return n
}
