package queue

import "sync"

// Queue is a goroutine-safe FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates a queue holding at most limit items; a non-positive limit means unbounded.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Enqueue adds an item to the tail of the queue.
// It returns false if the queue is full and the item was dropped.
func (q *Queue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, item)

	return true
}

// Dequeue removes and returns the item at the head of the queue.
// The second result is false if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	return q.items[0], true
}

// Reset empties the queue.
func (q *Queue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
}

// Length returns the number of items in the queue.
func (q *Queue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.Length() == 0
}
