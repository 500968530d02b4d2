package queue

import (
	"context"
	"sync"
)

// Unbounded never blocks producers. Memory grows without limit when consumers lag.
type Unbounded[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	waiters int
	// ready is closed and replaced whenever an item arrives while consumers wait.
	ready chan struct{}
}

// NewUnbounded creates an empty unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		ready: make(chan struct{}),
	}
}

// Offer appends item and never blocks.
func (q *Unbounded[T]) Offer(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	if q.waiters > 0 {
		close(q.ready)
		q.ready = make(chan struct{})
	}
	q.mu.Unlock()
}

// Enqueue implements Queue. It only fails when ctx is already done.
func (q *Unbounded[T]) Enqueue(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.Offer(item)
	return nil
}

// Dequeue removes the oldest item, blocking while the queue is empty.
func (q *Unbounded[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if item, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return item, nil
		}
		q.waiters++
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.waiters--
			q.mu.Unlock()
			var zero T
			return zero, ctx.Err()
		case <-ready:
			q.mu.Lock()
			q.waiters--
			q.mu.Unlock()
		}
	}
}

// TryDequeue removes the oldest item without blocking.
func (q *Unbounded[T]) TryDequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item, ok := q.popLocked(); ok {
		return item, nil
	}
	var zero T
	return zero, ErrEmpty
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *Unbounded[T]) popLocked() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, true
}
