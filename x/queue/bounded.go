package queue

import "context"

// Bounded holds at most a fixed number of items. Enqueue blocks while it is full.
type Bounded[T any] struct {
	items chan T
}

// NewBounded creates a queue holding at most capacity items.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{items: make(chan T, capacity)}
}

// Enqueue appends item, waiting for a free slot until ctx is done.
func (q *Bounded[T]) Enqueue(ctx context.Context, item T) error {
	select {
	case q.items <- item:
		return nil
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue appends item or returns ErrFull without blocking.
func (q *Bounded[T]) TryEnqueue(item T) error {
	select {
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue removes the oldest item, blocking while the queue is empty.
func (q *Bounded[T]) Dequeue(ctx context.Context) (T, error) {
	select {
	case item := <-q.items:
		return item, nil
	default:
	}
	select {
	case item := <-q.items:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryDequeue removes the oldest item without blocking.
func (q *Bounded[T]) TryDequeue() (T, error) {
	select {
	case item := <-q.items:
		return item, nil
	default:
		var zero T
		return zero, ErrEmpty
	}
}

func (q *Bounded[T]) Len() int { return len(q.items) }

func (q *Bounded[T]) Cap() int { return cap(q.items) }
