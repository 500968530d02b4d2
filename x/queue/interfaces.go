package queue

import (
	"context"
	"errors"
)

var (
	// ErrFull is returned by TryEnqueue when a bounded queue has no free slot.
	ErrFull = errors.New("queue: full")
	// ErrEmpty is returned by TryDequeue when no item is queued.
	ErrEmpty = errors.New("queue: empty")
)

// Queue is a concurrency-safe FIFO shared by any number of producers and consumers.
// Dequeue blocks until an item is available or ctx is done.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	Dequeue(ctx context.Context) (T, error)
	TryDequeue() (T, error)
	Len() int
}

// New returns an unbounded queue when capacity <= 0 and a bounded one otherwise.
func New[T any](capacity int) Queue[T] {
	if capacity <= 0 {
		return NewUnbounded[T]()
	}
	return NewBounded[T](capacity)
}
