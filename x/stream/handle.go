package stream

import (
	"context"
	"time"
)

// Handle is the type-erased view of a running manager.
type Handle interface {
	ID() string
	Direction() Direction
	State() State
	StartedAt() time.Time
	// Records returns how many records were delivered to the sink (reader) or written (writer).
	Records() uint64
	// Stop requests cancellation and interrupts blocked I/O. It does not wait.
	Stop()
	// Done is closed once teardown has finished.
	Done() <-chan struct{}
	// Err returns the error that ended the loop, or nil while the manager is running.
	Err() error
	// Wait blocks until the manager is closed or ctx is done.
	Wait(ctx context.Context) error
}

var (
	_ Handle = (*ReaderManager[any, any])(nil)
	_ Handle = (*WriterManager[any, any])(nil)
)
