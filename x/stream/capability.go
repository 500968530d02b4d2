package stream

import (
	"context"
	"io"
)

// Reader decodes items from a channel. Setup runs once on the manager goroutine and may
// decorate the raw channel (for example with buffering); its result is passed to every
// ReadOne call. A Reader must not loop or close the raw channel itself.
type Reader[S, O any] interface {
	Setup(raw io.ReadCloser) (S, error)
	ReadOne(ctx context.Context, ch S) (O, error)
}

// Writer encodes items onto a channel. See Reader for the meaning of Setup.
type Writer[S, O any] interface {
	Setup(raw io.WriteCloser) (S, error)
	WriteOne(ctx context.Context, ch S, item O) error
}

// ReaderPreCloser is implemented by readers that release resources before the raw
// channel is closed. ch is the zero value when Setup failed or never ran.
type ReaderPreCloser[S any] interface {
	PreClose(raw io.ReadCloser, ch S)
}

// WriterPreCloser is the writer counterpart of ReaderPreCloser.
type WriterPreCloser[S any] interface {
	PreClose(raw io.WriteCloser, ch S)
}

// ClosedHook is implemented by capabilities that need a final callback once the raw
// channel has been closed.
type ClosedHook interface {
	Closed()
}

// Interrupter is implemented by capabilities that know how to unblock their own I/O
// when the manager is stopped. Without it the manager interrupts the raw channel: by
// calling its Interrupt method, else by moving its read/write deadline into the past,
// else by closing it early.
type Interrupter interface {
	Interrupt(raw io.Closer)
}
