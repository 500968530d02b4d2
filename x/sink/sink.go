package sink

import (
	"runtime/debug"
)

// Sink consumes one item per call. Process has no result; failures are reported by
// panicking or by implementing Fallible.
type Sink[T any] interface {
	Process(item T)
}

// Fallible is a Sink that reports failure through an error. Callers that know about
// Fallible (managers and fan-out workers) call TryProcess instead of Process.
type Fallible[T any] interface {
	Sink[T]
	TryProcess(item T) error
}

// Func adapts a plain function to Sink.
type Func[T any] func(item T)

func (f Func[T]) Process(item T) { f(item) }

// FallibleFunc adapts a function returning an error to Fallible.
type FallibleFunc[T any] func(item T) error

// Process calls f and drops its error. Managers and workers call TryProcess instead.
func (f FallibleFunc[T]) Process(item T) { _ = f(item) }

func (f FallibleFunc[T]) TryProcess(item T) error { return f(item) }

// Invoke delivers item to s on the calling goroutine. It returns the error of a
// Fallible sink, or a *PanicError if s panicked.
func Invoke[T any](s Sink[T], item T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	if f, ok := s.(Fallible[T]); ok {
		return f.TryProcess(item)
	}
	s.Process(item)
	return nil
}
