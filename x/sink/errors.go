package sink

import (
	"fmt"
)

// PanicError carries a value recovered from a panicking sink.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sink panicked: %v", e.Value)
}

// WorkerError describes why a fan-out worker terminated.
type WorkerError struct {
	FanOut string
	Worker int
	Cause  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("fan-out %s worker %d terminated: %v", e.FanOut, e.Worker, e.Cause)
}

func (e *WorkerError) Unwrap() error {
	return e.Cause
}
