package stream

import (
	"errors"
	"fmt"
)

// ErrUnknownTag is the cause of a decode error for a tag missing from the registry.
var ErrUnknownTag = errors.New("unknown tag")

// ErrorType classifies why a manager loop ended.
type ErrorType int

const (
	// ErrorTypeDecode covers unknown tags and malformed payloads.
	ErrorTypeDecode ErrorType = iota
	// ErrorTypeChannel covers I/O failures on the channel, including end of stream.
	ErrorTypeChannel
	// ErrorTypeCancelled means Stop was requested.
	ErrorTypeCancelled
	// ErrorTypeSink means the sink panicked or returned an error.
	ErrorTypeSink
	// ErrorTypePanic means a capability panicked.
	ErrorTypePanic
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeChannel:
		return "channel"
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeSink:
		return "sink"
	case ErrorTypePanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Error is the terminal error of a manager loop.
type Error struct {
	Type    ErrorType
	Op      string
	Tag     string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("stream %s error", e.Type)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Tag != "" {
		msg += fmt.Sprintf(" (tag %q)", e.Tag)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an error of the given type for operation op.
func NewError(errType ErrorType, op string) *Error {
	return &Error{Type: errType, Op: op}
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithTag records the record tag involved.
func (e *Error) WithTag(tag string) *Error {
	e.Tag = tag
	return e
}

// WithMessage adds a human readable message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// NewDecodeError reports an unknown tag or a malformed payload.
func NewDecodeError(tag string, cause error) *Error {
	return NewError(ErrorTypeDecode, "decode").WithTag(tag).WithCause(cause)
}

// NewUnknownTagError reports a tag that has no registered decoder.
func NewUnknownTagError(tag string) *Error {
	return NewDecodeError(tag, ErrUnknownTag)
}

// NewChannelError reports an I/O failure on the channel.
func NewChannelError(op string, cause error) *Error {
	return NewError(ErrorTypeChannel, op).WithCause(cause)
}

// TypeOf returns the ErrorType of the first *Error in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Type, true
	}
	return 0, false
}

func IsDecodeError(err error) bool  { return isType(err, ErrorTypeDecode) }
func IsChannelError(err error) bool { return isType(err, ErrorTypeChannel) }
func IsCancelled(err error) bool    { return isType(err, ErrorTypeCancelled) }
func IsSinkError(err error) bool    { return isType(err, ErrorTypeSink) }

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}
