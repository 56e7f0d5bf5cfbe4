package voiceapi

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by where it arose.
type Kind string

// Error kinds. Validation errors never reach the network; transport and
// application errors are handled identically by callers; download errors
// happen after an otherwise successful operation.
const (
	KindValidation  Kind = "validation"
	KindTransport   Kind = "transport"
	KindApplication Kind = "application"
	KindDownload    Kind = "download"
)

// Boundary validation errors shared with the request builders.
var (
	ErrTextEmpty   = errors.New("text cannot be empty")
	ErrNoSource    = errors.New("source audio cannot be empty")
	ErrNoTarget    = errors.New("target speaker cannot be empty")
	ErrNoLocator   = errors.New("audio locator cannot be empty")
	ErrNoJobID     = errors.New("job id cannot be empty")
	ErrNoProfileID = errors.New("profile id cannot be empty")
)

// Error is the uniform failure descriptor returned by every client operation.
type Error struct {
	Err     error
	Kind    Kind
	Message string
	Code    string
	Status  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
	}

	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation wraps err as a validation failure.
func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

func transportError(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func downloadError(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindDownload,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// AsError extracts an *Error from err, wrapping foreign errors as transport failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// Result is either a successful value or an *Error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail wraps a failure. A nil err is replaced by a generic transport error so a
// Fail result can never be mistaken for success.
func Fail[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindTransport, Message: "unknown failure"}
	}

	return Result[T]{err: err}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Value returns the success value, or the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *Error {
	return r.err
}

// Unwrap converts the result into Go's value, error pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}

	return r.value, nil
}

// Then chains fn onto a successful result and propagates failures unchanged.
func Then[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Fail[U](r.err)
	}

	return fn(r.value)
}
