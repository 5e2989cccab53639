package streamkit

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure reported by a stream wraps exactly one of these,
// so callers can branch with errors.Is regardless of the OS cause.
var (
	ErrOpenFailed           = errors.New("open failed")
	ErrUnsupportedOperation = errors.New("operation not supported by stream")
	ErrInvalidSeek          = errors.New("invalid seek")
	ErrUnsupportedExtension = errors.New("stream cannot grow")
	ErrClosed               = errors.New("stream already closed")
	ErrMappingAlreadyActive = errors.New("mapping already active")
	ErrMappingActive        = errors.New("operation conflicts with active mapping")
	ErrStaleMapping         = errors.New("mapping is stale")
	ErrInvalidRange         = errors.New("range outside stream bounds")
	ErrIOFailure            = errors.New("i/o failure")
)

var kinds = []error{
	ErrOpenFailed,
	ErrUnsupportedOperation,
	ErrInvalidSeek,
	ErrUnsupportedExtension,
	ErrClosed,
	ErrMappingAlreadyActive,
	ErrMappingActive,
	ErrStaleMapping,
	ErrInvalidRange,
	ErrIOFailure,
}

// Error records a failed stream operation: the operation, the path of the
// backing resource (empty for memory streams), the error kind and the
// underlying cause, if any.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

// NewError builds an *Error. A nil kind is classified as ErrIOFailure.
func NewError(op, path string, kind, cause error) *Error {
	if kind == nil {
		kind = ErrIOFailure
	}
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel carried by err, or nil when err was not
// produced by a stream.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsClosed reports whether err indicates use of a closed stream
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsUnsupported reports whether err indicates a capability the stream lacks
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// IsRetryable reports whether err is an I/O failure caused by a transient
// OS condition. Everything else should be treated as fatal for the call.
func IsRetryable(err error) bool {
	if !errors.Is(err, ErrIOFailure) {
		return false
	}
	return isTransient(err)
}
