package streamkit

import (
	"io"
)

// ============================================================================
// Restricted Stream Decorator
// ============================================================================

// RestrictedStream wraps a stream and exposes only a chosen subset of its
// capabilities. Calls outside that subset fail with ErrUnsupportedOperation.
// This is how narrow contracts such as a read-only or forward-only stream are
// built:
//
//	f, _ := local.Open("data.bin", local.ReadWrite)
//	ro := streamkit.ReadOnly(f)
//
//	// Read operations work normally
//	n, _ := ro.Read(buf)
//
//	// Write operations fail
//	_, err := ro.Write(buf)
//	// errors.Is(err, streamkit.ErrUnsupportedOperation) == true
type RestrictedStream struct {
	s    Stream
	caps Capability
	opts RestrictOptions
}

var (
	_ io.ReadWriteSeeker = (*RestrictedStream)(nil)
	_ io.Closer          = (*RestrictedStream)(nil)
	_ Sizer              = (*RestrictedStream)(nil)
	_ Truncater          = (*RestrictedStream)(nil)
	_ Flusher            = (*RestrictedStream)(nil)
	_ CapabilityReporter = (*RestrictedStream)(nil)
)

// RestrictOptions configures a RestrictedStream.
type RestrictOptions struct {
	// OnWriteAttempt is called when a write or truncate outside the allowed
	// capabilities is attempted. If nil, the call fails with
	// ErrUnsupportedOperation. If the handler returns nil the call is
	// forwarded anyway (use carefully); otherwise its error is returned.
	OnWriteAttempt func(op string) error
}

// RestrictOption is a functional option for configuring RestrictedStream.
type RestrictOption func(*RestrictOptions)

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(op string) error) RestrictOption {
	return func(o *RestrictOptions) {
		o.OnWriteAttempt = handler
	}
}

// Restrict wraps s so that only caps (intersected with what s supports)
// are available.
func Restrict(s Stream, caps Capability, opts ...RestrictOption) *RestrictedStream {
	options := RestrictOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &RestrictedStream{s: s, caps: caps, opts: options}
}

// ReadOnly wraps s so that only read, seek, size and close are available.
func ReadOnly(s Stream, opts ...RestrictOption) *RestrictedStream {
	return Restrict(s, CapRead|CapSeek|CapSize|CapClose, opts...)
}

// ForwardOnly wraps s so that it can only be read sequentially and closed.
func ForwardOnly(s Stream) *RestrictedStream {
	return Restrict(s, CapRead|CapClose)
}

// Unwrap returns the underlying stream.
func (r *RestrictedStream) Unwrap() Stream {
	return r.s
}

// Capabilities implements CapabilityReporter.
func (r *RestrictedStream) Capabilities() Capability {
	return r.caps & Capabilities(r.s)
}

func (r *RestrictedStream) allowed(c Capability) bool {
	return r.Capabilities().Has(c)
}

// writeAllowed decides whether a mutating call may be forwarded.
func (r *RestrictedStream) writeAllowed(op string, c Capability) error {
	if r.allowed(c) {
		return nil
	}
	if !Supports(r.s, c) {
		return unsupported(op)
	}
	if r.opts.OnWriteAttempt != nil {
		return r.opts.OnWriteAttempt(op)
	}
	return unsupported(op)
}

func (r *RestrictedStream) Read(p []byte) (int, error) {
	if !r.allowed(CapRead) {
		return 0, unsupported("read")
	}
	return r.s.(io.Reader).Read(p)
}

func (r *RestrictedStream) Write(p []byte) (int, error) {
	if err := r.writeAllowed("write", CapWrite); err != nil {
		return 0, err
	}
	return r.s.(io.Writer).Write(p)
}

func (r *RestrictedStream) Seek(offset int64, whence int) (int64, error) {
	if !r.allowed(CapSeek) {
		return 0, unsupported("seek")
	}
	return r.s.(io.Seeker).Seek(offset, whence)
}

func (r *RestrictedStream) Size() (int64, error) {
	if !r.allowed(CapSize) {
		return 0, unsupported("size")
	}
	return r.s.(Sizer).Size()
}

func (r *RestrictedStream) Truncate(size int64) error {
	if err := r.writeAllowed("truncate", CapTruncate); err != nil {
		return err
	}
	return r.s.(Truncater).Truncate(size)
}

func (r *RestrictedStream) Flush() error {
	if err := r.writeAllowed("flush", CapFlush); err != nil {
		return err
	}
	return r.s.(Flusher).Flush()
}

func (r *RestrictedStream) Close() error {
	if !r.allowed(CapClose) {
		return unsupported("close")
	}
	return r.s.(io.Closer).Close()
}
