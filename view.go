package streamkit

import (
	"io"
)

// View is a window over [start, start+length) of another stream.
//
// A View does not own the stream it restricts: closing the view only
// invalidates the view. Positions are relative to start and every call is
// translated by seeking the underlying stream before forwarding, so the
// underlying position after a view call is unspecified.
type View struct {
	s      Stream
	start  int64
	length int64
	pos    int64
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*View)(nil)
	_ io.Closer          = (*View)(nil)
	_ Sizer              = (*View)(nil)
	_ CapabilityReporter = (*View)(nil)
)

// Window returns a View over [start, start+length) of s. The underlying
// stream must be seekable.
func Window(s Stream, start, length int64) (*View, error) {
	if start < 0 || length < 0 || start+length < start {
		return nil, NewError("window", "", ErrInvalidRange, nil)
	}
	if !Supports(s, CapSeek) {
		return nil, unsupported("window")
	}
	return &View{s: s, start: start, length: length}, nil
}

// Start returns the offset of the window in the underlying stream
func (v *View) Start() int64 { return v.start }

// Len returns the length of the window
func (v *View) Len() int64 { return v.length }

// Unwrap returns the underlying stream
func (v *View) Unwrap() Stream { return v.s }

// Capabilities implements CapabilityReporter. Seek, size and close are
// always available; read, write and flush follow the underlying stream.
func (v *View) Capabilities() Capability {
	return Capabilities(v.s)&(CapRead|CapWrite|CapFlush) | CapSeek | CapSize | CapClose
}

func (v *View) seekUnderlying(op string) error {
	if v.closed {
		return NewError(op, "", ErrClosed, nil)
	}
	sk, err := AsSeeker(v.s)
	if err != nil {
		return err
	}
	_, err = sk.Seek(v.start+v.pos, io.SeekStart)
	return err
}

func (v *View) Read(p []byte) (int, error) {
	if v.closed {
		return 0, NewError("read", "", ErrClosed, nil)
	}
	r, err := AsReader(v.s)
	if err != nil {
		return 0, err
	}
	if v.pos >= v.length {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if left := v.length - v.pos; int64(len(p)) > left {
		p = p[:left]
	}
	if err := v.seekUnderlying("read"); err != nil {
		return 0, err
	}
	n, err := r.Read(p)
	v.pos += int64(n)
	return n, err
}

// Write writes inside the window only. Bytes that would fall past the end of
// the window are not written; a write starting at the end fails with
// ErrUnsupportedExtension.
func (v *View) Write(p []byte) (int, error) {
	if v.closed {
		return 0, NewError("write", "", ErrClosed, nil)
	}
	w, err := AsWriter(v.s)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if v.pos >= v.length {
		return 0, NewError("write", "", ErrUnsupportedExtension, nil)
	}
	if left := v.length - v.pos; int64(len(p)) > left {
		p = p[:left]
	}
	if err := v.seekUnderlying("write"); err != nil {
		return 0, err
	}
	n, err := w.Write(p)
	v.pos += int64(n)
	return n, err
}

// Seek moves within [0, Len()]. Bounds are checked against the window, not
// the size of the underlying stream.
func (v *View) Seek(offset int64, whence int) (int64, error) {
	if v.closed {
		return 0, NewError("seek", "", ErrClosed, nil)
	}
	target, err := ResolveSeek("seek", "", v.pos, v.length, offset, whence)
	if err != nil {
		return v.pos, err
	}
	if target > v.length {
		return v.pos, NewError("seek", "", ErrInvalidSeek, nil)
	}
	v.pos = target
	return target, nil
}

// Size returns the window length, clipped to what the underlying stream
// actually holds when it can report its size.
func (v *View) Size() (int64, error) {
	if v.closed {
		return 0, NewError("size", "", ErrClosed, nil)
	}
	sz, err := AsSizer(v.s)
	if err != nil {
		return v.length, nil
	}
	size, err := sz.Size()
	if err != nil {
		return 0, err
	}
	return min(v.length, max(size-v.start, 0)), nil
}

// Flush forwards to the underlying stream.
func (v *View) Flush() error {
	if v.closed {
		return NewError("flush", "", ErrClosed, nil)
	}
	f, err := AsFlusher(v.s)
	if err != nil {
		return err
	}
	return f.Flush()
}

// Close invalidates the view. The underlying stream stays open.
func (v *View) Close() error {
	v.closed = true
	return nil
}
