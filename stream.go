package streamkit

import (
	"io"
	"strings"
)

// ============================================================================
// Capability Interfaces
// ============================================================================
// Each capability is a separate interface so consumers depend only on what
// they use. The method sets match package io, which means every stream in
// this module also works with io.Copy, bufio and friends.
//
// End-of-stream is reported the io way: Read returns 0, io.EOF. io.EOF is
// not a failure and never carries an error kind.

// Reader reads up to len(p) bytes at the current position. Short reads are
// legal; callers that need an exact count loop or use ReadFull.
type Reader = io.Reader

// Writer writes up to len(p) bytes at the current position, growing the
// stream when the backend allows it. A short write signals a resource limit.
type Writer = io.Writer

// Seeker moves the current position. Whence is io.SeekStart, io.SeekCurrent
// or io.SeekEnd. A negative result fails with ErrInvalidSeek.
type Seeker = io.Seeker

// Closer releases the resources owned by a stream. Close is idempotent;
// every other call on a closed stream fails with ErrClosed.
type Closer = io.Closer

// Sizer reports the current logical length of a stream.
type Sizer interface {
	Size() (int64, error)
}

// Truncater resizes a stream.
type Truncater interface {
	Truncate(size int64) error
}

// Flusher pushes buffered or cached writes to the backing medium.
type Flusher interface {
	Flush() error
}

// Stream is any value exposing one or more capabilities.
type Stream any

// ReadSeeker, ReadWriteSeeker and ReadWriteSeekSizer are the common
// combinations used by the helpers.
type (
	ReadSeeker      = io.ReadSeeker
	ReadWriteSeeker = io.ReadWriteSeeker

	ReadWriteSeekSizer interface {
		io.ReadWriteSeeker
		Sizer
	}
)

// ============================================================================
// Capability Query
// ============================================================================

// Capability is a bit set of stream capabilities.
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
	CapSeek
	CapSize
	CapClose
	CapTruncate
	CapFlush

	CapNone Capability = 0
	CapAll             = CapRead | CapWrite | CapSeek | CapSize | CapClose | CapTruncate | CapFlush
)

var capNames = []struct {
	c    Capability
	name string
}{
	{CapRead, "read"},
	{CapWrite, "write"},
	{CapSeek, "seek"},
	{CapSize, "size"},
	{CapClose, "close"},
	{CapTruncate, "truncate"},
	{CapFlush, "flush"},
}

// Has reports whether all capabilities in other are set in c
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	var parts []string
	for _, cn := range capNames {
		if c.Has(cn.c) {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, "|")
}

// CapabilityReporter is implemented by streams whose supported capabilities
// depend on runtime state, such as the mode a file was opened in. A stream
// may have a Write method and still report no CapWrite; such a Write fails
// with ErrUnsupportedOperation.
type CapabilityReporter interface {
	Capabilities() Capability
}

// Capabilities returns the capabilities s actually supports: the interfaces
// it implements, narrowed by its own report when it is a CapabilityReporter.
func Capabilities(s Stream) Capability {
	var c Capability
	if _, ok := s.(io.Reader); ok {
		c |= CapRead
	}
	if _, ok := s.(io.Writer); ok {
		c |= CapWrite
	}
	if _, ok := s.(io.Seeker); ok {
		c |= CapSeek
	}
	if _, ok := s.(Sizer); ok {
		c |= CapSize
	}
	if _, ok := s.(io.Closer); ok {
		c |= CapClose
	}
	if _, ok := s.(Truncater); ok {
		c |= CapTruncate
	}
	if _, ok := s.(Flusher); ok {
		c |= CapFlush
	}
	if r, ok := s.(CapabilityReporter); ok {
		c &= r.Capabilities()
	}
	return c
}

// Supports reports whether s supports every capability in caps
func Supports(s Stream, caps Capability) bool {
	return Capabilities(s).Has(caps)
}

func unsupported(op string) error {
	return NewError(op, "", ErrUnsupportedOperation, nil)
}

// AsReader returns s as a Reader or fails with ErrUnsupportedOperation.
func AsReader(s Stream) (Reader, error) {
	if Supports(s, CapRead) {
		return s.(io.Reader), nil
	}
	return nil, unsupported("read")
}

// AsWriter returns s as a Writer or fails with ErrUnsupportedOperation.
func AsWriter(s Stream) (Writer, error) {
	if Supports(s, CapWrite) {
		return s.(io.Writer), nil
	}
	return nil, unsupported("write")
}

// AsSeeker returns s as a Seeker or fails with ErrUnsupportedOperation.
func AsSeeker(s Stream) (Seeker, error) {
	if Supports(s, CapSeek) {
		return s.(io.Seeker), nil
	}
	return nil, unsupported("seek")
}

// AsSizer returns s as a Sizer or fails with ErrUnsupportedOperation.
func AsSizer(s Stream) (Sizer, error) {
	if Supports(s, CapSize) {
		return s.(Sizer), nil
	}
	return nil, unsupported("size")
}

// AsCloser returns s as a Closer or fails with ErrUnsupportedOperation.
func AsCloser(s Stream) (Closer, error) {
	if Supports(s, CapClose) {
		return s.(io.Closer), nil
	}
	return nil, unsupported("close")
}

// AsTruncater returns s as a Truncater or fails with ErrUnsupportedOperation.
func AsTruncater(s Stream) (Truncater, error) {
	if Supports(s, CapTruncate) {
		return s.(Truncater), nil
	}
	return nil, unsupported("truncate")
}

// AsFlusher returns s as a Flusher or fails with ErrUnsupportedOperation.
func AsFlusher(s Stream) (Flusher, error) {
	if Supports(s, CapFlush) {
		return s.(Flusher), nil
	}
	return nil, unsupported("flush")
}

// Position returns the current position of s.
func Position(s Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// ResolveSeek computes the target of a seek against the given position and
// size. Backends share it so that whence handling and bounds errors agree.
func ResolveSeek(op, path string, pos, size, offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = pos
	case io.SeekEnd:
		base = size
	default:
		return pos, NewError(op, path, ErrInvalidSeek, nil)
	}
	target := base + offset
	if target < 0 || (offset > 0 && target < base) {
		return pos, NewError(op, path, ErrInvalidSeek, nil)
	}
	return target, nil
}
