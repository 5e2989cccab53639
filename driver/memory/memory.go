package memory

import (
	"io"
	"math"

	"github.com/gobeaver/streamkit"
)

// MaxContentSize is the largest content a memory stream will ever hold.
// Writes and truncates beyond it fail with streamkit.ErrUnsupportedExtension.
const MaxContentSize int64 = min(1<<40, math.MaxInt)

// Config holds configuration for a memory stream
type Config struct {
	// MaxSize is the largest size the stream may grow to (0 = MaxContentSize)
	MaxSize int64

	// InitialCapacity preallocates the buffer
	InitialCapacity int
}

// Stream is a byte stream backed by a slice.
//
// A stream created with New owns its buffer and grows it on demand. NewFixed
// streams write into caller-owned memory and never reallocate. NewReader
// streams are read-only.
//
// Stream is not safe for concurrent use.
type Stream struct {
	buf      []byte
	pos      int64
	limit    int64 // 0 = unlimited unless fixed
	fixed    bool
	readOnly bool
	closed   bool

	watch *streamkit.CallbackChangeToken
}

var (
	_ streamkit.ReadWriteSeekSizer = (*Stream)(nil)
	_ streamkit.Truncater          = (*Stream)(nil)
	_ streamkit.Flusher            = (*Stream)(nil)
	_ streamkit.CapabilityReporter = (*Stream)(nil)
	_ io.ReaderAt                  = (*Stream)(nil)
	_ io.WriterAt                  = (*Stream)(nil)
	_ io.ByteReader                = (*Stream)(nil)
	_ io.ByteWriter                = (*Stream)(nil)
	_ io.WriterTo                  = (*Stream)(nil)
	_ io.Closer                    = (*Stream)(nil)
)

// New creates an empty growable memory stream
func New(cfg ...Config) *Stream {
	s := &Stream{}
	if len(cfg) > 0 {
		s.limit = max(cfg[0].MaxSize, 0)
		if c := cfg[0].InitialCapacity; c > 0 {
			s.buf = make([]byte, 0, c)
		}
	}
	return s
}

// NewFixed creates a stream over caller-owned memory. The stream starts with
// len(buf) bytes of content and can hold at most cap(buf) bytes; writes
// land directly in buf's backing array.
func NewFixed(buf []byte) *Stream {
	return &Stream{buf: buf, limit: int64(cap(buf)), fixed: true}
}

// NewReader creates a read-only stream over b. b is not copied.
func NewReader(b []byte) *Stream {
	return &Stream{buf: b, readOnly: true}
}

// Capabilities implements streamkit.CapabilityReporter
func (s *Stream) Capabilities() streamkit.Capability {
	if s.readOnly {
		return streamkit.CapRead | streamkit.CapSeek | streamkit.CapSize | streamkit.CapClose
	}
	return streamkit.CapAll
}

func (s *Stream) check(op string) error {
	if s.closed {
		return streamkit.NewError(op, "", streamkit.ErrClosed, nil)
	}
	return nil
}

func (s *Stream) checkWrite(op string) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.readOnly {
		return streamkit.NewError(op, "", streamkit.ErrUnsupportedOperation, nil)
	}
	return nil
}

// Read implements io.Reader
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt. The position is not moved.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if err := s.check("readat"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, streamkit.NewError("readat", "", streamkit.ErrInvalidRange, nil)
	}
	if off >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadByte implements io.ByteReader
func (s *Stream) ReadByte() (byte, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	c := s.buf[s.pos]
	s.pos++
	return c, nil
}

// WriteTo implements io.WriterTo, writing from the position to the end
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if s.pos >= int64(len(s.buf)) {
		return 0, nil
	}
	n, err := streamkit.WriteAll(w, s.buf[s.pos:])
	s.pos += int64(n)
	return int64(n), err
}

// Write implements io.Writer. Writing past the end zero-fills the gap.
// A write that reaches the size limit is cut short and returns
// ErrUnsupportedExtension with the count that fit.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.checkWrite("write"); err != nil {
		return 0, err
	}
	n, err := s.writeAt("write", p, s.pos)
	s.pos += int64(n)
	return n, err
}

// WriteAt implements io.WriterAt. The position is not moved.
func (s *Stream) WriteAt(p []byte, off int64) (int, error) {
	if err := s.checkWrite("writeat"); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, streamkit.NewError("writeat", "", streamkit.ErrInvalidRange, nil)
	}
	return s.writeAt("writeat", p, off)
}

// WriteByte implements io.ByteWriter
func (s *Stream) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// WriteString writes the contents of str
func (s *Stream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

func (s *Stream) writeAt(op string, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	limit := s.ceiling()
	end := off + int64(len(p))
	short := false
	if end < off || end > limit {
		if off >= limit {
			return 0, streamkit.NewError(op, "", streamkit.ErrUnsupportedExtension, nil)
		}
		p = p[:limit-off]
		end = limit
		short = true
	}
	if end > int64(len(s.buf)) {
		s.grow(end)
	}
	n := copy(s.buf[off:], p)
	s.changed()
	if short {
		return n, streamkit.NewError(op, "", streamkit.ErrUnsupportedExtension, io.ErrShortWrite)
	}
	return n, nil
}

// ceiling is the largest size the content may reach
func (s *Stream) ceiling() int64 {
	if s.fixed || s.limit > 0 {
		return min(s.limit, MaxContentSize)
	}
	return MaxContentSize
}

// grow extends the content to size, zero-filling new bytes. Fixed streams
// stay inside their backing array; the caller has already clipped to it.
func (s *Stream) grow(size int64) {
	old := len(s.buf)
	if size <= int64(cap(s.buf)) {
		s.buf = s.buf[:size]
		clear(s.buf[old:])
		return
	}
	nb := make([]byte, size, min(max(size, 2*int64(cap(s.buf))), MaxContentSize))
	copy(nb, s.buf)
	s.buf = nb
}

// Seek implements io.Seeker. Seeking past the end is allowed.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.check("seek"); err != nil {
		return 0, err
	}
	pos, err := streamkit.ResolveSeek("seek", "", s.pos, int64(len(s.buf)), offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

// Size returns the length of the content
func (s *Stream) Size() (int64, error) {
	if err := s.check("size"); err != nil {
		return 0, err
	}
	return int64(len(s.buf)), nil
}

// Truncate resizes the content. Growing zero-fills. The position is not
// moved.
func (s *Stream) Truncate(size int64) error {
	if err := s.checkWrite("truncate"); err != nil {
		return err
	}
	if size < 0 {
		return streamkit.NewError("truncate", "", streamkit.ErrInvalidRange, nil)
	}
	if size > s.ceiling() {
		return streamkit.NewError("truncate", "", streamkit.ErrUnsupportedExtension, nil)
	}
	if size <= int64(len(s.buf)) {
		s.buf = s.buf[:size]
	} else {
		s.grow(size)
	}
	s.changed()
	return nil
}

// Flush is a no-op; memory streams have nothing to push.
func (s *Stream) Flush() error {
	return s.checkWrite("flush")
}

// Close releases the buffer. Close is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.buf = nil
	if s.watch != nil {
		s.watch.SignalChange()
		s.watch = nil
	}
	return nil
}

// Bytes returns the current content. The slice aliases the stream's
// storage and is valid until the next write, truncate or close.
func (s *Stream) Bytes() []byte {
	return s.buf
}

// String returns the content as a string
func (s *Stream) String() string {
	return string(s.buf)
}

// Reset empties the stream and rewinds it, keeping the allocated capacity
func (s *Stream) Reset() {
	if s.readOnly || s.closed {
		return
	}
	s.buf = s.buf[:0]
	s.pos = 0
	s.changed()
}

// Watch returns a token that fires on the next write, truncate or close
func (s *Stream) Watch() streamkit.ChangeToken {
	if s.closed {
		return streamkit.CancelledChangeToken{}
	}
	if s.readOnly {
		return streamkit.NeverChangeToken{}
	}
	if s.watch == nil {
		s.watch = streamkit.NewCallbackChangeToken()
	}
	return s.watch
}

func (s *Stream) changed() {
	if s.watch != nil {
		s.watch.SignalChange()
		s.watch = nil
	}
}
