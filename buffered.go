package streamkit

import (
	"bufio"
	"io"
)

// DefaultBufferSize is used by the buffered adapters when size <= 0.
const DefaultBufferSize = 4096

// ============================================================================
// BufferedReader
// ============================================================================

// BufferedReader adds read-ahead to any Reader. When the source can seek,
// the reader can seek too: short forward seeks are served from the buffer,
// everything else drops it and repositions the source.
//
// Closing a BufferedReader does not close the source. If the source is
// seekable, Close moves it back to the logical position, undoing the
// read-ahead.
type BufferedReader struct {
	src    Reader
	br     *bufio.Reader
	closed bool
}

var (
	_ io.ReadSeekCloser  = (*BufferedReader)(nil)
	_ io.ByteScanner     = (*BufferedReader)(nil)
	_ CapabilityReporter = (*BufferedReader)(nil)
)

// NewBufferedReader wraps src with a read buffer of the given size.
func NewBufferedReader(src Reader, size int) *BufferedReader {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferedReader{src: src, br: bufio.NewReaderSize(src, size)}
}

// Capabilities implements CapabilityReporter.
func (b *BufferedReader) Capabilities() Capability {
	return CapRead | CapClose | Capabilities(b.src)&(CapSeek|CapSize)
}

func (b *BufferedReader) Read(p []byte) (int, error) {
	if b.closed {
		return 0, NewError("read", "", ErrClosed, nil)
	}
	return b.br.Read(p)
}

func (b *BufferedReader) ReadByte() (byte, error) {
	if b.closed {
		return 0, NewError("read", "", ErrClosed, nil)
	}
	return b.br.ReadByte()
}

func (b *BufferedReader) UnreadByte() error {
	if b.closed {
		return NewError("read", "", ErrClosed, nil)
	}
	return b.br.UnreadByte()
}

// Peek returns the next n bytes without advancing. The slice is only valid
// until the next read.
func (b *BufferedReader) Peek(n int) ([]byte, error) {
	if b.closed {
		return nil, NewError("peek", "", ErrClosed, nil)
	}
	return b.br.Peek(n)
}

// Buffered returns the number of bytes that can be read without touching
// the source.
func (b *BufferedReader) Buffered() int {
	return b.br.Buffered()
}

// logical returns the position the caller observes: the source position
// minus what is still buffered.
func (b *BufferedReader) logical(sk Seeker) (int64, error) {
	pos, err := Position(sk)
	if err != nil {
		return 0, err
	}
	return pos - int64(b.br.Buffered()), nil
}

func (b *BufferedReader) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, NewError("seek", "", ErrClosed, nil)
	}
	sk, err := AsSeeker(b.src)
	if err != nil {
		return 0, err
	}
	cur, err := b.logical(sk)
	if err != nil {
		return 0, err
	}

	if whence == io.SeekEnd {
		pos, err := sk.Seek(offset, io.SeekEnd)
		if err != nil {
			return cur, err
		}
		b.br.Reset(b.src)
		return pos, nil
	}

	target, err := ResolveSeek("seek", "", cur, 0, offset, whence)
	if err != nil {
		return cur, err
	}
	if skip := target - cur; skip >= 0 && skip <= int64(b.br.Buffered()) {
		if _, err := b.br.Discard(int(skip)); err != nil {
			return cur, err
		}
		return target, nil
	}
	pos, err := sk.Seek(target, io.SeekStart)
	if err != nil {
		return cur, err
	}
	b.br.Reset(b.src)
	return pos, nil
}

// Size forwards to the source.
func (b *BufferedReader) Size() (int64, error) {
	if b.closed {
		return 0, NewError("size", "", ErrClosed, nil)
	}
	sz, err := AsSizer(b.src)
	if err != nil {
		return 0, err
	}
	return sz.Size()
}

// Close releases the buffer. The source stays open.
func (b *BufferedReader) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.br.Buffered() == 0 {
		return nil
	}
	sk, err := AsSeeker(b.src)
	if err != nil {
		return nil
	}
	_, err = sk.Seek(-int64(b.br.Buffered()), io.SeekCurrent)
	return err
}

// ============================================================================
// BufferedWriter
// ============================================================================

// BufferedWriter collects small writes and hands them to the destination in
// larger chunks. Close flushes but never closes the destination.
type BufferedWriter struct {
	dst    Writer
	bw     *bufio.Writer
	closed bool
}

var (
	_ io.WriteCloser     = (*BufferedWriter)(nil)
	_ io.ByteWriter      = (*BufferedWriter)(nil)
	_ io.StringWriter    = (*BufferedWriter)(nil)
	_ Flusher            = (*BufferedWriter)(nil)
	_ CapabilityReporter = (*BufferedWriter)(nil)
)

// NewBufferedWriter wraps dst with a write buffer of the given size.
func NewBufferedWriter(dst Writer, size int) *BufferedWriter {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferedWriter{dst: dst, bw: bufio.NewWriterSize(dst, size)}
}

// Capabilities implements CapabilityReporter.
func (b *BufferedWriter) Capabilities() Capability {
	return CapWrite | CapFlush | CapClose | Capabilities(b.dst)&(CapSeek|CapSize)
}

func (b *BufferedWriter) Write(p []byte) (int, error) {
	if b.closed {
		return 0, NewError("write", "", ErrClosed, nil)
	}
	return b.bw.Write(p)
}

func (b *BufferedWriter) WriteByte(c byte) error {
	if b.closed {
		return NewError("write", "", ErrClosed, nil)
	}
	return b.bw.WriteByte(c)
}

func (b *BufferedWriter) WriteString(s string) (int, error) {
	if b.closed {
		return 0, NewError("write", "", ErrClosed, nil)
	}
	return b.bw.WriteString(s)
}

// Flush writes any buffered data to the destination.
func (b *BufferedWriter) Flush() error {
	if b.closed {
		return NewError("flush", "", ErrClosed, nil)
	}
	return b.bw.Flush()
}

// Buffered returns the number of bytes waiting to be flushed
func (b *BufferedWriter) Buffered() int { return b.bw.Buffered() }

// Available returns how many bytes fit before the next flush
func (b *BufferedWriter) Available() int { return b.bw.Available() }

// Seek flushes pending data and then seeks the destination.
func (b *BufferedWriter) Seek(offset int64, whence int) (int64, error) {
	if b.closed {
		return 0, NewError("seek", "", ErrClosed, nil)
	}
	sk, err := AsSeeker(b.dst)
	if err != nil {
		return 0, err
	}
	if err := b.bw.Flush(); err != nil {
		return 0, err
	}
	return sk.Seek(offset, whence)
}

// Size flushes pending data and reports the destination size.
func (b *BufferedWriter) Size() (int64, error) {
	if b.closed {
		return 0, NewError("size", "", ErrClosed, nil)
	}
	sz, err := AsSizer(b.dst)
	if err != nil {
		return 0, err
	}
	if err := b.bw.Flush(); err != nil {
		return 0, err
	}
	return sz.Size()
}

// Close flushes pending data. The destination stays open.
func (b *BufferedWriter) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.bw.Flush()
}
