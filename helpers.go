package streamkit

import (
	"errors"
	"io"

	"github.com/valyala/bytebufferpool"
)

// maxConsecutiveEmptyReads bounds how many (0, nil) reads a helper tolerates
// before giving up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// readAllMinSize is the initial capacity ReadAll uses without a size hint.
// Hints at or above maxReadAllHint are ignored so an advisory size cannot
// force a huge up-front allocation.
const (
	readAllMinSize = 512
	maxReadAllHint = 1 << 30
)

var scratchPool bytebufferpool.Pool

func acquireScratch(n int) (*bytebufferpool.ByteBuffer, []byte) {
	bb := scratchPool.Get()
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
	}
	// Put sizes the pool by len(bb.B)
	bb.B = bb.B[:n]
	return bb, bb.B
}

// CopyStream reads chunks from src and writes them to dst until src reports
// end-of-stream, returning the number of bytes written to dst.
//
// The first error from either side is returned as is. Neither stream is
// rewound on failure; both stay wherever the last successful call left them.
// Short writes are retried until the chunk is fully written.
func CopyStream(dst Writer, src Reader, opts ...CopyOption) (int64, error) {
	o := processCopyOptions(opts...)

	bb, buf := acquireScratch(o.BufferSize)
	defer scratchPool.Put(bb)

	total := int64(-1)
	if o.Progress != nil {
		total = remaining(src)
		if o.Limit > 0 && (total < 0 || total > o.Limit) {
			total = o.Limit
		}
	}

	var written int64
	empty := 0
	for {
		chunk := buf
		if o.Limit > 0 {
			left := o.Limit - written
			if left <= 0 {
				return written, nil
			}
			if left < int64(len(chunk)) {
				chunk = chunk[:left]
			}
		}

		nr, rerr := src.Read(chunk)
		if nr > 0 {
			empty = 0
			nw, werr := WriteAll(dst, chunk[:nr])
			written += int64(nw)
			if o.Progress != nil {
				o.Progress(written, total)
			}
			if werr != nil {
				return written, werr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
		if nr == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return written, io.ErrNoProgress
			}
		}
	}
}

// ReadAll reads src until end-of-stream and returns the bytes read.
//
// When src can report its size and position the remaining length is used to
// size the buffer up front. The hint is never trusted as exact: the loop
// keeps reading until the stream itself reports its end.
func ReadAll(src Reader) ([]byte, error) {
	size := int64(readAllMinSize)
	if hint := remaining(src); hint >= 0 && hint < maxReadAllHint {
		// one spare byte lets the final EOF read land without a regrow
		size = hint + 1
	}
	b := make([]byte, 0, size)

	empty := 0
	for {
		if len(b) == cap(b) {
			b = append(b, 0)[:len(b)]
		}
		n, err := src.Read(b[len(b):cap(b)])
		b = b[:len(b)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b, nil
			}
			return b, err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return b, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
}

// WriteAll writes all of p to dst, looping over short writes. A write that
// makes no progress and reports no error fails with io.ErrShortWrite.
func WriteAll(dst Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := dst.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Skip advances r by up to n bytes and returns how far it moved. Seekable
// streams are moved with Seek, clamped to the stream size when known; other
// streams are read and discarded.
func Skip(r Reader, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	if sk, err := AsSeeker(r); err == nil {
		pos, err := Position(sk)
		if err != nil {
			return 0, err
		}
		if sz, err := AsSizer(r); err == nil {
			size, err := sz.Size()
			if err != nil {
				return 0, err
			}
			n = min(n, max(size-pos, 0))
		}
		if _, err := sk.Seek(n, io.SeekCurrent); err != nil {
			return 0, err
		}
		return n, nil
	}
	return CopyStream(io.Discard, r, WithLimit(n))
}

// remaining returns the number of bytes between the current position and
// the end of s, or -1 when s cannot report both.
func remaining(s Stream) int64 {
	if !Supports(s, CapSeek|CapSize) {
		return -1
	}
	size, err := s.(Sizer).Size()
	if err != nil {
		return -1
	}
	pos, err := Position(s.(Seeker))
	if err != nil {
		return -1
	}
	return max(size-pos, 0)
}
