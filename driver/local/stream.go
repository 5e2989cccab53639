package local

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/internal/logger"
)

// Mode selects how Open opens a file.
type Mode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly Mode = iota
	// WriteOnly opens an existing file for writing. Mapping is not available.
	WriteOnly
	// ReadWrite opens an existing file for reading and writing.
	ReadWrite
	// CreateOrTruncate creates the file or empties an existing one.
	CreateOrTruncate
	// CreateNew creates the file and fails if it already exists.
	CreateNew
	// Append creates the file if needed; every write lands at the end.
	Append
)

func (m Mode) flag() (int, bool) {
	switch m {
	case ReadOnly:
		return os.O_RDONLY, true
	case WriteOnly:
		return os.O_WRONLY, true
	case ReadWrite:
		return os.O_RDWR, true
	case CreateOrTruncate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case CreateNew:
		return os.O_RDWR | os.O_CREATE | os.O_EXCL, true
	case Append:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true
	default:
		return 0, false
	}
}

func (m Mode) canRead() bool  { return m != WriteOnly }
func (m Mode) canWrite() bool { return m != ReadOnly }

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	case CreateOrTruncate:
		return "create-or-truncate"
	case CreateNew:
		return "create-new"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// handle owns the OS resources of a Stream. It lives apart from the Stream
// so a leaked Stream can be cleaned up without being kept reachable.
type handle struct {
	path string
	f    *os.File
	m    *mapping
}

// release drops the mapping, then closes the file.
func (h *handle) release() error {
	var err error
	if h.m != nil {
		err = h.m.release(h.path)
		h.m = nil
	}
	if cerr := h.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func releaseLeaked(h *handle) {
	logger.Warn("file stream collected without Close", logger.Fields{logger.FieldPath: h.path})
	if err := h.release(); err != nil {
		logger.Warn("releasing leaked file stream failed", logger.Fields{
			logger.FieldPath:  h.path,
			logger.FieldError: err,
		})
	}
}

// Stream is a file-backed stream.
//
// Reads and writes are positional (pread/pwrite) at a position the stream
// keeps itself, so Seek never makes a system call and several Streams on the
// same file do not disturb each other. The file size is cached and kept up
// to date by this stream's own writes and truncates; use Stat to pick up
// changes made by others.
//
// A Stream may map part of its file into memory, see EnableMapping.
//
// Stream is not safe for concurrent use.
type Stream struct {
	h         *handle
	path      string
	mode      Mode
	opts      *Options
	pos       int64
	size      int64
	sizeValid bool
	closed    bool
	cleanup   runtime.Cleanup
}

var (
	_ streamkit.ReadWriteSeekSizer = (*Stream)(nil)
	_ streamkit.Truncater          = (*Stream)(nil)
	_ streamkit.Flusher            = (*Stream)(nil)
	_ streamkit.CapabilityReporter = (*Stream)(nil)
	_ io.ReaderAt                  = (*Stream)(nil)
	_ io.WriterAt                  = (*Stream)(nil)
	_ io.Closer                    = (*Stream)(nil)
)

// Open opens path in the given mode. Failures wrap ErrOpenFailed together
// with the OS cause, so errors.Is(err, fs.ErrNotExist) keeps working.
func Open(path string, mode Mode, options ...Option) (*Stream, error) {
	opts := processOptions(options...)
	if opts.err != nil {
		return nil, streamkit.NewError("open", path, streamkit.ErrOpenFailed, opts.err)
	}

	flag, ok := mode.flag()
	if !ok {
		return nil, streamkit.NewError("open", path, streamkit.ErrOpenFailed, fmt.Errorf("unknown mode %v", mode))
	}

	f, err := os.OpenFile(path, flag, opts.Perm)
	if err != nil {
		return nil, streamkit.NewError("open", path, streamkit.ErrOpenFailed, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, streamkit.NewError("open", path, streamkit.ErrOpenFailed, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, streamkit.NewError("open", path, streamkit.ErrOpenFailed, syscall.EISDIR)
	}

	s := &Stream{
		h:         &handle{path: path, f: f},
		path:      path,
		mode:      mode,
		opts:      opts,
		size:      info.Size(),
		sizeValid: true,
	}
	s.cleanup = runtime.AddCleanup(s, releaseLeaked, s.h)

	if opts.shouldMap(path) {
		if err := s.EnableMapping(0, 0); err != nil {
			if opts.Mapping {
				s.Close()
				return nil, err
			}
			logger.Debug("automatic mapping skipped", logger.Fields{
				logger.FieldPath:  path,
				logger.FieldError: err,
			})
		}
	}

	return s, nil
}

// Name returns the path the stream was opened with
func (s *Stream) Name() string { return s.path }

// Mode returns the mode the stream was opened with
func (s *Stream) Mode() Mode { return s.mode }

// Fd returns the OS file descriptor. It stays owned by the stream.
func (s *Stream) Fd() uintptr { return s.h.f.Fd() }

// Capabilities implements streamkit.CapabilityReporter. The set depends on
// the mode the file was opened in.
func (s *Stream) Capabilities() streamkit.Capability {
	c := streamkit.CapSeek | streamkit.CapSize | streamkit.CapClose
	if s.mode.canRead() {
		c |= streamkit.CapRead
	}
	if s.mode.canWrite() {
		c |= streamkit.CapWrite | streamkit.CapTruncate | streamkit.CapFlush
	}
	return c
}

func (s *Stream) check(op string, allowed bool) error {
	if s.closed {
		return streamkit.NewError(op, s.path, streamkit.ErrClosed, nil)
	}
	if !allowed {
		return streamkit.NewError(op, s.path, streamkit.ErrUnsupportedOperation, nil)
	}
	return nil
}

func (s *Stream) ioError(op string, err error) error {
	return streamkit.NewError(op, s.path, streamkit.ErrIOFailure, err)
}

// Read implements io.Reader at the stream position.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.check("read", s.mode.canRead()); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.readAt("read", p, s.pos)
	s.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt implements io.ReaderAt. The stream position is not moved.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if err := s.check("readat", s.mode.canRead()); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, streamkit.NewError("readat", s.path, streamkit.ErrInvalidRange, nil)
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.readAt("readat", p, off)
}

// readAt serves the mapped part of [off, off+len(p)) from memory and the
// rest with pread. It follows io.ReaderAt: a short count comes with io.EOF.
func (s *Stream) readAt(op string, p []byte, off int64) (int, error) {
	n := 0
	if m := s.h.m; m != nil && m.contains(off) {
		if err := s.checkMapping(op); err != nil {
			return 0, err
		}
		n = copy(p, m.data[off-m.off:])
		if n == len(p) {
			return n, nil
		}
	}
	k, err := s.h.f.ReadAt(p[n:], off+int64(n))
	n += k
	if err != nil && err != io.EOF {
		return n, s.ioError(op, err)
	}
	return n, err
}

// Write implements io.Writer. Writing past the end extends the file; the gap
// reads back as zeros. In Append mode the data always lands at the end of
// the file and the position moves there.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.check("write", s.mode.canWrite()); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.mode == Append {
		return s.appendWrite(p)
	}
	n, err := s.writeAt("write", p, s.pos)
	s.pos += int64(n)
	return n, err
}

// WriteAt implements io.WriterAt. The stream position is not moved. It is
// not available in Append mode.
func (s *Stream) WriteAt(p []byte, off int64) (int, error) {
	if err := s.check("writeat", s.mode.canWrite() && s.mode != Append); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, streamkit.NewError("writeat", s.path, streamkit.ErrInvalidRange, nil)
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.writeAt("writeat", p, off)
}

func (s *Stream) writeAt(op string, p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end < off {
		return 0, streamkit.NewError(op, s.path, streamkit.ErrUnsupportedExtension, nil)
	}
	n := 0
	if m := s.h.m; m != nil && m.writable && m.contains(off) {
		if err := s.checkMapping(op); err != nil {
			return 0, err
		}
		n = copy(m.data[off-m.off:], p)
		if n == len(p) {
			return n, nil
		}
	}
	k, err := s.h.f.WriteAt(p[n:], off+int64(n))
	n += k
	if end := off + int64(n); s.sizeValid && end > s.size {
		s.size = end
	}
	if err != nil {
		return n, s.ioError(op, err)
	}
	return n, nil
}

func (s *Stream) appendWrite(p []byte) (int, error) {
	n, err := s.h.f.Write(p)
	// the kernel offset sits at the end of the file after an O_APPEND write
	if end, serr := s.h.f.Seek(0, io.SeekCurrent); serr == nil {
		s.pos, s.size, s.sizeValid = end, end, true
	} else {
		s.sizeValid = false
	}
	if err != nil {
		return n, s.ioError("write", err)
	}
	return n, nil
}

// Seek implements io.Seeker. It only updates the stream position. Seeking
// past the end is allowed.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.check("seek", true); err != nil {
		return 0, err
	}
	var size int64
	if whence == io.SeekEnd {
		var err error
		if size, err = s.Size(); err != nil {
			return s.pos, err
		}
	}
	pos, err := streamkit.ResolveSeek("seek", s.path, s.pos, size, offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

// Size returns the file length as last observed by this stream.
func (s *Stream) Size() (int64, error) {
	if err := s.check("size", true); err != nil {
		return 0, err
	}
	if !s.sizeValid {
		info, err := s.h.f.Stat()
		if err != nil {
			return 0, s.ioError("size", err)
		}
		s.size, s.sizeValid = info.Size(), true
	}
	return s.size, nil
}

// Stat queries the file and refreshes the cached size. If another writer
// resized the file under an active mapping, the mapping becomes stale.
func (s *Stream) Stat() (os.FileInfo, error) {
	if err := s.check("stat", true); err != nil {
		return nil, err
	}
	info, err := s.h.f.Stat()
	if err != nil {
		return nil, s.ioError("stat", err)
	}
	if m := s.h.m; m != nil && !m.stale && s.resizedUnder(m, info.Size()) {
		s.markStale(info.Size())
	}
	s.size, s.sizeValid = info.Size(), true
	return info, nil
}

// Truncate resizes the file. The position is not moved. With an active
// mapping the resize policy decides whether a shrink into the mapped range
// fails with ErrMappingActive or remaps.
func (s *Stream) Truncate(size int64) error {
	if err := s.check("truncate", s.mode.canWrite()); err != nil {
		return err
	}
	if size < 0 {
		return streamkit.NewError("truncate", s.path, streamkit.ErrInvalidRange, nil)
	}

	if m := s.h.m; m != nil {
		remap := s.opts.ResizePolicy == ResizeRemap
		if size < m.end() && !remap {
			return streamkit.NewError("truncate", s.path, streamkit.ErrMappingActive, nil)
		}
		if remap && (size < m.end() || m.toEOF) {
			return s.remap(size)
		}
	}

	if err := s.h.f.Truncate(size); err != nil {
		s.sizeValid = false
		return s.ioError("truncate", err)
	}
	s.size, s.sizeValid = size, true
	return nil
}

// Flush syncs mapped pages and the file to stable storage.
func (s *Stream) Flush() error {
	if err := s.check("flush", s.mode.canWrite()); err != nil {
		return err
	}
	if m := s.h.m; m != nil && m.writable && !m.stale && m.region != nil {
		if err := msyncRegion(m.region); err != nil {
			return s.ioError("flush", err)
		}
	}
	if err := s.h.f.Sync(); err != nil {
		return s.ioError("flush", err)
	}
	return nil
}

// Close releases the mapping, if any, and then the file. Close is
// idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	if err := s.h.release(); err != nil {
		return s.ioError("close", err)
	}
	return nil
}
