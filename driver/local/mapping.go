package local

import (
	"math"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/internal/logger"
)

// mapping is the memory view of [off, off+len(data)) of a file. region is
// the page-aligned block returned by the OS; data is the requested range
// inside it. A zero-length mapping has no region.
type mapping struct {
	region   []byte
	data     []byte
	off      int64
	toEOF    bool
	writable bool
	stale    bool
}

func (m *mapping) end() int64 { return m.off + int64(len(m.data)) }

func (m *mapping) contains(off int64) bool {
	return off >= m.off && off < m.end()
}

// release writes dirty pages back and unmaps. A stale mapping is unmapped
// without syncing.
func (m *mapping) release(path string) error {
	if m.region == nil {
		return nil
	}
	var err error
	if m.writable && !m.stale {
		err = msyncRegion(m.region)
	}
	if uerr := munmapRegion(m.region); uerr != nil && err == nil {
		err = uerr
	}
	logger.Debug("mapping released", logger.Fields{
		logger.FieldPath:   path,
		logger.FieldOffset: m.off,
		logger.FieldLength: len(m.data),
	})
	m.region, m.data = nil, nil
	return err
}

// EnableMapping maps [offset, offset+length) of the file. A length of 0 maps
// everything from offset to the current end of the file, which may be
// nothing at all. Reads and writes that touch the range are then served
// from memory; the part of a call outside it still goes to the file.
//
// Only one mapping can be active at a time. In Append mode the mapping is
// read-only and writes keep going to the end of the file. Mapping is not
// available in WriteOnly mode or in builds with the streamkit_nommap tag.
func (s *Stream) EnableMapping(offset, length int64) error {
	if err := s.check("map", mappingSupported && s.mode.canRead()); err != nil {
		return err
	}
	if s.h.m != nil {
		return streamkit.NewError("map", s.path, streamkit.ErrMappingAlreadyActive, nil)
	}
	if offset < 0 || length < 0 {
		return streamkit.NewError("map", s.path, streamkit.ErrInvalidRange, nil)
	}

	info, err := s.h.f.Stat()
	if err != nil {
		return s.ioError("map", err)
	}
	size := info.Size()
	s.size, s.sizeValid = size, true

	toEOF := length == 0
	if toEOF {
		if offset > size {
			return streamkit.NewError("map", s.path, streamkit.ErrInvalidRange, nil)
		}
		length = size - offset
	} else if end := offset + length; end < offset || end > size {
		return streamkit.NewError("map", s.path, streamkit.ErrInvalidRange, nil)
	}

	return s.mapRange(offset, length, toEOF)
}

func (s *Stream) mapRange(offset, length int64, toEOF bool) error {
	m := &mapping{
		off:      offset,
		toEOF:    toEOF,
		writable: s.mode.canWrite() && s.mode != Append,
	}

	if length > 0 {
		page := pageSize()
		aligned := offset &^ (page - 1)
		delta := offset - aligned
		if delta+length > math.MaxInt {
			return streamkit.NewError("map", s.path, streamkit.ErrInvalidRange, nil)
		}
		region, err := mmapRegion(s.h.f, aligned, int(delta+length), m.writable)
		if err != nil {
			return s.ioError("map", err)
		}
		m.region = region
		m.data = region[delta : delta+length : delta+length]
	}

	s.h.m = m
	logger.Debug("mapping enabled", logger.Fields{
		logger.FieldPath:   s.path,
		logger.FieldOffset: offset,
		logger.FieldLength: length,
	})
	return nil
}

// DisableMapping syncs and releases the active mapping. It does nothing when
// no mapping is active.
func (s *Stream) DisableMapping() error {
	if err := s.check("unmap", true); err != nil {
		return err
	}
	m := s.h.m
	if m == nil {
		return nil
	}
	s.h.m = nil
	if err := m.release(s.path); err != nil {
		return s.ioError("unmap", err)
	}
	return nil
}

// Mapping reports the range of the active mapping.
func (s *Stream) Mapping() (offset, length int64, active bool) {
	m := s.h.m
	if s.closed || m == nil {
		return 0, 0, false
	}
	return m.off, int64(len(m.data)), true
}

// MappedBytes returns the mapped range without copying, or nil when no
// mapping is active. The slice is only valid until the mapping is released
// or remapped. Writing to it changes the file unless the stream is
// read-only, in which case writing faults.
func (s *Stream) MappedBytes() ([]byte, error) {
	if err := s.check("mapped", true); err != nil {
		return nil, err
	}
	if s.h.m == nil {
		return nil, nil
	}
	if err := s.checkMapping("mapped"); err != nil {
		return nil, err
	}
	return s.h.m.data, nil
}

// checkMapping fails with ErrStaleMapping once the file size no longer
// matches what this stream expects. When the cached size is unknown, only a
// file that no longer covers the mapped range counts as stale. Staleness
// sticks until DisableMapping.
func (s *Stream) checkMapping(op string) error {
	m := s.h.m
	if m.stale {
		return streamkit.NewError(op, s.path, streamkit.ErrStaleMapping, nil)
	}
	info, err := s.h.f.Stat()
	if err != nil {
		return s.ioError(op, err)
	}
	size := info.Size()
	if s.resizedUnder(m, size) {
		s.markStale(size)
		return streamkit.NewError(op, s.path, streamkit.ErrStaleMapping, nil)
	}
	s.size, s.sizeValid = size, true
	return nil
}

// resizedUnder reports whether a file now size bytes long was resized by
// someone else while m was mapped.
func (s *Stream) resizedUnder(m *mapping, size int64) bool {
	if !s.sizeValid {
		return size < m.end()
	}
	return size != s.size
}

func (s *Stream) markStale(actual int64) {
	s.h.m.stale = true
	logger.Debug("mapping stale", logger.Fields{
		logger.FieldPath: s.path,
		logger.FieldSize: actual,
	})
}

// remap resizes the file under ResizeRemap: sync and unmap, truncate, then
// map the same offset again clipped to the new size. A whole-file mapping
// follows the new end of the file.
func (s *Stream) remap(size int64) error {
	m := s.h.m
	off, length, toEOF := m.off, int64(len(m.data)), m.toEOF

	s.h.m = nil
	if err := m.release(s.path); err != nil {
		return s.ioError("truncate", err)
	}
	if err := s.h.f.Truncate(size); err != nil {
		s.sizeValid = false
		return s.ioError("truncate", err)
	}
	s.size, s.sizeValid = size, true

	off = min(off, size)
	if toEOF {
		length = size - off
	} else {
		length = min(length, size-off)
	}

	logger.Debug("mapping remapped", logger.Fields{
		logger.FieldPath:   s.path,
		logger.FieldPolicy: s.opts.ResizePolicy.String(),
		logger.FieldSize:   size,
	})
	return s.mapRange(off, length, toEOF)
}
