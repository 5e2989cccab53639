//go:build unix && !streamkit_nommap

package local

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobeaver/streamkit"
)

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestMappingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.bin")
	s := mustOpen(t, path, CreateOrTruncate)

	if _, err := streamkit.WriteAll(s, sequence(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.EnableMapping(0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	if err != nil || n != 5 || !bytes.Equal(buf, []byte{0, 1, 2, 3, 4}) {
		t.Fatalf("expected [0 1 2 3 4], got %v n=%d err=%v", buf[:n], n, err)
	}

	if err := s.DisableMapping(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size, err := s.Size(); err != nil || size != 10 {
		t.Errorf("expected size 10, got %d err=%v", size, err)
	}
}

func TestEnableMapping(t *testing.T) {
	t.Run("second mapping fails", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(16)), ReadOnly)
		if err := s.EnableMapping(0, 8); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.EnableMapping(0, 8); !errors.Is(err, streamkit.ErrMappingAlreadyActive) {
			t.Errorf("expected ErrMappingAlreadyActive, got %v", err)
		}
	})

	t.Run("range beyond end of file", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(16)), ReadOnly)
		if err := s.EnableMapping(8, 9); !errors.Is(err, streamkit.ErrInvalidRange) {
			t.Errorf("expected ErrInvalidRange, got %v", err)
		}
		if err := s.EnableMapping(17, 0); !errors.Is(err, streamkit.ErrInvalidRange) {
			t.Errorf("expected ErrInvalidRange, got %v", err)
		}
		if err := s.EnableMapping(-1, 2); !errors.Is(err, streamkit.ErrInvalidRange) {
			t.Errorf("expected ErrInvalidRange, got %v", err)
		}
		if _, _, active := s.Mapping(); active {
			t.Error("failed attempts must not leave a mapping behind")
		}
	})

	t.Run("empty file maps to nothing", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, nil), ReadOnly)
		if err := s.EnableMapping(0, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		off, length, active := s.Mapping()
		if !active || off != 0 || length != 0 {
			t.Errorf("expected active empty mapping, got off=%d len=%d active=%v", off, length, active)
		}
		if n, err := s.Read(make([]byte, 4)); n != 0 || err != io.EOF {
			t.Errorf("expected (0, EOF), got (%d, %v)", n, err)
		}
	})

	t.Run("write-only streams cannot map", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(4)), WriteOnly)
		if err := s.EnableMapping(0, 0); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("expected ErrUnsupportedOperation, got %v", err)
		}
	})

	t.Run("unaligned offset", func(t *testing.T) {
		page := int(pageSize())
		data := sequence(3*page + 17)
		s := mustOpen(t, writeFile(t, data), ReadOnly)

		off := int64(page + 3)
		if err := s.EnableMapping(off, 100); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mapped, err := s.MappedBytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(mapped, data[off:off+100]) {
			t.Error("mapped bytes differ from file contents")
		}

		buf := make([]byte, 100)
		if _, err := s.ReadAt(buf, off); err != nil || !bytes.Equal(buf, data[off:off+100]) {
			t.Errorf("mapped ReadAt mismatch, err=%v", err)
		}
	})

	t.Run("open option maps the file", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(32)), ReadOnly, WithMapping())
		if _, length, active := s.Mapping(); !active || length != 32 {
			t.Errorf("expected whole-file mapping, got len=%d active=%v", length, active)
		}
	})

	t.Run("automatic mapping is skipped when unsupported", func(t *testing.T) {
		cfg := &streamkit.Config{MmapEnabled: true}
		s := mustOpen(t, writeFile(t, sequence(4)), WriteOnly, WithConfig(cfg))
		if _, _, active := s.Mapping(); active {
			t.Error("write-only stream should open unmapped")
		}
	})

	t.Run("explicit mapping fails open when unsupported", func(t *testing.T) {
		_, err := Open(writeFile(t, sequence(4)), WriteOnly, WithMapping())
		if !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("expected ErrUnsupportedOperation, got %v", err)
		}
	})
}

func TestMappedIOCrossesBoundary(t *testing.T) {
	data := sequence(64)
	path := writeFile(t, data)
	s := mustOpen(t, path, ReadWrite)

	if err := s.EnableMapping(8, 16); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("read runs past the mapping", func(t *testing.T) {
		if _, err := s.Seek(10, io.SeekStart); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := streamkit.ReadAll(s)
		if err != nil || !bytes.Equal(got, data[10:]) {
			t.Errorf("expected bytes 10..64, got %d bytes err=%v", len(got), err)
		}
	})

	t.Run("write runs past the mapping", func(t *testing.T) {
		patch := bytes.Repeat([]byte{0xEE}, 20)
		if _, err := s.WriteAt(patch, 20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.DisableMapping(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := os.ReadFile(path)
		want := append(append(append([]byte{}, data[:20]...), patch...), data[40:]...)
		if !bytes.Equal(got, want) {
			t.Error("file contents differ after a write across the mapping end")
		}
	})
}

// TestMappedMatchesUnmapped replays the same operations on a mapped and an
// unmapped stream and expects identical results.
func TestMappedMatchesUnmapped(t *testing.T) {
	page := int(pageSize())
	data := sequence(2*page + 100)

	plainPath := writeFile(t, data)
	mappedPath := writeFile(t, data)
	plain := mustOpen(t, plainPath, ReadWrite)
	mapped := mustOpen(t, mappedPath, ReadWrite, WithMapping())

	rng := rand.New(rand.NewPCG(1, 2))
	limit := int64(len(data) + 64)

	for i := 0; i < 500; i++ {
		switch rng.IntN(3) {
		case 0:
			off := rng.Int64N(limit)
			p1, err1 := plain.Seek(off, io.SeekStart)
			p2, err2 := mapped.Seek(off, io.SeekStart)
			if p1 != p2 || (err1 == nil) != (err2 == nil) {
				t.Fatalf("step %d: seek differs: %d/%v vs %d/%v", i, p1, err1, p2, err2)
			}
		case 1:
			n := rng.IntN(300)
			b1, b2 := make([]byte, n), make([]byte, n)
			n1, err1 := plain.Read(b1)
			n2, err2 := mapped.Read(b2)
			if n1 != n2 || err1 != err2 || !bytes.Equal(b1[:n1], b2[:n2]) {
				t.Fatalf("step %d: read differs: %d/%v vs %d/%v", i, n1, err1, n2, err2)
			}
		case 2:
			p := make([]byte, rng.IntN(200))
			for j := range p {
				p[j] = byte(rng.Uint32())
			}
			n1, err1 := plain.Write(p)
			n2, err2 := mapped.Write(p)
			if n1 != n2 || (err1 == nil) != (err2 == nil) {
				t.Fatalf("step %d: write differs: %d/%v vs %d/%v", i, n1, err1, n2, err2)
			}
		}
	}

	s1, _ := plain.Size()
	s2, _ := mapped.Size()
	if s1 != s2 {
		t.Fatalf("sizes differ: %d vs %d", s1, s2)
	}
	if err := mapped.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := plain.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := os.ReadFile(plainPath)
	b, _ := os.ReadFile(mappedPath)
	if !bytes.Equal(a, b) {
		t.Error("file contents differ between mapped and unmapped streams")
	}
}

func TestResizePolicy(t *testing.T) {
	t.Run("reject blocks shrinking into the mapping", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(32)), ReadWrite)
		if err := s.EnableMapping(0, 16); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Truncate(8); !errors.Is(err, streamkit.ErrMappingActive) {
			t.Errorf("expected ErrMappingActive, got %v", err)
		}
		if err := s.Truncate(16); err != nil {
			t.Errorf("shrinking to the mapping end should work, got %v", err)
		}
		if err := s.Truncate(64); err != nil {
			t.Errorf("growing should work, got %v", err)
		}
		if _, err := s.MappedBytes(); err != nil {
			t.Errorf("own resizes must not make the mapping stale, got %v", err)
		}
	})

	t.Run("remap follows the new size", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(32)), ReadWrite, WithResizePolicy(ResizeRemap))
		if err := s.EnableMapping(0, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Truncate(8); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if off, length, active := s.Mapping(); !active || off != 0 || length != 8 {
			t.Errorf("expected mapping [0, 8), got off=%d len=%d active=%v", off, length, active)
		}
		if err := s.Truncate(20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, length, _ := s.Mapping(); length != 20 {
			t.Errorf("whole-file mapping should grow with the file, got len=%d", length)
		}
		mapped, err := s.MappedBytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := append(sequence(8), make([]byte, 12)...)
		if !bytes.Equal(mapped, want) {
			t.Errorf("expected %v, got %v", want, mapped)
		}
	})

	t.Run("remap clips a fixed range", func(t *testing.T) {
		s := mustOpen(t, writeFile(t, sequence(32)), ReadWrite, WithResizePolicy(ResizeRemap))
		if err := s.EnableMapping(4, 20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Truncate(10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if off, length, _ := s.Mapping(); off != 4 || length != 6 {
			t.Errorf("expected mapping [4, 10), got off=%d len=%d", off, length)
		}
	})
}

func TestStaleMapping(t *testing.T) {
	path := writeFile(t, sequence(32))
	s := mustOpen(t, path, ReadWrite)
	if err := s.EnableMapping(0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Truncate(path, 64); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.Read(make([]byte, 4)); !errors.Is(err, streamkit.ErrStaleMapping) {
		t.Fatalf("expected ErrStaleMapping, got %v", err)
	}
	if _, err := s.MappedBytes(); !errors.Is(err, streamkit.ErrStaleMapping) {
		t.Errorf("staleness should stick, got %v", err)
	}

	if err := s.DisableMapping(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Stat(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil || !bytes.Equal(buf, []byte{0, 1, 2, 3}) {
		t.Errorf("expected unmapped read to work again, got %v err=%v", buf, err)
	}
}

func TestMappingSurvivesUnknownSize(t *testing.T) {
	t.Run("file still covers the mapping", func(t *testing.T) {
		path := writeFile(t, sequence(32))
		s := mustOpen(t, path, ReadWrite)
		if err := s.EnableMapping(0, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// a failed truncate or append leaves the cached size unknown
		s.sizeValid = false

		buf := make([]byte, 4)
		if _, err := s.Read(buf); err != nil || !bytes.Equal(buf, []byte{0, 1, 2, 3}) {
			t.Fatalf("expected mapped read to work, got %v err=%v", buf, err)
		}
		if !s.sizeValid || s.size != 32 {
			t.Errorf("expected size refreshed to 32, got %d valid=%v", s.size, s.sizeValid)
		}
		if _, _, active := s.Mapping(); !active {
			t.Error("mapping should still be active")
		}
	})

	t.Run("file shrank under the mapping", func(t *testing.T) {
		path := writeFile(t, sequence(32))
		s := mustOpen(t, path, ReadWrite)
		if err := s.EnableMapping(0, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.Truncate(path, 8); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.sizeValid = false

		if _, err := s.Read(make([]byte, 4)); !errors.Is(err, streamkit.ErrStaleMapping) {
			t.Errorf("expected ErrStaleMapping, got %v", err)
		}
	})
}

func TestAppendMappingIsReadOnly(t *testing.T) {
	path := writeFile(t, []byte("abcd"))
	s := mustOpen(t, path, Append, WithMapping())

	if _, err := s.Write([]byte("ef")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := streamkit.ReadAll(s)
	if err != nil || string(got) != "abcdef" {
		t.Errorf("expected abcdef, got %q err=%v", got, err)
	}
}

func TestCloseReleasesMapping(t *testing.T) {
	path := writeFile(t, sequence(16))
	s, err := Open(path, ReadWrite, WithMapping())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.WriteAt([]byte{0xAA}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, active := s.Mapping(); active {
		t.Error("mapping should be gone after Close")
	}
	got, _ := os.ReadFile(path)
	if got[0] != 0xAA {
		t.Errorf("mapped write was not persisted, got %#x", got[0])
	}
}
