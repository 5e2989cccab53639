package streamkit_test

import (
	"errors"
	"io"
	"testing"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/driver/memory"
)

func TestReadOnly(t *testing.T) {
	m := memory.New()
	if _, err := m.Write([]byte("content")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	ro := streamkit.ReadOnly(m)

	t.Run("capabilities", func(t *testing.T) {
		want := streamkit.CapRead | streamkit.CapSeek | streamkit.CapSize | streamkit.CapClose
		if got := streamkit.Capabilities(ro); got != want {
			t.Errorf("Capabilities() = %v, want %v", got, want)
		}
	})

	t.Run("read operations work", func(t *testing.T) {
		got, err := streamkit.ReadAll(ro)
		if err != nil || string(got) != "content" {
			t.Errorf("ReadAll() = %q, %v", got, err)
		}
		if size, err := ro.Size(); err != nil || size != 7 {
			t.Errorf("Size() = %d, %v", size, err)
		}
	})

	t.Run("write operations fail", func(t *testing.T) {
		if _, err := ro.Write([]byte("x")); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("Write() error = %v, want ErrUnsupportedOperation", err)
		}
		if err := ro.Truncate(0); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("Truncate() error = %v, want ErrUnsupportedOperation", err)
		}
		if err := ro.Flush(); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("Flush() error = %v, want ErrUnsupportedOperation", err)
		}
		if m.String() != "content" {
			t.Errorf("underlying stream modified: %q", m.String())
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		if ro.Unwrap() != streamkit.Stream(m) {
			t.Error("Unwrap() did not return the wrapped stream")
		}
	})
}

func TestReadOnlyWriteAttemptHandler(t *testing.T) {
	custom := errors.New("writes are disabled")

	t.Run("custom error", func(t *testing.T) {
		var ops []string
		ro := streamkit.ReadOnly(memory.New(), streamkit.WithWriteAttemptHandler(func(op string) error {
			ops = append(ops, op)
			return custom
		}))

		if _, err := ro.Write([]byte("x")); err != custom {
			t.Errorf("Write() error = %v, want custom error", err)
		}
		if err := ro.Truncate(1); err != custom {
			t.Errorf("Truncate() error = %v, want custom error", err)
		}
		if len(ops) != 2 || ops[0] != "write" || ops[1] != "truncate" {
			t.Errorf("handler saw %v", ops)
		}
	})

	t.Run("handler allows the write", func(t *testing.T) {
		m := memory.New()
		ro := streamkit.ReadOnly(m, streamkit.WithWriteAttemptHandler(func(string) error { return nil }))
		if _, err := ro.Write([]byte("let through")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if m.String() != "let through" {
			t.Errorf("underlying = %q", m.String())
		}
	})

	t.Run("handler cannot add a missing capability", func(t *testing.T) {
		ro := streamkit.ReadOnly(memory.NewReader([]byte("abc")), streamkit.WithWriteAttemptHandler(func(string) error { return nil }))
		if _, err := ro.Write([]byte("x")); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
			t.Errorf("Write() error = %v, want ErrUnsupportedOperation", err)
		}
	})
}

func TestForwardOnly(t *testing.T) {
	fo := streamkit.ForwardOnly(memory.NewReader([]byte("abc")))

	if _, err := fo.Seek(0, io.SeekStart); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
		t.Errorf("Seek() error = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := fo.Size(); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
		t.Errorf("Size() error = %v, want ErrUnsupportedOperation", err)
	}
	got, err := streamkit.ReadAll(fo)
	if err != nil || string(got) != "abc" {
		t.Errorf("ReadAll() = %q, %v", got, err)
	}
	if err := fo.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRestrictIntersectsCapabilities(t *testing.T) {
	r := streamkit.Restrict(memory.NewReader([]byte("abc")), streamkit.CapAll)
	want := streamkit.CapRead | streamkit.CapSeek | streamkit.CapSize | streamkit.CapClose
	if got := streamkit.Capabilities(r); got != want {
		t.Errorf("Capabilities() = %v, want %v", got, want)
	}
}

func TestAsAccessors(t *testing.T) {
	s := memory.NewReader([]byte("abc"))

	if _, err := streamkit.AsReader(s); err != nil {
		t.Errorf("AsReader() error = %v", err)
	}
	if _, err := streamkit.AsSeeker(s); err != nil {
		t.Errorf("AsSeeker() error = %v", err)
	}
	if _, err := streamkit.AsWriter(s); !streamkit.IsUnsupported(err) {
		t.Errorf("AsWriter() error = %v, want unsupported", err)
	}
	if _, err := streamkit.AsTruncater(s); !streamkit.IsUnsupported(err) {
		t.Errorf("AsTruncater() error = %v, want unsupported", err)
	}
	if _, err := streamkit.AsFlusher(s); !streamkit.IsUnsupported(err) {
		t.Errorf("AsFlusher() error = %v, want unsupported", err)
	}
}
