//go:build !unix || streamkit_nommap

package local

import (
	"errors"
	"testing"

	"github.com/gobeaver/streamkit"
)

func TestMappingCompiledOut(t *testing.T) {
	s := mustOpen(t, writeFile(t, []byte("abc")), ReadWrite)

	if err := s.EnableMapping(0, 0); !errors.Is(err, streamkit.ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
	if err := s.DisableMapping(); err != nil {
		t.Errorf("DisableMapping without a mapping should be a no-op, got %v", err)
	}
	if b, err := s.MappedBytes(); b != nil || err != nil {
		t.Errorf("expected no mapped bytes, got %v, %v", b, err)
	}
}
