//go:build !unix

package streamkit

import (
	"errors"
	"syscall"
)

func isTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}
