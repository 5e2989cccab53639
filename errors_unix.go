//go:build unix

package streamkit

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isTransient(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}
