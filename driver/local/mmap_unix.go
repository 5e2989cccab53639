//go:build unix && !streamkit_nommap

package local

import (
	"os"

	"golang.org/x/sys/unix"
)

const mappingSupported = true

func pageSize() int64 {
	return int64(unix.Getpagesize())
}

// mmapRegion maps length bytes of f starting at the page-aligned offset off.
func mmapRegion(f *os.File, off int64, length int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), off, length, prot, unix.MAP_SHARED)
}

func msyncRegion(region []byte) error {
	return unix.Msync(region, unix.MS_SYNC)
}

func munmapRegion(region []byte) error {
	return unix.Munmap(region)
}
