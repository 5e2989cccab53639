//go:build !unix || streamkit_nommap

package local

import (
	"errors"
	"os"
)

const mappingSupported = false

var errNoMmap = errors.New("memory mapping not compiled in")

func pageSize() int64 {
	return int64(os.Getpagesize())
}

func mmapRegion(*os.File, int64, int, bool) ([]byte, error) {
	return nil, errNoMmap
}

func msyncRegion([]byte) error {
	return errNoMmap
}

func munmapRegion([]byte) error {
	return errNoMmap
}
