//go:build windows

package common

import (
	"io"
	"os"
)

// MmapFile reads the whole file into memory. Readers only need a byte slice
// with random access, so a heap copy stands in for a mapping here.
func MmapFile(f *os.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if len(data) == 0 {
		return nil, err
	}
	return data, err
}

// MunmapFile is a no-op; the slice from MmapFile belongs to the GC.
func MunmapFile(data []byte) error {
	return nil
}

// AdviseRandom is a no-op without a mapping.
func AdviseRandom(data []byte) error {
	return nil
}
