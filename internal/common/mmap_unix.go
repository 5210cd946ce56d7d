//go:build !windows

package common

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapFile maps the whole file read-only. Empty files map to a nil slice.
func MmapFile(f *os.File) ([]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		return nil, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("file too large to map: %d bytes", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	// Records are read front to back, with occasional jumps back for seeks.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return data, nil
}

// MunmapFile releases a mapping returned by MmapFile.
func MunmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// AdviseRandom tells the kernel data from MmapFile is now read at random,
// turning off the readahead MmapFile asked for.
func AdviseRandom(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Madvise(data, unix.MADV_RANDOM)
}
