//go:build amd64

package simd

import (
	"bytes"

	"golang.org/x/sys/cpu"
)

func init() {
	if cpu.X86.HasAVX2 {
		// bytes.Count already dispatches to an AVX2 loop in the runtime.
		scanImpl = scanSeparatorsBytes
	} else {
		scanImpl = scanSeparatorsSWAR
	}
}

func scanSeparatorsBytes(data []byte, sep byte) uint64 {
	return uint64(bytes.Count(data, []byte{sep}))
}
