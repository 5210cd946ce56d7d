// Package simd counts structural bytes in mapped CSV data. The counts are
// used to presize per-row tables before a scan, so they only need to be fast
// and close: quoted newlines are counted like any other.
package simd

import (
	"encoding/binary"
	"math/bits"
)

// ScanSeparators counts the occurrences of sep in data using the best available algorithm.
func ScanSeparators(data []byte, sep byte) uint64 {
	return scanImpl(data, sep)
}

// scanImpl is picked in init() from the CPU flags on AMD64, or defaults to the generic version.
var scanImpl func(data []byte, sep byte) uint64

// EstimateRecords returns the number of newline-terminated lines in data,
// counting an unterminated final line as one more.
func EstimateRecords(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := int(ScanSeparators(data, '\n'))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

const (
	lows  = 0x0101010101010101
	sevns = 0x7f7f7f7f7f7f7f7f
)

// scanSeparatorsSWAR compares eight bytes per step inside a uint64.
// XOR with the broadcast separator zeroes matching bytes; the zero-byte
// test sets exactly the high bit of each zero byte.
func scanSeparatorsSWAR(data []byte, sep byte) uint64 {
	pattern := lows * uint64(sep)

	var count uint64
	i := 0
	for ; i+8 <= len(data); i += 8 {
		v := binary.LittleEndian.Uint64(data[i:]) ^ pattern
		t := ((v & sevns) + sevns) | v | sevns
		count += uint64(bits.OnesCount64(^t))
	}
	for ; i < len(data); i++ {
		if data[i] == sep {
			count++
		}
	}
	return count
}
