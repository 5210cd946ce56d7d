package simd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanSeparators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		sep   byte
		want  uint64
	}{
		{"empty", "", ',', 0},
		{"no separators", "hello world", ',', 0},
		{"single separator", "hello,world", ',', 1},
		{"multiple separators", "a,b,c,d", ',', 3},
		{"start and end", ",middle,", ',', 2},
		{"only separators", ",,,", ',', 3},
		{"newline separator", "line1\nline2\n", '\n', 2},
		{"custom separator", "a|b|c", '|', 2},
		{"high bit separator", "a\xffb\xff\xfe", 0xff, 2},
		{"long string", strings.Repeat("a", 100) + "," + strings.Repeat("b", 100), ',', 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ScanSeparators([]byte(tt.input), tt.sep))
			require.Equal(t, tt.want, scanSeparatorsSWAR([]byte(tt.input), tt.sep))
		})
	}
}

func TestScanSeparatorsTail(t *testing.T) {
	// specifically test boundaries near the 8 byte word size
	sizes := []int{1, 7, 8, 9, 15, 16, 17, 63, 64, 65, 255, 256, 257}
	sep := byte(',')

	for _, size := range sizes {
		data := bytes.Repeat([]byte{'.'}, size)
		data[size-1] = sep

		require.Equal(t, uint64(1), scanSeparatorsSWAR(data, sep), "size=%d", size)
		require.Equal(t, uint64(1), ScanSeparators(data, sep), "size=%d", size)
	}
}

func TestEstimateRecords(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a,b", 1},
		{"a,b\n", 1},
		{"a,b\n1,2\n3,4", 3},
		{"a,b\r\n1,2\r\n", 2},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, EstimateRecords([]byte(tt.input)), "input=%q", tt.input)
	}
}

func BenchmarkScanSeparatorsSWAR1MB(b *testing.B) {
	input := bytes.Repeat([]byte("val1,val2,val3,val4\n"), 1024*1024/20)

	b.SetBytes(int64(len(input)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = scanSeparatorsSWAR(input, '\n')
	}
}

func BenchmarkScanSeparators1MB(b *testing.B) {
	input := bytes.Repeat([]byte("val1,val2,val3,val4\n"), 1024*1024/20)

	b.SetBytes(int64(len(input)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = ScanSeparators(input, '\n')
	}
}
