//go:build !amd64

package simd

func init() {
	scanImpl = scanSeparatorsSWAR
}
