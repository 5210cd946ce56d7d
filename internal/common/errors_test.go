package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	ioErr := &IoError{Op: "seek", Path: "b.csv", Err: io.ErrUnexpectedEOF}
	require.Equal(t, "seek b.csv: unexpected EOF", ioErr.Error())
	require.ErrorIs(t, fmt.Errorf("index: %w", ioErr), io.ErrUnexpectedEOF)

	stdout := &IoError{Op: "write", Err: io.ErrClosedPipe}
	require.Equal(t, "write: io: read/write on closed pipe", stdout.Error())

	pe := &ParseError{Path: "a.csv", Err: errors.New("bare quote")}
	var target *ParseError
	require.ErrorAs(t, fmt.Errorf("scan: %w", pe), &target)
	require.Equal(t, "a.csv", target.Path)

	require.True(t, IsUsage(fmt.Errorf("join: %w", Usagef("bad %d", 1))))
	require.False(t, IsUsage(pe))
}

func TestMmapFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := MmapFile(f)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))
	require.NoError(t, AdviseRandom(data))
	require.Equal(t, "a,b\n1,2\n", string(data))
	require.NoError(t, MunmapFile(data))

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	ef, err := os.Open(empty)
	require.NoError(t, err)
	defer ef.Close()

	data, err = MmapFile(ef)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NoError(t, AdviseRandom(data))
	require.NoError(t, MunmapFile(data))
}
