package main

import (
	"bytes"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csvquery/csvjoin/internal/join"
)

func TestGeneratedInputsJoin(t *testing.T) {
	dir := t.TempDir()
	gen := generator{rng: rand.New(rand.NewSource(1)), keys: 50}
	leftPath := filepath.Join(dir, "left.csv")
	rightPath := filepath.Join(dir, "right.csv")

	_, leftRows, err := writeFile(leftPath, func(w io.Writer) (int64, int, error) {
		return gen.writeLeft(w, 16*1024)
	})
	require.NoError(t, err)
	require.Greater(t, leftRows, 0)

	_, rightRows, err := writeFile(rightPath, func(w io.Writer) (int64, int, error) {
		return gen.writeRight(w, 40)
	})
	require.NoError(t, err)
	require.Equal(t, 40, rightRows)

	inner, err := runOnce(join.Inner, leftPath, rightPath)
	require.NoError(t, err)
	require.Equal(t, float64(inner.rows), inner.seeks)

	left, err := runOnce(join.LeftOuter, leftPath, rightPath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, left.rows, int64(leftRows))
	require.GreaterOrEqual(t, left.rows, inner.rows)

	cross, err := runOnce(join.Cross, leftPath, rightPath)
	require.NoError(t, err)
	require.Equal(t, int64(leftRows*rightRows), cross.rows)
}

func TestGeneratorRightRows(t *testing.T) {
	var buf bytes.Buffer
	gen := generator{rng: rand.New(rand.NewSource(7)), keys: 8}
	_, rows, err := gen.writeRight(&buf, 5)
	require.NoError(t, err)
	require.Equal(t, 5, rows)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	require.Equal(t, "code,region,weight", lines[0])
	for _, l := range lines[1:] {
		require.True(t, strings.HasPrefix(l, "US-"), l)
	}
}

func TestParseMode(t *testing.T) {
	m, ok := parseMode("full-outer")
	require.True(t, ok)
	require.Equal(t, join.FullOuter, m)

	_, ok = parseMode("sideways")
	require.False(t, ok)
}
