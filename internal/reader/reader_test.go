package reader

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) [][]string {
	t.Helper()
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, append([]string(nil), rec...))
	}
}

func TestReaderHeadersAndRows(t *testing.T) {
	r, err := NewReader("mem.csv", []byte("id,name\n1,\"a,b\"\n2,c\n"), Config{Separator: ','})
	require.NoError(t, err)

	require.Equal(t, []string{"id", "name"}, r.Headers())
	require.True(t, r.HasHeaders())
	require.Equal(t, int64(8), r.ByteOffset())
	require.Equal(t, [][]string{{"1", "a,b"}, {"2", "c"}}, readAll(t, r))
}

func TestReaderNoHeaders(t *testing.T) {
	r, err := NewReader("mem.csv", []byte("1,x\n2,y\n"), Config{Separator: ',', NoHeaders: true})
	require.NoError(t, err)

	require.Equal(t, []string{"1", "x"}, r.Headers())
	require.False(t, r.HasHeaders())
	require.Equal(t, int64(0), r.ByteOffset())
	require.Equal(t, [][]string{{"1", "x"}, {"2", "y"}}, readAll(t, r))
}

func TestReaderOffsetsAndSeek(t *testing.T) {
	data := []byte("a;b\n1;x\n22;yy\n333;zzz")
	r, err := NewReader("mem.csv", data, Config{Separator: ';'})
	require.NoError(t, err)

	var offsets []int64
	for {
		off := r.ByteOffset()
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	require.Equal(t, []int64{4, 8, 14}, offsets)

	// seek in any order, repeatedly
	for _, i := range []int{2, 0, 1, 1} {
		require.NoError(t, r.Seek(offsets[i]))
		rec, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, []string{"1", "22", "333"}[i], rec[0])
	}

	require.NoError(t, r.Rewind())
	rec, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, rec)

	err = r.Seek(int64(len(data)) + 1)
	var ioErr *common.IoError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "seek", ioErr.Op)
}

func TestReaderSkipsBOM(t *testing.T) {
	r, err := NewReader("bom.csv", []byte("\xEF\xBB\xBFa,b\n1,2\n"), Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.Headers())

	require.NoError(t, r.Rewind())
	rec, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, "a", rec[0])
}

func TestReaderParseErrors(t *testing.T) {
	t.Run("field count", func(t *testing.T) {
		r, err := NewReader("bad.csv", []byte("a,b\n1,2\n3\n"), Config{})
		require.NoError(t, err)

		_, err = r.Read()
		require.NoError(t, err)
		_, err = r.Read()
		var pe *common.ParseError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "bad.csv", pe.Path)
	})

	t.Run("field count after seek", func(t *testing.T) {
		r, err := NewReader("bad.csv", []byte("a,b\n1,2\n3\n"), Config{})
		require.NoError(t, err)

		require.NoError(t, r.Seek(8))
		_, err = r.Read()
		var pe *common.ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("bare quote", func(t *testing.T) {
		_, err := NewReader("bad.csv", []byte("a,b\"c\n"), Config{})
		var pe *common.ParseError
		require.ErrorAs(t, err, &pe)
	})
}

func TestReaderEmpty(t *testing.T) {
	r, err := NewReader("empty.csv", nil, Config{})
	require.NoError(t, err)
	require.Empty(t, r.Headers())
	require.Equal(t, 0, r.EstimateRows())

	_, err = r.Read()
	require.Equal(t, io.EOF, err)
}

func TestReaderEstimateRows(t *testing.T) {
	r, err := NewReader("mem.csv", []byte("a\n1\n2\n3"), Config{})
	require.NoError(t, err)
	require.Equal(t, 3, r.EstimateRows())
}

func TestReaderQuotedCRLF(t *testing.T) {
	r, err := NewReader("crlf.csv", []byte("k,v\r\n1,\"a\r\nb\"\r\n"), Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"k", "v"}, r.Headers())
	require.Equal(t, [][]string{{"1", "a\nb"}}, readAll(t, r))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	r, err := Open(path, Config{Separator: ','})
	require.NoError(t, err)
	require.Equal(t, path, r.Path())
	require.Equal(t, [][]string{{"1", "2"}}, readAll(t, r))

	// still readable through seeks once advised
	require.NoError(t, r.AdviseRandom())
	require.NoError(t, r.Rewind())
	rec, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, rec)
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"), Config{})
	var ioErr *common.IoError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "open", ioErr.Op)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{",", ',', false},
		{";", ';', false},
		{`\t`, '\t', false},
		{"\t", '\t', false},
		{"ab", 0, true},
		{"", 0, true},
		{`"`, 0, true},
		{"é", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			require.True(t, common.IsUsage(err))
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}
