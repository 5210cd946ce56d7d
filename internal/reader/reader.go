// Package reader provides record-level access to a delimited text file with
// byte offsets and random-access seeks.
//
// The file is memory mapped once; a seek only repositions a bytes.Reader and
// resets the csv parser on top of it, so the indexed side of a join can be
// revisited row by row without re-reading the file through the kernel.
//
// Records are parsed by encoding/csv, which turns a \r\n inside a quoted
// field into \n. Field values, keys included, are compared and written in
// that normalized form.
package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/csvquery/csvjoin/internal/simd"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Config holds settings for the reader
type Config struct {
	Separator byte // single byte field separator
	NoHeaders bool // first record is data, not a header
}

// Reader reads CSV records from mapped data and tracks byte offsets
type Reader struct {
	path   string
	config Config
	file   *os.File // nil when built from a byte slice
	data   []byte

	src  *bytes.Reader
	buf  *bufio.Reader
	csv  *csv.Reader
	base int64 // offset the current csv parser started at

	start     int64 // first byte after an optional BOM
	dataStart int64 // offset of the first data record
	headers   []string
}

// Open maps the file at path and reads its first record.
func Open(path string, config Config) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &common.IoError{Op: "open", Path: path, Err: err}
	}

	data, err := common.MmapFile(file)
	if err != nil {
		_ = file.Close()
		return nil, &common.IoError{Op: "map", Path: path, Err: err}
	}

	r, err := NewReader(path, data, config)
	if err != nil {
		_ = common.MunmapFile(data)
		_ = file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReader reads records from data. path is only used in error messages.
func NewReader(path string, data []byte, config Config) (*Reader, error) {
	if config.Separator == 0 {
		config.Separator = ','
	}

	r := &Reader{
		path:   path,
		config: config,
		data:   data,
		src:    bytes.NewReader(data),
	}
	r.buf = bufio.NewReaderSize(r.src, 64*1024)

	if bytes.HasPrefix(data, utf8BOM) {
		r.start = int64(len(utf8BOM))
	}
	if err := r.readHeaders(); err != nil {
		return nil, err
	}
	return r, nil
}

// readHeaders reads the first record. Its width fixes the field count of
// every later record; with NoHeaders it stays part of the data.
func (r *Reader) readHeaders() error {
	if err := r.Seek(r.start); err != nil {
		return err
	}

	rec, err := r.Read()
	if err == io.EOF {
		r.dataStart = r.start
		return nil
	}
	if err != nil {
		return err
	}

	r.headers = append([]string(nil), rec...)
	if r.config.NoHeaders {
		r.dataStart = r.start
	} else {
		r.dataStart = r.ByteOffset()
	}
	return r.Seek(r.dataStart)
}

// Headers returns the first record of the file. With NoHeaders it is still
// the first record and is only used for its width.
func (r *Reader) Headers() []string {
	return r.headers
}

// HasHeaders reports whether the first record is a header.
func (r *Reader) HasHeaders() bool {
	return !r.config.NoHeaders
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// Read returns the next record. The returned slice is reused by the next
// call. Returns io.EOF at the end of the data.
func (r *Reader) Read() ([]string, error) {
	rec, err := r.csv.Read()
	if err == nil || err == io.EOF {
		return rec, err
	}

	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return nil, &common.ParseError{Path: r.path, Err: err}
	}
	return nil, &common.IoError{Op: "read", Path: r.path, Err: err}
}

// ByteOffset returns the offset of the record the next Read returns.
func (r *Reader) ByteOffset() int64 {
	return r.base + r.csv.InputOffset()
}

// Seek positions the reader so the next Read returns the record starting at
// offset. Seeking to the same offset twice is harmless.
func (r *Reader) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(r.data)) {
		return &common.IoError{
			Op:   "seek",
			Path: r.path,
			Err:  fmt.Errorf("offset %d outside [0, %d]", offset, len(r.data)),
		}
	}
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return &common.IoError{Op: "seek", Path: r.path, Err: err}
	}
	r.buf.Reset(r.src)
	r.base = offset

	// csv.NewReader keeps r.buf as is since it is already a large enough bufio.Reader
	c := csv.NewReader(r.buf)
	c.Comma = rune(r.config.Separator)
	c.FieldsPerRecord = len(r.headers)
	c.ReuseRecord = true
	r.csv = c
	return nil
}

// Rewind seeks to the very first record, header included.
func (r *Reader) Rewind() error {
	return r.Seek(r.start)
}

// EstimateRows guesses the number of data records from the line count.
func (r *Reader) EstimateRows() int {
	if r.dataStart >= int64(len(r.data)) {
		return 0
	}
	return simd.EstimateRecords(r.data[r.dataStart:])
}

// AdviseRandom switches the mapping from sequential to random access
// readahead. Call it once the reader is only used through seeks.
func (r *Reader) AdviseRandom() error {
	if r.file == nil {
		return nil
	}
	if err := common.AdviseRandom(r.data); err != nil {
		return &common.IoError{Op: "madvise", Path: r.path, Err: err}
	}
	return nil
}

// Close releases the mapping and the file
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := common.MunmapFile(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	return err
}

// ParseDelimiter turns a user supplied delimiter into a separator byte.
// The two character sequence `\t` stands for a tab.
func ParseDelimiter(s string) (byte, error) {
	if s == `\t` {
		return '\t', nil
	}
	if len(s) != 1 || s[0] >= 0x80 {
		return 0, common.Usagef("Could not convert '%s' to a single ASCII character.", s)
	}
	switch c := s[0]; c {
	case '"', '\r', '\n':
		return 0, common.Usagef("Delimiter %q is not allowed.", c)
	default:
		return c, nil
	}
}
