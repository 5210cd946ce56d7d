package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/csvquery/csvjoin/internal/common"
)

// Compression selects how the output stream is encoded
type Compression string

const (
	CompressNone Compression = "none"
	CompressLZ4  Compression = "lz4"
	CompressZstd Compression = "zstd"
)

// ParseCompression validates a --compress value. An empty value picks the
// codec from the output file extension.
func ParseCompression(s, path string) (Compression, error) {
	switch strings.ToLower(s) {
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".lz4":
			return CompressLZ4, nil
		case ".zst", ".zstd":
			return CompressZstd, nil
		default:
			return CompressNone, nil
		}
	case "none":
		return CompressNone, nil
	case "lz4":
		return CompressLZ4, nil
	case "zstd", "zst":
		return CompressZstd, nil
	default:
		return "", common.Usagef("Unknown compression '%s' (want none, lz4 or zstd).", s)
	}
}

// WriterConfig holds configuration for the writer
type WriterConfig struct {
	CsvPath     string // used by Open and in error messages
	Separator   byte
	Compression Compression
}

// CsvWriter assembles joined records: one combined header, then rows made of
// a left part followed by a right part.
type CsvWriter struct {
	config WriterConfig
	file   *os.File       // nil for stdout or caller supplied writers
	codec  io.WriteCloser // nil without compression
	csvW   *csv.Writer
	record []string
	rows   int64
}

// Open creates (or truncates) the destination file and locks it for the
// duration of the run.
func Open(config WriterConfig) (*CsvWriter, error) {
	// Truncate only once the lock is held
	file, err := os.OpenFile(config.CsvPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &common.IoError{Op: "create", Path: config.CsvPath, Err: err}
	}

	// Exclusive Lock
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, &common.IoError{Op: "lock", Path: config.CsvPath, Err: err}
	}
	if err := file.Truncate(0); err != nil {
		_ = unlockFile(file)
		_ = file.Close()
		return nil, &common.IoError{Op: "truncate", Path: config.CsvPath, Err: err}
	}

	w, err := NewCsvWriter(file, config)
	if err != nil {
		_ = unlockFile(file)
		_ = file.Close()
		return nil, err
	}
	w.file = file
	return w, nil
}

// NewCsvWriter writes records to dst, compressed as configured. dst is not
// closed by Close.
func NewCsvWriter(dst io.Writer, config WriterConfig) (*CsvWriter, error) {
	if config.Separator == 0 {
		config.Separator = ','
	}
	w := &CsvWriter{config: config}

	out := dst
	switch config.Compression {
	case CompressLZ4:
		lw := lz4.NewWriter(dst)
		if err := lw.Apply(lz4.BlockSizeOption(lz4.Block4Mb)); err != nil {
			return nil, fmt.Errorf("configuring lz4: %w", err)
		}
		w.codec, out = lw, lw
	case CompressZstd:
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("configuring zstd: %w", err)
		}
		w.codec, out = zw, zw
	case CompressNone, "":
	default:
		return nil, common.Usagef("Unknown compression '%s'.", config.Compression)
	}

	w.csvW = csv.NewWriter(out)
	w.csvW.Comma = rune(config.Separator)
	return w, nil
}

// WriteHeader writes the left header fields followed by the right ones.
// Names are never reordered or deduplicated.
func (w *CsvWriter) WriteHeader(left, right []string) error {
	return w.write(left, right)
}

// WriteRow writes one joined record. Either side may be a padding row.
func (w *CsvWriter) WriteRow(left, right []string) error {
	if err := w.write(left, right); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *CsvWriter) write(left, right []string) error {
	w.record = append(w.record[:0], left...)
	w.record = append(w.record, right...)
	if err := w.csvW.Write(w.record); err != nil {
		return &common.IoError{Op: "write", Path: w.config.CsvPath, Err: err}
	}
	return nil
}

// Rows returns the number of data rows written so far
func (w *CsvWriter) Rows() int64 {
	return w.rows
}

// Flush pushes buffered records down to the destination.
func (w *CsvWriter) Flush() error {
	w.csvW.Flush()
	if err := w.csvW.Error(); err != nil {
		return &common.IoError{Op: "write", Path: w.config.CsvPath, Err: err}
	}
	return nil
}

// Close flushes, finishes the compressed stream and releases the file.
// Records written before a failure stay in the destination.
func (w *CsvWriter) Close() error {
	err := w.Flush()
	if w.codec != nil {
		if cerr := w.codec.Close(); cerr != nil && err == nil {
			err = &common.IoError{Op: "close", Path: w.config.CsvPath, Err: cerr}
		}
		w.codec = nil
	}
	if w.file != nil {
		_ = unlockFile(w.file)
		if cerr := w.file.Close(); cerr != nil && err == nil {
			err = &common.IoError{Op: "close", Path: w.config.CsvPath, Err: cerr}
		}
		w.file = nil
	}
	return err
}
