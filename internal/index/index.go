// Package index builds the Value Index of a join: one scan over the indexed
// input records, for every key tuple, the ordinals of the rows carrying it
// and, for every ordinal, the byte offset of its row. Rows themselves are
// not kept; they are read back through the reader on demand.
package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/csvquery/csvjoin/internal/reader"
	"github.com/csvquery/csvjoin/internal/selection"
)

// initialBuckets presizes the key map; most joins index at least this many keys.
const initialBuckets = 10000

// ValueIndex maps key tuples to row ordinals of one input
type ValueIndex struct {
	rdr *reader.Reader

	keys    map[string]int // encoded key -> bucket id
	buckets [][]int        // ordinals per key, buckets in order of first appearance
	offsets []int64        // ordinal -> byte offset of the row

	fields  []string
	scratch []byte
}

// Build scans rdr from its current position to the end. Any read or parse
// failure aborts the scan and no index is returned.
func Build(rdr *reader.Reader, sel []int) (*ValueIndex, error) {
	vi := &ValueIndex{
		rdr:     rdr,
		keys:    make(map[string]int, initialBuckets),
		offsets: make([]int64, 0, rdr.EstimateRows()),
	}

	for {
		offset := rdr.ByteOffset()
		row, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}

		ordinal := len(vi.offsets)
		vi.offsets = append(vi.offsets, offset)

		vi.scratch = vi.appendKey(vi.scratch[:0], row, sel)
		if id, ok := vi.keys[string(vi.scratch)]; ok {
			vi.buckets[id] = append(vi.buckets[id], ordinal)
			continue
		}
		bucket := make([]int, 1, 4)
		bucket[0] = ordinal
		vi.keys[string(vi.scratch)] = len(vi.buckets)
		vi.buckets = append(vi.buckets, bucket)
	}

	// From here on rows are only fetched by seek.
	_ = rdr.AdviseRandom()
	return vi, nil
}

// NumRows returns the number of data rows scanned
func (vi *ValueIndex) NumRows() int {
	return len(vi.offsets)
}

// NumKeys returns the number of distinct key tuples
func (vi *ValueIndex) NumKeys() int {
	return len(vi.buckets)
}

// Offset returns the byte offset of the row with the given ordinal.
func (vi *ValueIndex) Offset(ordinal int) int64 {
	return vi.offsets[ordinal]
}

// Lookup returns the ordinals of the rows whose key tuple equals key, in
// scan order. The slice belongs to the index and must not be modified.
func (vi *ValueIndex) Lookup(key []string) ([]int, bool) {
	vi.scratch = appendTuple(vi.scratch[:0], key)
	id, ok := vi.keys[string(vi.scratch)]
	if !ok {
		return nil, false
	}
	return vi.buckets[id], true
}

// LookupRow is Lookup for the key tuple of row under sel.
func (vi *ValueIndex) LookupRow(row []string, sel []int) ([]int, bool) {
	vi.scratch = vi.appendKey(vi.scratch[:0], row, sel)
	id, ok := vi.keys[string(vi.scratch)]
	if !ok {
		return nil, false
	}
	return vi.buckets[id], true
}

// Seek positions the reader on the row with the given ordinal.
func (vi *ValueIndex) Seek(ordinal int) error {
	if ordinal < 0 || ordinal >= len(vi.offsets) {
		return &common.IoError{
			Op:   "seek",
			Path: vi.rdr.Path(),
			Err:  fmt.Errorf("row %d outside index of %d rows", ordinal, len(vi.offsets)),
		}
	}
	return vi.rdr.Seek(vi.offsets[ordinal])
}

// Row seeks to the row with the given ordinal and reads it. The returned
// slice is reused by the reader.
func (vi *ValueIndex) Row(ordinal int) ([]string, error) {
	if err := vi.Seek(ordinal); err != nil {
		return nil, err
	}
	row, err := vi.rdr.Read()
	if err == io.EOF {
		return nil, &common.IoError{Op: "read", Path: vi.rdr.Path(), Err: io.ErrUnexpectedEOF}
	}
	return row, err
}

// String lists every key tuple with its ordinals, in order of first appearance.
func (vi *ValueIndex) String() string {
	ids := make([]string, len(vi.buckets))
	for k, id := range vi.keys {
		ids[id] = k
	}

	var sb strings.Builder
	for id, k := range ids {
		fmt.Fprintf(&sb, "(%s) => %v\n", strings.Join(decodeKey(k), ", "), vi.buckets[id])
	}
	return sb.String()
}

// appendKey encodes the fields of row at sel as one map key.
func (vi *ValueIndex) appendKey(dst []byte, row []string, sel []int) []byte {
	vi.fields = selection.Project(vi.fields, row, sel)
	return appendTuple(dst, vi.fields)
}

// appendTuple prefixes each field with its length so ("a,b") and ("a", "b")
// never collide.
func appendTuple(dst []byte, key []string) []byte {
	for _, f := range key {
		dst = binary.AppendUvarint(dst, uint64(len(f)))
		dst = append(dst, f...)
	}
	return dst
}

func decodeKey(k string) []string {
	var fields []string
	b := []byte(k)
	for len(b) > 0 {
		n, w := binary.Uvarint(b)
		if w <= 0 || uint64(len(b)-w) < n {
			break
		}
		fields = append(fields, string(b[w:w+int(n)]))
		b = b[w+int(n):]
	}
	return fields
}
