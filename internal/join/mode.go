package join

import (
	"github.com/csvquery/csvjoin/internal/common"
)

// Mode is the kind of join to run
type Mode int

const (
	Inner Mode = iota
	LeftOuter
	RightOuter
	FullOuter
	Cross
)

func (m Mode) String() string {
	switch m {
	case Inner:
		return "inner"
	case LeftOuter:
		return "left-outer"
	case RightOuter:
		return "right-outer"
	case FullOuter:
		return "full-outer"
	case Cross:
		return "cross"
	default:
		return "unknown"
	}
}

// ModeFromFlags picks the mode from the mutually exclusive mode flags.
// No flag means an inner join.
func ModeFromFlags(left, right, full, cross bool) (Mode, error) {
	mode, set := Inner, 0
	for _, f := range []struct {
		on   bool
		mode Mode
	}{
		{left, LeftOuter},
		{right, RightOuter},
		{full, FullOuter},
		{cross, Cross},
	} {
		if f.on {
			mode = f.mode
			set++
		}
	}
	if set > 1 {
		return Inner, common.Usagef("Please pick exactly one join operation.")
	}
	return mode, nil
}

// Direction says which input drives a one-sided outer join. The driving
// input keeps every row; the other one is indexed.
type Direction int

const (
	DriveLeft Direction = iota
	DriveRight
)

func (d Direction) String() string {
	if d == DriveRight {
		return "right"
	}
	return "left"
}

// bitset is a fixed-size set of ordinals
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << uint(i%64)
}

func (b bitset) has(i int) bool {
	return b[i/64]&(1<<uint(i%64)) != 0
}

// padding returns a row of n empty fields
func padding(n int) []string {
	return make([]string, n)
}
