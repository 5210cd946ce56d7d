// Package join runs the five join algorithms over two delimited inputs.
//
// Every algorithm except cross join scans one input (the driving side) once
// and answers key lookups from a Value Index built over the other input (the
// indexed side). Matched rows are fetched by seeking the indexed reader, so
// memory holds keys and offsets only, never row contents.
package join

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/csvquery/csvjoin/internal/index"
	"github.com/csvquery/csvjoin/internal/metrics"
	"github.com/csvquery/csvjoin/internal/reader"
	"github.com/csvquery/csvjoin/internal/selection"
	"github.com/csvquery/csvjoin/internal/writer"
)

// maxDumpKeys caps the size of an index whose contents are logged at debug level.
const maxDumpKeys = 32

// Input is one side of a join: an open reader and the resolved key columns.
type Input struct {
	Reader    *reader.Reader
	Selection []int
}

// Config holds configuration for a join run
type Config struct {
	Mode    Mode
	Logger  log.Logger       // defaults to a no-op logger
	Metrics *metrics.Metrics // defaults to unregistered metrics
}

// Joiner joins a left and a right input into one writer
type Joiner struct {
	config Config
	logger log.Logger
	m      *metrics.Metrics

	left  side
	right side
	wtr   *writer.CsvWriter

	padLeft  []string
	padRight []string
}

type side struct {
	Input
	label string
}

// Resolve resolves both column selections against the headers of their
// inputs and checks they select the same number of columns. No data row is
// read.
func Resolve(sel1 selection.Selector, rdr1 *reader.Reader, sel2 selection.Selector, rdr2 *reader.Reader) (Input, Input, error) {
	cols1, err := sel1.Resolve(rdr1.Headers(), rdr1.HasHeaders())
	if err != nil {
		return Input{}, Input{}, err
	}
	cols2, err := sel2.Resolve(rdr2.Headers(), rdr2.HasHeaders())
	if err != nil {
		return Input{}, Input{}, err
	}
	if len(cols1) != len(cols2) {
		return Input{}, Input{}, common.Usagef(
			"Column selections must have the same number of columns, "+
				"but found column selections with %d and %d columns.",
			len(cols1), len(cols2))
	}
	return Input{Reader: rdr1, Selection: cols1}, Input{Reader: rdr2, Selection: cols2}, nil
}

// New creates a joiner. Both selections must have the same length.
func New(config Config, left, right Input, wtr *writer.CsvWriter) (*Joiner, error) {
	if len(left.Selection) != len(right.Selection) {
		return nil, common.Usagef(
			"Column selections must have the same number of columns, "+
				"but found column selections with %d and %d columns.",
			len(left.Selection), len(right.Selection))
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.Discard()
	}

	return &Joiner{
		config:   config,
		logger:   log.With(config.Logger, "mode", config.Mode),
		m:        config.Metrics,
		left:     side{Input: left, label: metrics.SideLeft},
		right:    side{Input: right, label: metrics.SideRight},
		wtr:      wtr,
		padLeft:  padding(len(left.Reader.Headers())),
		padRight: padding(len(right.Reader.Headers())),
	}, nil
}

// Run writes the combined header, unless headers are off, then the joined
// rows. It stops at the first error; rows already written stay written.
// The writer is flushed but not closed.
func (j *Joiner) Run(ctx context.Context) error {
	start := time.Now()

	if j.left.Reader.HasHeaders() {
		if err := j.wtr.WriteHeader(j.left.Reader.Headers(), j.right.Reader.Headers()); err != nil {
			return err
		}
	}

	var err error
	switch j.config.Mode {
	case Inner:
		err = j.inner(ctx)
	case LeftOuter:
		err = j.outer(ctx, DriveLeft)
	case RightOuter:
		err = j.outer(ctx, DriveRight)
	case FullOuter:
		err = j.fullOuter(ctx)
	case Cross:
		err = j.cross(ctx)
	default:
		err = fmt.Errorf("unknown join mode %d", j.config.Mode)
	}
	if err != nil {
		return err
	}
	if err := j.wtr.Flush(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	j.m.DurationSeconds.Set(elapsed.Seconds())
	level.Info(j.logger).Log(
		"msg", "join complete",
		"rows_written", j.wtr.Rows(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return nil
}

// inner emits, for each left row, one combined row per matching right row.
func (j *Joiner) inner(ctx context.Context) error {
	vi, err := j.buildIndex(j.right)
	if err != nil {
		return err
	}

	return j.scan(ctx, j.left, func(row []string) error {
		ords, ok := vi.LookupRow(row, j.left.Selection)
		if !ok {
			return nil
		}
		for _, ord := range ords {
			match, err := j.fetch(vi, ord)
			if err != nil {
				return err
			}
			if err := j.emit(row, match); err != nil {
				return err
			}
		}
		return nil
	})
}

// outer keeps every row of the driving input. Output columns are always
// left fields then right fields, whichever side drives.
func (j *Joiner) outer(ctx context.Context, dir Direction) error {
	driving, indexed := j.left, j.right
	pad := j.padRight
	if dir == DriveRight {
		driving, indexed = j.right, j.left
		pad = j.padLeft
	}

	emit := func(own, other []string) error {
		if dir == DriveRight {
			return j.emit(other, own)
		}
		return j.emit(own, other)
	}

	vi, err := j.buildIndex(indexed)
	if err != nil {
		return err
	}
	level.Debug(j.logger).Log("msg", "outer join", "driving", dir, "path", driving.Reader.Path())

	return j.scan(ctx, driving, func(row []string) error {
		ords, ok := vi.LookupRow(row, driving.Selection)
		if !ok {
			j.m.UnmatchedRows.WithLabelValues(driving.label).Inc()
			return emit(row, pad)
		}
		for _, ord := range ords {
			match, err := j.fetch(vi, ord)
			if err != nil {
				return err
			}
			if err := emit(row, match); err != nil {
				return err
			}
		}
		return nil
	})
}

// fullOuter runs a left outer join while marking every right row it used,
// then emits the right rows nobody matched, in their original order.
func (j *Joiner) fullOuter(ctx context.Context) error {
	vi, err := j.buildIndex(j.right)
	if err != nil {
		return err
	}
	visited := newBitset(vi.NumRows())

	err = j.scan(ctx, j.left, func(row []string) error {
		ords, ok := vi.LookupRow(row, j.left.Selection)
		if !ok {
			j.m.UnmatchedRows.WithLabelValues(j.left.label).Inc()
			return j.emit(row, j.padRight)
		}
		for _, ord := range ords {
			visited.set(ord)
			match, err := j.fetch(vi, ord)
			if err != nil {
				return err
			}
			if err := j.emit(row, match); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for ord := 0; ord < vi.NumRows(); ord++ {
		if visited.has(ord) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := j.fetch(vi, ord)
		if err != nil {
			return err
		}
		j.m.UnmatchedRows.WithLabelValues(j.right.label).Inc()
		if err := j.emit(j.padLeft, row); err != nil {
			return err
		}
	}
	return nil
}

// cross pairs every left row with every right row. There is no key to
// index, so the right input is rewound and rescanned for each left row.
func (j *Joiner) cross(ctx context.Context) error {
	right := j.right.Reader

	return j.scan(ctx, j.left, func(row []string) error {
		if err := right.Rewind(); err != nil {
			return err
		}
		j.m.Seeks.Inc()

		// A rewind lands on the first record of the file. Drop it when
		// it is a header; with --no-headers it is data.
		if right.HasHeaders() {
			if _, err := right.Read(); err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
		}

		for {
			other, err := right.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			j.m.RowsRead.WithLabelValues(j.right.label).Inc()
			if err := j.emit(row, other); err != nil {
				return err
			}
		}
	})
}

// scan feeds every remaining row of s to fn, stopping at the first error.
func (j *Joiner) scan(ctx context.Context, s side, fn func(row []string) error) error {
	counter := j.m.RowsRead.WithLabelValues(s.label)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := s.Reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		counter.Inc()
		if err := fn(row); err != nil {
			return err
		}
	}
}

func (j *Joiner) buildIndex(s side) (*index.ValueIndex, error) {
	start := time.Now()
	vi, err := index.Build(s.Reader, s.Selection)
	if err != nil {
		return nil, err
	}

	j.m.RowsRead.WithLabelValues(s.label).Add(float64(vi.NumRows()))
	j.m.IndexRows.Set(float64(vi.NumRows()))
	j.m.IndexKeys.Set(float64(vi.NumKeys()))
	level.Debug(j.logger).Log(
		"msg", "value index built",
		"path", s.Reader.Path(),
		"rows", vi.NumRows(),
		"keys", vi.NumKeys(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if vi.NumKeys() <= maxDumpKeys {
		level.Debug(j.logger).Log("msg", "value index contents", "path", s.Reader.Path(), "index", vi)
	}
	return vi, nil
}

func (j *Joiner) fetch(vi *index.ValueIndex, ord int) ([]string, error) {
	j.m.Seeks.Inc()
	return vi.Row(ord)
}

func (j *Joiner) emit(left, right []string) error {
	if err := j.wtr.WriteRow(left, right); err != nil {
		return err
	}
	j.m.RowsWritten.Inc()
	return nil
}
