// Command benchmark generates a pair of related CSV files and times every
// join mode over them.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/csvquery/csvjoin/internal/join"
	"github.com/csvquery/csvjoin/internal/metrics"
	"github.com/csvquery/csvjoin/internal/reader"
	"github.com/csvquery/csvjoin/internal/selection"
	"github.com/csvquery/csvjoin/internal/writer"
)

func main() {
	var (
		sizeMB    int
		rightRows int
		keys      int
		modes     string
		keep      string
		seed      int64
	)
	flag.IntVar(&sizeMB, "size-mb", 100, "Approximate size of the left input in MB")
	flag.IntVar(&rightRows, "right-rows", 200_000, "Rows in the right input")
	flag.IntVar(&keys, "keys", 100_000, "Distinct join key values")
	flag.StringVar(&modes, "modes", "inner,left-outer,right-outer,full-outer", "Comma separated join modes to time")
	flag.StringVar(&keep, "keep", "", "Write the generated inputs to this directory and keep them")
	flag.Int64Var(&seed, "seed", 123, "Random seed")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	dir := keep
	if dir == "" {
		tmp, err := os.MkdirTemp("", "csvjoin_bench")
		if err != nil {
			level.Error(logger).Log("msg", "failed to create temp dir", "err", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	fmt.Printf("Generating %d MB left input and %d right rows...\n", sizeMB, rightRows)
	gen := generator{rng: rand.New(rand.NewSource(seed)), keys: keys}
	leftPath := filepath.Join(dir, "left.csv")
	rightPath := filepath.Join(dir, "right.csv")

	leftBytes, leftRows, err := writeFile(leftPath, func(w io.Writer) (int64, int, error) {
		return gen.writeLeft(w, int64(sizeMB)*1024*1024)
	})
	if err != nil {
		level.Error(logger).Log("msg", "failed to generate left input", "err", err)
		os.Exit(1)
	}
	if _, _, err := writeFile(rightPath, func(w io.Writer) (int64, int, error) {
		return gen.writeRight(w, rightRows)
	}); err != nil {
		level.Error(logger).Log("msg", "failed to generate right input", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d left rows (%.2f MB)\n", leftRows, float64(leftBytes)/1024/1024)

	for _, name := range strings.Split(modes, ",") {
		mode, ok := parseMode(strings.TrimSpace(name))
		if !ok {
			level.Error(logger).Log("msg", "unknown join mode", "mode", name)
			os.Exit(1)
		}

		res, err := runOnce(mode, leftPath, rightPath)
		if err != nil {
			level.Error(logger).Log("msg", "join failed", "mode", mode, "err", err)
			os.Exit(1)
		}
		mbPerSec := float64(leftBytes) / 1024 / 1024 / res.elapsed.Seconds()

		fmt.Printf("\n--------------------------------------------------\n")
		fmt.Printf("Mode:       %s\n", mode)
		fmt.Printf("Rows out:   %d\n", res.rows)
		fmt.Printf("Seeks:      %.0f\n", res.seeks)
		fmt.Printf("Throughput: %.2f MB/s\n", mbPerSec)
		fmt.Printf("Time:       %v\n", res.elapsed)
		fmt.Printf("--------------------------------------------------\n")
	}
}

func parseMode(s string) (join.Mode, bool) {
	for _, m := range []join.Mode{join.Inner, join.LeftOuter, join.RightOuter, join.FullOuter, join.Cross} {
		if m.String() == s {
			return m, true
		}
	}
	return join.Inner, false
}

type result struct {
	rows    int64
	seeks   float64
	elapsed time.Duration
}

// runOnce joins the inputs on code and discards the output.
func runOnce(mode join.Mode, leftPath, rightPath string) (result, error) {
	cfg := reader.Config{Separator: ','}
	left, err := reader.Open(leftPath, cfg)
	if err != nil {
		return result{}, err
	}
	defer left.Close()
	right, err := reader.Open(rightPath, cfg)
	if err != nil {
		return result{}, err
	}
	defer right.Close()

	l, r, err := join.Resolve(selection.MustParse("code"), left, selection.MustParse("code"), right)
	if err != nil {
		return result{}, err
	}
	wtr, err := writer.NewCsvWriter(io.Discard, writer.WriterConfig{Separator: ','})
	if err != nil {
		return result{}, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	j, err := join.New(join.Config{Mode: mode, Metrics: m}, l, r, wtr)
	if err != nil {
		return result{}, err
	}

	start := time.Now()
	if err := j.Run(context.Background()); err != nil {
		return result{}, err
	}
	elapsed := time.Since(start)
	if err := wtr.Close(); err != nil {
		return result{}, err
	}

	seeks, err := counterValue(reg, "csvjoin_seeks_total")
	if err != nil {
		return result{}, err
	}
	return result{rows: wtr.Rows(), seeks: seeks, elapsed: elapsed}, nil
}

func counterValue(g prometheus.Gatherer, name string) (float64, error) {
	families, err := g.Gather()
	if err != nil {
		return 0, err
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %s not found", name)
}

func writeFile(path string, fill func(io.Writer) (int64, int, error)) (int64, int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	n, rows, err := fill(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, rows, err
}

// generator writes inputs whose join key is drawn from a fixed key space,
// so both sides have duplicates and unmatched rows.
type generator struct {
	rng  *rand.Rand
	keys int
}

// writeLeft writes id,code,value,description rows until limit bytes.
func (g generator) writeLeft(w io.Writer, limit int64) (int64, int, error) {
	n, err := io.WriteString(w, "id,code,value,description\n")
	written := int64(n)
	if err != nil {
		return written, 0, err
	}

	buf := make([]byte, 0, 128)
	rows := 0
	for written < limit {
		rows++
		buf = buf[:0]
		buf = fmt.Appendf(buf, "%d,US-%d,%d,\"Description for item %d, padded\"\n",
			rows, g.rng.Intn(g.keys), g.rng.Intn(10000), rows)
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, rows, err
		}
	}
	return written, rows, nil
}

// writeRight writes code,region,weight rows. Codes go a quarter past the
// left key space so some right rows never match.
func (g generator) writeRight(w io.Writer, rows int) (int64, int, error) {
	n, err := io.WriteString(w, "code,region,weight\n")
	written := int64(n)
	if err != nil {
		return written, 0, err
	}

	regions := []string{"north", "south", "east", "west"}
	buf := make([]byte, 0, 64)
	for i := 0; i < rows; i++ {
		buf = buf[:0]
		buf = fmt.Appendf(buf, "US-%d,%s,%d\n",
			g.rng.Intn(g.keys+g.keys/4), regions[i%len(regions)], g.rng.Intn(100))
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, i, err
		}
	}
	return written, rows, nil
}
