// Package main provides csvjoin, a command line tool that joins two CSV
// files on a set of key columns.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/csvquery/csvjoin/internal/common"
	"github.com/csvquery/csvjoin/internal/join"
	"github.com/csvquery/csvjoin/internal/metrics"
	"github.com/csvquery/csvjoin/internal/reader"
	"github.com/csvquery/csvjoin/internal/selection"
	"github.com/csvquery/csvjoin/internal/writer"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-17"
)

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130 // Standard exit code for SIGINT
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "join":
		return runJoin(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "csvjoin v%s (%s)\n", Version, BuildDate)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `csvjoin - join two CSV files on key columns

Usage:
    csvjoin <command> [arguments]

Commands:
    join     Join two CSV files
    version  Show version
    help     Show this help

Use "csvjoin join --help" for join options.`)
}

const joinUsage = `Usage:
    csvjoin join [options] <columns1> <input1> <columns2> <input2>

Joins <input1> and <input2> on the columns selected by <columns1> and
<columns2>. Both selections must name the same number of columns. Rows are
written as the fields of <input1> followed by the fields of <input2>.

Columns are selected by 1-based index or by name, e.g. "1,3-5,name,name[1]".
A name containing commas or dashes can be double-quoted.

With no join flag an inner join is run.

Options:`

// joinOptions holds everything the join subcommand was given
type joinOptions struct {
	mode        join.Mode
	columns1    string
	input1      string
	columns2    string
	input2      string
	output      string
	noHeaders   bool
	delimiter   byte
	compress    string
	metricsFile string
	verbose     bool
}

// parseJoinArgs parses the join flags and positional arguments. Flags may
// appear before, between or after the positional arguments; everything after
// "--" is positional.
func parseJoinArgs(args []string, stderr io.Writer) (joinOptions, error) {
	var (
		opts                     joinOptions
		left, right, full, cross bool
		delimiter                string
	)

	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), joinUsage)
		fs.PrintDefaults()
	}

	fs.BoolVar(&left, "left", false, "Left outer join: keep every row of <input1>")
	fs.BoolVar(&right, "right", false, "Right outer join: keep every row of <input2>")
	fs.BoolVar(&full, "full", false, "Full outer join: keep every row of both inputs")
	fs.BoolVar(&cross, "cross", false, "Cross join: every row of <input1> with every row of <input2>")
	fs.StringVar(&opts.output, "output", "", "Write output to `file` instead of stdout")
	fs.StringVar(&opts.output, "o", "", "Shorthand for --output")
	fs.BoolVar(&opts.noHeaders, "no-headers", false, "The first row of each input is data, not a header")
	fs.BoolVar(&opts.noHeaders, "n", false, "Shorthand for --no-headers")
	fs.StringVar(&delimiter, "delimiter", ",", "Field delimiter for input and output (\\t for tab)")
	fs.StringVar(&delimiter, "d", ",", "Shorthand for --delimiter")
	fs.StringVar(&opts.compress, "compress", "", "Output compression: none, lz4 or zstd (default from the output extension)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to `file`")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&opts.verbose, "v", false, "Shorthand for --verbose")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return opts, err
			}
			return opts, common.Usagef("%v", err)
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}

	if len(positional) != 4 {
		return opts, common.Usagef(
			"Expected 4 arguments <columns1> <input1> <columns2> <input2>, got %d.", len(positional))
	}
	opts.columns1, opts.input1 = positional[0], positional[1]
	opts.columns2, opts.input2 = positional[2], positional[3]

	var err error
	if opts.mode, err = join.ModeFromFlags(left, right, full, cross); err != nil {
		return opts, err
	}
	if opts.delimiter, err = reader.ParseDelimiter(delimiter); err != nil {
		return opts, err
	}
	return opts, nil
}

// runJoin handles the join command
func runJoin(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseJoinArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, `Use "csvjoin join --help" for usage.`)
		return exitUsage
	}

	logger := newLogger(stderr, opts.verbose)

	m := metrics.Discard()
	reg := prometheus.NewRegistry()
	if opts.metricsFile != "" {
		m = metrics.NewMetrics(reg)
	}

	err = doJoin(ctx, opts, stdout, logger, m)

	if opts.metricsFile != "" {
		if merr := metrics.WriteTextfile(opts.metricsFile, reg); merr != nil {
			level.Error(logger).Log("msg", "failed to write metrics", "path", opts.metricsFile, "err", merr)
			if err == nil {
				return exitFailure
			}
		}
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		level.Warn(logger).Log("msg", "join interrupted")
		return exitInterrupted
	case common.IsUsage(err):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	default:
		level.Error(logger).Log("msg", "join failed", "err", err)
		return exitFailure
	}
}

func newLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func doJoin(ctx context.Context, opts joinOptions, stdout io.Writer, logger log.Logger, m *metrics.Metrics) error {
	sel1, err := selection.Parse(opts.columns1)
	if err != nil {
		return err
	}
	sel2, err := selection.Parse(opts.columns2)
	if err != nil {
		return err
	}
	compression, err := writer.ParseCompression(opts.compress, opts.output)
	if err != nil {
		return err
	}

	if err := checkOutput(opts.output, opts.input1, opts.input2); err != nil {
		return err
	}

	rcfg := reader.Config{Separator: opts.delimiter, NoHeaders: opts.noHeaders}
	rdr1, err := reader.Open(opts.input1, rcfg)
	if err != nil {
		return err
	}
	defer rdr1.Close()
	rdr2, err := reader.Open(opts.input2, rcfg)
	if err != nil {
		return err
	}
	defer rdr2.Close()

	left, right, err := join.Resolve(sel1, rdr1, sel2, rdr2)
	if err != nil {
		return err
	}

	wcfg := writer.WriterConfig{
		CsvPath:     opts.output,
		Separator:   opts.delimiter,
		Compression: compression,
	}
	var wtr *writer.CsvWriter
	if opts.output == "" {
		wtr, err = writer.NewCsvWriter(stdout, wcfg)
	} else {
		wtr, err = writer.Open(wcfg)
	}
	if err != nil {
		return err
	}

	level.Debug(logger).Log(
		"msg", "starting join",
		"mode", opts.mode,
		"left", opts.input1, "left_columns", sel1,
		"right", opts.input2, "right_columns", sel2,
		"compression", compression,
	)

	j, err := join.New(join.Config{Mode: opts.mode, Logger: logger, Metrics: m}, left, right, wtr)
	if err != nil {
		_ = wtr.Close()
		return err
	}

	runErr := j.Run(ctx)
	if err := wtr.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// checkOutput rejects an output file that is also an input. Inputs are
// mapped, and truncating a mapped file faults the next read.
func checkOutput(output string, inputs ...string) error {
	if output == "" {
		return nil
	}
	out, err := os.Stat(output)
	if err != nil {
		// a missing output is created later; other errors surface from writer.Open
		return nil
	}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if os.SameFile(out, info) {
			return common.Usagef("Output file '%s' is also an input (%s).", output, in)
		}
	}
	return nil
}
