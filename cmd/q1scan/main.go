// Command q1scan runs TPC-H Query 1 over lineitem parquet files on a single core.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vegasq/q1scan/internal/reference"
	"github.com/vegasq/q1scan/output"
	"github.com/vegasq/q1scan/query"
	"github.com/vegasq/q1scan/reader"
)

// verifyTolerance is the relative error allowed between the pipeline and the
// reference engine.
const verifyTolerance = 1e-9

type options struct {
	configFile string
	format     string
	outFile    string
	runs       int
	warmup     int
	verify     bool
	metricsOut string
	logLevel   string
	schema     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("q1scan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cfg query.Config
	cfg.RegisterFlagsAndApplyDefaults("", fs)

	var opts options
	fs.StringVar(&opts.configFile, "config", "", "YAML config file. Flags given on the command line take precedence.")
	fs.StringVar(&opts.format, "f", "table", "Output format: table, jsonl, csv, arrow")
	fs.StringVar(&opts.outFile, "o", "", "Write results to this file instead of stdout")
	fs.IntVar(&opts.runs, "runs", 1, "Number of timed runs; results of the last run are printed")
	fs.IntVar(&opts.warmup, "warmup", 0, "Number of untimed runs before the timed ones")
	fs.BoolVar(&opts.verify, "verify", false, "Check the result against the row-by-row reference engine")
	fs.StringVar(&opts.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file")
	fs.StringVar(&opts.logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.schema, "schema", false, "Show how the required columns are read instead of running the query")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: q1scan [options] <lineitem.parquet|glob> [more files...]\n\n")
		fmt.Fprintf(stderr, "Runs TPC-H Query 1 over lineitem parquet files.\n\n")
		fmt.Fprintf(stderr, "IMPORTANT: All flags must come BEFORE file arguments.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  q1scan lineitem.parquet\n")
		fmt.Fprintf(stderr, "  q1scan -f csv -o q1.csv 'data/lineitem-*.parquet'\n")
		fmt.Fprintf(stderr, "  q1scan -warmup 1 -runs 10 -timings lineitem.parquet\n")
		fmt.Fprintf(stderr, "  q1scan -threshold 1995-01-01 -verify lineitem.parquet\n")
		fmt.Fprintf(stderr, "  q1scan -schema lineitem.parquet\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// The config file overrides defaults; parsing again lets explicit flags
	// override the file.
	if opts.configFile != "" {
		if err := query.LoadConfig(opts.configFile, &cfg); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := fs.Parse(args); err != nil {
			return 1
		}
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(stderr, "Error: missing parquet file argument\n\n")
		fs.Usage()
		return 1
	}
	if opts.runs < 1 {
		fmt.Fprintf(stderr, "Error: -runs must be at least 1, got %d\n", opts.runs)
		return 1
	}
	if opts.warmup < 0 {
		fmt.Fprintf(stderr, "Error: -warmup must be non-negative, got %d\n", opts.warmup)
		return 1
	}

	logger, err := newLogger(stderr, opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var paths []string
	for _, arg := range fs.Args() {
		expanded, err := reader.ExpandPaths(arg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		paths = append(paths, expanded...)
	}

	if opts.schema {
		if len(paths) > 1 {
			fmt.Fprintf(stderr, "# Showing schema from: %s (%d files matched)\n", paths[0], len(paths))
		}
		if err := printSchema(stdout, paths[0], cfg.Columns, opts.format); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := execute(cfg, opts, paths, logger, stdout, stderr); err != nil {
		level.Error(logger).Log("msg", "query failed", "err", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func execute(cfg query.Config, opts options, paths []string, logger log.Logger, stdout, stderr io.Writer) error {
	formatter, err := output.New(opts.format, stdout)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := query.NewMetrics(reg)

	exec, err := query.NewExecutor(cfg, query.WithLogger(logger), query.WithMetrics(metrics))
	if err != nil {
		return err
	}

	if opts.warmup > 0 {
		warm, err := query.NewExecutor(cfg, query.WithLogger(level.NewFilter(logger, level.AllowWarn())))
		if err != nil {
			return err
		}
		for i := 0; i < opts.warmup; i++ {
			if _, err := warm.Execute(paths); err != nil {
				return err
			}
		}
	}

	durations := make([]time.Duration, 0, opts.runs)
	var res *query.Result
	for i := 0; i < opts.runs; i++ {
		start := time.Now()
		res, err = exec.Execute(paths)
		if err != nil {
			return err
		}
		durations = append(durations, time.Since(start))
	}

	if opts.verify {
		want, err := reference.Run(paths, cfg.Columns, cfg.Domain, cfg.ThresholdDays())
		if err != nil {
			return fmt.Errorf("failed to run reference engine: %w", err)
		}
		if err := reference.Compare(res.Rows, want, verifyTolerance); err != nil {
			return err
		}
		level.Info(logger).Log("msg", "result matches reference engine", "run_id", res.RunID, "groups", len(want))
	}

	if err := writeResults(formatter, opts.outFile, res.Rows); err != nil {
		return err
	}

	if opts.runs > 1 {
		printSummary(stderr, summarize(durations))
	}
	if cfg.Timings {
		printTimings(stderr, res.Stats)
	}

	if opts.metricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.metricsOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// writeResults formats rows to path, or to the formatter's writer when path
// is empty.
func writeResults(formatter output.Formatter, path string, rows []query.Row) error {
	if path == "" {
		if err := formatter.Format(rows); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	formatter.SetOutput(f)
	if err := formatter.Format(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("unsupported log level %q (supported: debug, info, warn, error)", lvl)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return level.NewFilter(logger, allow), nil
}
