// Command lineitemgen writes a synthetic TPC-H lineitem parquet file for
// q1scan benchmarks and tests.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/q1scan/internal/lineitem"
)

type options struct {
	rows           int
	rowGroupRows   int
	seed           uint64
	codec          string
	sortByShipDate bool
	out            string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("lineitemgen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.IntVar(&opts.rows, "rows", 6_000_000, "Number of rows to generate")
	fs.IntVar(&opts.rowGroupRows, "row-group-rows", 1<<20, "Rows per row group")
	fs.Uint64Var(&opts.seed, "seed", 1, "Random seed")
	fs.StringVar(&opts.codec, "codec", "zstd", "Compression codec: zstd, snappy, gzip, none")
	fs.BoolVar(&opts.sortByShipDate, "sort-by-shipdate", false, "Sort rows by ship date so row groups cover disjoint date ranges")
	fs.StringVar(&opts.out, "o", "lineitem.parquet", "Output file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if err := generate(opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level.Info(logger).Log("msg", "generated lineitem file", "path", opts.out, "rows", opts.rows,
		"row_group_rows", opts.rowGroupRows, "codec", opts.codec, "seed", opts.seed)
	return 0
}

func generate(opts options) error {
	if opts.rows < 0 {
		return fmt.Errorf("-rows must be non-negative, got %d", opts.rows)
	}
	if opts.rowGroupRows < 1 {
		return fmt.Errorf("-row-group-rows must be at least 1, got %d", opts.rowGroupRows)
	}

	codec, err := lineitem.Codec(opts.codec)
	if err != nil {
		return err
	}
	var writerOpts []parquet.WriterOption
	if codec != nil {
		writerOpts = append(writerOpts, codec)
	}

	gen := lineitem.NewGenerator(opts.seed)

	// Sorting needs every row; otherwise only one row group is held at a time.
	if opts.sortByShipDate {
		rows := gen.Rows(opts.rows)
		slices.SortStableFunc(rows, func(a, b lineitem.Row) int {
			return int(a.ShipDate) - int(b.ShipDate)
		})
		return lineitem.Write(opts.out, lineitem.Chunk(rows, opts.rowGroupRows), writerOpts...)
	}

	w, err := lineitem.Create[lineitem.Row](opts.out, writerOpts...)
	if err != nil {
		return err
	}
	buf := make([]lineitem.Row, min(opts.rowGroupRows, opts.rows))
	for left := opts.rows; left > 0; left -= len(buf) {
		buf = buf[:min(len(buf), left)]
		gen.Fill(buf)
		if err := w.WriteGroup(buf); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
