package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vegasq/q1scan/internal/lineitem"
	"github.com/vegasq/q1scan/output"
	"github.com/vegasq/q1scan/query"
)

// createLineitemFile writes rows as a single row group and returns the path.
func createLineitemFile(t *testing.T, dir, filename string, rows []lineitem.Row) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, lineitem.Write(path, [][]lineitem.Row{rows}))
	return path
}

func scenarioRows(shipDate int32) []lineitem.Row {
	rows := make([]lineitem.Row, 10)
	for i := range rows {
		rows[i] = lineitem.Row{
			ReturnFlag:    "N",
			LineStatus:    "O",
			Quantity:      5,
			ExtendedPrice: 100,
			Discount:      0.1,
			Tax:           0.05,
			ShipDate:      shipDate,
		}
	}
	return rows
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_CSV(t *testing.T) {
	path := createLineitemFile(t, t.TempDir(), "lineitem.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))

	code, stdout, stderr := runCLI("-f", "csv", "-log.level", "error", path)
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "l_returnflag,l_linestatus,sum_qty"))
	require.True(t, strings.HasPrefix(lines[1], "N,O,50,1000,"), lines[1])
	require.True(t, strings.HasSuffix(lines[1], ",10"), lines[1])
}

func TestRun_Table(t *testing.T) {
	path := createLineitemFile(t, t.TempDir(), "lineitem.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))

	code, stdout, stderr := runCLI("-log.level", "error", path)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "returnflag")
	require.Contains(t, stdout, "945.00")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := createLineitemFile(t, dir, "lineitem.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))
	cfgPath := filepath.Join(dir, "q1scan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("threshold: 1997-12-31\n"), 0o644))

	t.Run("file applies", func(t *testing.T) {
		code, stdout, stderr := runCLI("-config", cfgPath, "-f", "csv", "-log.level", "error", path)
		require.Equal(t, 0, code, stderr)
		require.Equal(t, 1, strings.Count(stdout, "\n"), "only the header is expected")
	})

	t.Run("flag overrides file", func(t *testing.T) {
		code, stdout, stderr := runCLI("-config", cfgPath, "-threshold", "1998-09-02", "-f", "csv", "-log.level", "error", path)
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "N,O,50,")
	})

	t.Run("invalid file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("batch-size: 10\n"), 0o644))
		code, _, stderr := runCLI("-config", bad, path)
		require.Equal(t, 1, code)
		require.Contains(t, stderr, "Error:")
	})
}

func TestRun_VerifyRunsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	rows := lineitem.NewGenerator(7).Rows(5000)
	path := filepath.Join(dir, "lineitem.parquet")
	require.NoError(t, lineitem.Write(path, lineitem.Chunk(rows, 1000)))
	metricsPath := filepath.Join(dir, "metrics.prom")
	outPath := filepath.Join(dir, "q1.jsonl")

	code, stdout, stderr := runCLI(
		"-verify", "-warmup", "1", "-runs", "3", "-timings",
		"-batch-size", "333", "-f", "jsonl", "-o", outPath,
		"-metrics-out", metricsPath, path,
	)
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stdout)

	require.Contains(t, stderr, "result matches reference engine")
	require.Contains(t, stderr, "runs=3")
	require.Contains(t, stderr, "aggregate=")
	require.Contains(t, stderr, "rows_scanned=5000")

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(out), `"l_returnflag":"A"`)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(metrics), "q1scan_runs_total 3")
	require.Contains(t, string(metrics), "q1scan_rows_scanned_total 15000")
}

func TestRun_Schema(t *testing.T) {
	dir := t.TempDir()
	createLineitemFile(t, dir, "a.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))
	createLineitemFile(t, dir, "b.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))

	t.Run("csv", func(t *testing.T) {
		code, stdout, stderr := runCLI("-schema", "-f", "csv", filepath.Join(dir, "a.parquet"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "name,role,physical_type,logical_type,optional")
		require.Contains(t, stdout, "l_shipdate,date,INT32,DATE,false")
	})

	t.Run("glob", func(t *testing.T) {
		code, stdout, stderr := runCLI("-schema", "-f", "jsonl", filepath.Join(dir, "*.parquet"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stderr, "2 files matched")
		require.Equal(t, 7, strings.Count(stdout, "\n"))
	})

	t.Run("arrow is not a schema format", func(t *testing.T) {
		code, _, stderr := runCLI("-schema", "-f", "arrow", filepath.Join(dir, "a.parquet"))
		require.Equal(t, 1, code)
		require.Contains(t, stderr, "unsupported schema format")
	})
}

func TestRun_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := createLineitemFile(t, dir, "a.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))
	b := createLineitemFile(t, dir, "b.parquet", scenarioRows(lineitem.Days(1998, 2, 15)))

	code, stdout, stderr := runCLI("-f", "csv", "-log.level", "error", a, b)
	require.Equal(t, 0, code, stderr)
	require.True(t, strings.HasSuffix(strings.TrimSpace(stdout), ",20"), stdout)
}

func TestRun_Errors(t *testing.T) {
	path := createLineitemFile(t, t.TempDir(), "lineitem.parquet", scenarioRows(lineitem.Days(1998, 1, 15)))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", nil, "missing parquet file argument"},
		{"bad format", []string{"-f", "xml", path}, "unsupported format"},
		{"bad log level", []string{"-log.level", "loud", path}, "unsupported log level"},
		{"bad threshold", []string{"-threshold", "yesterday", path}, "Error:"},
		{"zero runs", []string{"-runs", "0", path}, "-runs must be at least 1"},
		{"negative warmup", []string{"-warmup", "-1", path}, "-warmup must be non-negative"},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.parquet")}, "Error:"},
		{"missing column", []string{"-columns.tax", "l_vat", path}, "l_vat"},
		{"unknown flag", []string{"-q", "select 1", path}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(tt.args...)
			require.Equal(t, 1, code)
			require.Contains(t, stderr, tt.want)
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI("-h")
	require.Equal(t, 0, code)
	require.Contains(t, stderr, "Usage: q1scan")
}

func TestSummarize(t *testing.T) {
	s := summarize([]time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 6 * time.Millisecond})
	require.Equal(t, 3, s.Runs)
	require.InDelta(t, 4.0, s.Mean, 1e-9)
	require.InDelta(t, 1.632993, s.Stddev, 1e-6)
	require.InDelta(t, 2.0, s.Min, 1e-9)
	require.InDelta(t, 6.0, s.Max, 1e-9)

	require.Equal(t, summary{}, summarize(nil))
}

func TestWriteResults(t *testing.T) {
	rows := []query.Row{{ReturnFlag: "N", LineStatus: "O", SumQty: 50, Count: 10}}

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "q1.csv")
		formatter, err := output.New("csv", io.Discard)
		require.NoError(t, err)

		require.NoError(t, writeResults(formatter, path, rows))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "N,O,50,")
	})

	t.Run("write failure is reported", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		formatter, err := output.New("csv", io.Discard)
		require.NoError(t, err)
		require.Error(t, writeResults(formatter, "/dev/full", rows))
	})

	t.Run("bad path", func(t *testing.T) {
		formatter, err := output.New("jsonl", io.Discard)
		require.NoError(t, err)
		err = writeResults(formatter, filepath.Join(t.TempDir(), "missing", "q1.jsonl"), rows)
		require.ErrorContains(t, err, "failed to create output file")
	})
}
