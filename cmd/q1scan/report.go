package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/q1scan/query"
	"github.com/vegasq/q1scan/reader"
)

var schemaHeaders = []string{"name", "role", "physical_type", "logical_type", "optional"}

// printSchema writes how each required column of the file at path is read.
func printSchema(w io.Writer, path string, spec reader.ColumnSpec, format string) error {
	infos, err := reader.DescribeColumns(path, spec)
	if err != nil {
		return err
	}

	switch format {
	case "table":
		table := tablewriter.NewWriter(w)
		table.SetHeader(schemaHeaders)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		for _, info := range infos {
			table.Append(schemaRecord(info))
		}
		table.Render()
		return nil
	case "jsonl", "json":
		enc := json.NewEncoder(w)
		for _, info := range infos {
			if err := enc.Encode(info); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(schemaHeaders); err != nil {
			return err
		}
		for _, info := range infos {
			if err := cw.Write(schemaRecord(info)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported schema format: %s (supported: table, jsonl, csv)", format)
	}
}

func schemaRecord(info reader.SchemaInfo) []string {
	return []string{info.Name, info.Role, info.PhysicalType, info.LogicalType, strconv.FormatBool(info.Optional)}
}

// summary holds wall-clock statistics over repeated runs, in milliseconds.
type summary struct {
	Runs   int
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
}

func summarize(durations []time.Duration) summary {
	s := summary{Runs: len(durations)}
	if len(durations) == 0 {
		return s
	}

	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	var sum float64
	for _, d := range durations {
		ms := float64(d) / float64(time.Millisecond)
		sum += ms
		s.Min = math.Min(s.Min, ms)
		s.Max = math.Max(s.Max, ms)
	}
	s.Mean = sum / float64(len(durations))

	var sq float64
	for _, d := range durations {
		diff := float64(d)/float64(time.Millisecond) - s.Mean
		sq += diff * diff
	}
	s.Stddev = math.Sqrt(sq / float64(len(durations)))
	return s
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "runs=%d mean=%.3fms stddev=%.3fms min=%.3fms max=%.3fms\n",
		s.Runs, s.Mean, s.Stddev, s.Min, s.Max)
}

func printTimings(w io.Writer, s query.Stats) {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

	fmt.Fprintf(w, "files=%d row_groups=%d pruned=%d rows_skipped=%d\n",
		s.Files, s.ChunksTotal, s.ChunksPruned, s.RowsSkipped)
	fmt.Fprintf(w, "batches=%d skipped=%d rows_scanned=%d rows_matched=%d\n",
		s.Batches, s.BatchesSkipped, s.RowsScanned, s.RowsMatched)
	fmt.Fprintf(w, "read=%.3fms filter=%.3fms aggregate=%.3fms finalize=%.3fms total=%.3fms\n",
		ms(s.ReadTime), ms(s.FilterTime), ms(s.AggregateTime), ms(s.FinalizeTime), ms(s.TotalTime))
}
