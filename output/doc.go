// Package output provides formatters for aggregation results.
//
// This package defines the Formatter interface and provides implementations
// for a text table, JSON Lines, CSV and Arrow IPC. All formatters work with
// the []query.Row returned by the executor, in the order given.
//
// # Supported Formats
//
//   - Table: aligned columns with two decimals, for terminals
//   - JSON Lines: One JSON object per line (suitable for streaming)
//   - CSV: Comma-separated values with header row
//   - Arrow: an IPC stream holding one record batch
//
// # Basic Usage
//
// Selecting a formatter by name:
//
//	formatter, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := formatter.Format(res.Rows); err != nil {
//	    log.Fatal(err)
//	}
//
// # Writing to Different Destinations
//
//	formatter := output.NewJSONFormatter(os.Stdout)
//
//	file, err := os.Create("q1.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//
//	formatter.SetOutput(file)
//
// # Column Names
//
// CSV, JSON and Arrow output use the TPC-H result names listed in Columns.
// The table keeps the shorter headers (returnflag, linestatus, ..., count).
// Floating point values are written in their shortest exact form except in
// the table.
package output
