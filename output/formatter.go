// Package output provides formatters for aggregation results.
//
// Currently supported formats:
//   - Table: aligned text table, as printed by the CLI
//   - JSON Lines: One JSON object per line
//   - CSV: Comma-separated values with header row
//   - Arrow: Arrow IPC stream with one record batch
//
// Example usage:
//
//	formatter := output.NewJSONFormatter(os.Stdout)
//	if err := formatter.Format(res.Rows); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/vegasq/q1scan/query"
)

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to convert rows to the target format
// and SetOutput to change the output destination.
type Formatter interface {
	// Format writes rows in the formatter's specific format
	Format(rows []query.Row) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Columns are the result column names in output order.
var Columns = []string{
	"l_returnflag", "l_linestatus",
	"sum_qty", "sum_base_price", "sum_disc_price", "sum_charge",
	"avg_qty", "avg_price", "avg_disc", "count_order",
}

// New returns the formatter registered under name.
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "table":
		return NewTableFormatter(w), nil
	case "jsonl", "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "arrow":
		return NewArrowFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: table, jsonl, csv, arrow)", name)
	}
}

// measures returns the float columns of r in Columns order.
func measures(r query.Row) [7]float64 {
	return [7]float64{r.SumQty, r.SumBasePrice, r.SumDiscPrice, r.SumCharge, r.AvgQty, r.AvgPrice, r.AvgDisc}
}

// record renders r as strings, formatting floats with prec digits after the
// decimal point, or the shortest exact form when prec is negative.
func record(r query.Row, prec int) []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.ReturnFlag, r.LineStatus)
	for _, v := range measures(r) {
		out = append(out, strconv.FormatFloat(v, 'f', prec, 64))
	}
	return append(out, strconv.FormatUint(r.Count, 10))
}
