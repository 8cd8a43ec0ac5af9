package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/q1scan/query"
)

var tableHeaders = []string{
	"returnflag", "linestatus", "sum_qty", "sum_base_price",
	"sum_disc_price", "sum_charge", "avg_qty", "avg_price",
	"avg_disc", "count",
}

// TableFormatter outputs rows as an aligned text table with two decimals.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format writes rows as a table
func (t *TableFormatter) Format(rows []query.Row) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(tableHeaders)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	align := make([]int, len(tableHeaders))
	for i := range align {
		align[i] = tablewriter.ALIGN_RIGHT
	}
	align[0], align[1] = tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT
	table.SetColumnAlignment(align)

	for _, row := range rows {
		table.Append(record(row, 2))
	}
	table.Render()
	return nil
}
