package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/vegasq/q1scan/query"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes rows as CSV. The header is written even when rows is empty.
func (c *CSVFormatter) Format(rows []query.Row) error {
	csvWriter := csv.NewWriter(c.writer)

	if err := csvWriter.Write(Columns); err != nil {
		return err
	}

	for _, row := range rows {
		rec := record(row, -1)
		rec[0] = sanitize(rec[0])
		rec[1] = sanitize(rec[1])
		if err := csvWriter.Write(rec); err != nil {
			return err
		}
	}

	// Flush and check for errors
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return nil
}

// sanitize guards group keys against CSV injection by prefixing characters
// that could trigger formula execution in spreadsheet applications.
func sanitize(val string) string {
	if len(val) > 0 {
		switch val[0] {
		case '=', '+', '-', '@', '\t', '\r', '\n', '|':
			return "'" + strings.ReplaceAll(val, "'", "''")
		}
	}
	return val
}
