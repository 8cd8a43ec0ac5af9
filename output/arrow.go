package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/q1scan/query"
)

// ArrowSchema is the Arrow schema of a result record.
var ArrowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "l_returnflag", Type: arrow.BinaryTypes.String},
	{Name: "l_linestatus", Type: arrow.BinaryTypes.String},
	{Name: "sum_qty", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sum_base_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sum_disc_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sum_charge", Type: arrow.PrimitiveTypes.Float64},
	{Name: "avg_qty", Type: arrow.PrimitiveTypes.Float64},
	{Name: "avg_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "avg_disc", Type: arrow.PrimitiveTypes.Float64},
	{Name: "count_order", Type: arrow.PrimitiveTypes.Uint64},
}, nil)

// ArrowFormatter outputs rows as an Arrow IPC stream.
type ArrowFormatter struct {
	writer io.Writer
	mem    memory.Allocator
}

// NewArrowFormatter creates a new Arrow IPC stream formatter
func NewArrowFormatter(w io.Writer) *ArrowFormatter {
	return &ArrowFormatter{writer: w, mem: memory.DefaultAllocator}
}

// SetOutput sets the output writer
func (a *ArrowFormatter) SetOutput(w io.Writer) {
	a.writer = w
}

// Format writes rows as a single record batch
func (a *ArrowFormatter) Format(rows []query.Row) error {
	record := ToArrow(rows, a.mem)
	defer record.Release()

	w := ipc.NewWriter(a.writer, ipc.WithSchema(ArrowSchema), ipc.WithAllocator(a.mem))
	if err := w.Write(record); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}

// ToArrow converts rows to an Arrow record.
// The caller is responsible for calling Release() on the returned Record.
func ToArrow(rows []query.Row, mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	builder := array.NewRecordBuilder(mem, ArrowSchema)
	defer builder.Release()

	flags := builder.Field(0).(*array.StringBuilder)
	statuses := builder.Field(1).(*array.StringBuilder)
	counts := builder.Field(9).(*array.Uint64Builder)

	for _, r := range rows {
		flags.Append(r.ReturnFlag)
		statuses.Append(r.LineStatus)
		for i, v := range measures(r) {
			builder.Field(2 + i).(*array.Float64Builder).Append(v)
		}
		counts.Append(r.Count)
	}

	return builder.NewRecord()
}
