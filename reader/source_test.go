package reader

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/vegasq/q1scan/internal/lineitem"
)

// threshold is 1998-09-02, the TPC-H Q1 cutoff.
var threshold = lineitem.Days(1998, 9, 2)

// drain reads every batch from src and returns copies of its columns.
func drain(t *testing.T, src *BatchSource) (sizes []int, quantity []float64, shipDate []int32, flags []byte) {
	t.Helper()
	for {
		b, err := src.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if len(b.ReturnFlag) != b.Len || len(b.Tax) != b.Len || len(b.ShipDate) != b.Len {
			t.Fatalf("batch columns not aligned to Len %d", b.Len)
		}
		sizes = append(sizes, b.Len)
		quantity = append(quantity, b.Quantity...)
		shipDate = append(shipDate, b.ShipDate...)
		flags = append(flags, b.ReturnFlag...)
	}
}

func TestBatchSource_BatchesFollowRowGroups(t *testing.T) {
	tmpDir := t.TempDir()
	rows := sampleRows(30, 9000)
	path := writeTestFile(t, tmpDir, "lineitem.parquet", lineitem.Chunk(rows, 10)...)

	src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{BatchSize: 4, Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	sizes, quantity, shipDate, flags := drain(t, src)

	wantSizes := []int{4, 4, 2, 4, 4, 2, 4, 4, 2}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("got %d batches %v, want %v", len(sizes), sizes, wantSizes)
	}
	for i := range wantSizes {
		if sizes[i] != wantSizes[i] {
			t.Errorf("batch %d has %d rows, want %d", i, sizes[i], wantSizes[i])
		}
	}

	for i, row := range rows {
		if quantity[i] != row.Quantity {
			t.Errorf("row %d quantity = %v, want %v", i, quantity[i], row.Quantity)
		}
		if shipDate[i] != row.ShipDate {
			t.Errorf("row %d ship date = %d, want %d", i, shipDate[i], row.ShipDate)
		}
		if flags[i] != 'N' {
			t.Errorf("row %d return flag = %q, want 'N'", i, flags[i])
		}
	}

	// A drained source keeps reporting EOF.
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after EOF error = %v, want io.EOF", err)
	}

	stats := src.Stats()
	if stats.Files != 1 || stats.ChunksTotal != 3 || stats.ChunksPruned != 0 || stats.RowsDecoded != 30 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestBatchSource_Pruning(t *testing.T) {
	tmpDir := t.TempDir()
	early := sampleRows(10, lineitem.Days(1995, 1, 1))
	late := sampleRows(7, lineitem.Days(1999, 1, 1))
	path := writeTestFile(t, tmpDir, "lineitem.parquet", early, late, early)

	tests := []struct {
		name        string
		disable     bool
		wantPruned  int
		wantDecoded int64
		wantSkipped int64
	}{
		{name: "pruning enabled", wantPruned: 1, wantDecoded: 20, wantSkipped: 7},
		{name: "pruning disabled", disable: true, wantPruned: 0, wantDecoded: 27, wantSkipped: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{
				Threshold:      threshold,
				DisablePruning: tt.disable,
			})
			if err != nil {
				t.Fatalf("NewBatchSource() error = %v", err)
			}
			defer src.Close()

			_, _, shipDate, _ := drain(t, src)
			if int64(len(shipDate)) != tt.wantDecoded {
				t.Errorf("decoded %d rows, want %d", len(shipDate), tt.wantDecoded)
			}

			stats := src.Stats()
			if stats.ChunksTotal != 3 {
				t.Errorf("ChunksTotal = %d, want 3", stats.ChunksTotal)
			}
			if stats.ChunksPruned != tt.wantPruned {
				t.Errorf("ChunksPruned = %d, want %d", stats.ChunksPruned, tt.wantPruned)
			}
			if stats.RowsSkipped != tt.wantSkipped {
				t.Errorf("RowsSkipped = %d, want %d", stats.RowsSkipped, tt.wantSkipped)
			}
			if stats.RowsDecoded != tt.wantDecoded {
				t.Errorf("RowsDecoded = %d, want %d", stats.RowsDecoded, tt.wantDecoded)
			}
		})
	}
}

func TestBatchSource_BoundaryRowGroupIsKept(t *testing.T) {
	tmpDir := t.TempDir()
	rows := sampleRows(1, threshold)
	path := writeTestFile(t, tmpDir, "edge.parquet", rows)

	src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	_, _, shipDate, _ := drain(t, src)
	if len(shipDate) != 1 || shipDate[0] != threshold {
		t.Errorf("ship dates = %v, want [%d]", shipDate, threshold)
	}
}

type nullableRow struct {
	ReturnFlag    *string `parquet:"l_returnflag,optional"`
	LineStatus    string  `parquet:"l_linestatus"`
	Quantity      float64 `parquet:"l_quantity"`
	ExtendedPrice float64 `parquet:"l_extendedprice"`
	Discount      float64 `parquet:"l_discount"`
	Tax           float64 `parquet:"l_tax"`
	ShipDate      *int32  `parquet:"l_shipdate,optional"`
}

func TestBatchSource_NullShipDates(t *testing.T) {
	date := lineitem.Days(1996, 3, 13)
	flag := "R"
	rows := []nullableRow{
		{ReturnFlag: &flag, LineStatus: "F", Quantity: 1, ShipDate: &date},
		{ReturnFlag: nil, LineStatus: "F", Quantity: 2, ShipDate: nil},
		{ReturnFlag: &flag, LineStatus: "F", Quantity: 3, ShipDate: &date},
	}

	tmpDir := t.TempDir()
	path := writeTestFile(t, tmpDir, "nullable.parquet", rows)

	src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	b, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b.Len != 3 {
		t.Fatalf("batch Len = %d, want 3", b.Len)
	}
	if b.ShipDateNulls == nil {
		t.Fatal("ShipDateNulls = nil, want a null bitmap")
	}
	wantNulls := []bool{false, true, false}
	for i, want := range wantNulls {
		if b.ShipDateNulls[i] != want {
			t.Errorf("ShipDateNulls[%d] = %v, want %v", i, b.ShipDateNulls[i], want)
		}
	}
	if b.ShipDate[0] != date || b.ShipDate[2] != date {
		t.Errorf("ShipDate = %v, want non-null rows at %d", b.ShipDate, date)
	}
	if b.ReturnFlag[1] != 0 {
		t.Errorf("null return flag decoded as %q, want 0", b.ReturnFlag[1])
	}
	if b.Quantity[1] != 2 {
		t.Errorf("Quantity[1] = %v, want 2", b.Quantity[1])
	}
}

func TestBatchSource_AllNullRowGroupIsPruned(t *testing.T) {
	date := lineitem.Days(1994, 6, 1)
	withDates := []nullableRow{{LineStatus: "F", ShipDate: &date}, {LineStatus: "F", ShipDate: &date}}
	noDates := []nullableRow{{LineStatus: "O"}, {LineStatus: "O"}, {LineStatus: "O"}}

	tmpDir := t.TempDir()
	path := writeTestFile(t, tmpDir, "nulls.parquet", withDates, noDates)

	src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	_, _, shipDate, _ := drain(t, src)
	if len(shipDate) != 2 {
		t.Errorf("decoded %d rows, want 2", len(shipDate))
	}
	if stats := src.Stats(); stats.ChunksPruned != 1 || stats.RowsSkipped != 3 {
		t.Errorf("Stats() = %+v, want one pruned row group of 3 rows", stats)
	}
}

func TestBatchSource_DecimalMeasures(t *testing.T) {
	type decimalRow struct {
		ReturnFlag    string `parquet:"l_returnflag"`
		LineStatus    string `parquet:"l_linestatus"`
		Quantity      int64  `parquet:"l_quantity,decimal(2:15)"`
		ExtendedPrice int64  `parquet:"l_extendedprice,decimal(2:15)"`
		Discount      int64  `parquet:"l_discount,decimal(2:15)"`
		Tax           int64  `parquet:"l_tax,decimal(2:15)"`
		ShipDate      int32  `parquet:"l_shipdate,date"`
	}

	tmpDir := t.TempDir()
	path := writeTestFile(t, tmpDir, "decimal.parquet", []decimalRow{
		{"A", "F", 1700, 2456789, 4, 2, lineitem.Days(1993, 5, 1)},
	})

	src, err := NewBatchSource([]string{path}, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	b, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	want := map[string][2]float64{
		"quantity":       {b.Quantity[0], 17},
		"extended_price": {b.ExtendedPrice[0], 24567.89},
		"discount":       {b.Discount[0], 0.04},
		"tax":            {b.Tax[0], 0.02},
	}
	for name, got := range want {
		if math.Abs(got[0]-got[1]) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got[0], got[1])
		}
	}
}

func TestBatchSource_MultipleFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, tmpDir, "part-0.parquet", sampleRows(5, 9000))
	writeTestFile(t, tmpDir, "part-1.parquet", sampleRows(6, lineitem.Days(1999, 1, 1)))
	writeTestFile(t, tmpDir, "part-2.parquet", sampleRows(7, 9100))

	paths, err := ExpandPaths(filepath.Join(tmpDir, "part-*.parquet"))
	if err != nil {
		t.Fatalf("ExpandPaths() error = %v", err)
	}

	src, err := NewBatchSource(paths, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	_, _, shipDate, _ := drain(t, src)
	if len(shipDate) != 12 {
		t.Errorf("decoded %d rows, want 12", len(shipDate))
	}
	if shipDate[5] != 9100 {
		t.Errorf("first row of third file has ship date %d, want 9100", shipDate[5])
	}

	stats := src.Stats()
	if stats.Files != 3 || stats.ChunksPruned != 1 {
		t.Errorf("Stats() = %+v, want 3 files and 1 pruned row group", stats)
	}
}

func TestBatchSource_SchemaErrorInLaterFile(t *testing.T) {
	type otherRow struct {
		ID int64 `parquet:"id"`
	}

	tmpDir := t.TempDir()
	first := writeTestFile(t, tmpDir, "a.parquet", sampleRows(2, 9000))
	second := writeTestFile(t, tmpDir, "b.parquet", []otherRow{{ID: 1}})

	src, err := NewBatchSource([]string{first, second}, DefaultColumnSpec(), SourceOptions{Threshold: threshold})
	if err != nil {
		t.Fatalf("NewBatchSource() error = %v", err)
	}
	defer src.Close()

	if _, err := src.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err = src.Next()
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Next() error = %v, want ErrSchema", err)
	}
}

func TestNewBatchSource_Errors(t *testing.T) {
	if _, err := NewBatchSource(nil, DefaultColumnSpec(), SourceOptions{}); !errors.Is(err, ErrOpen) {
		t.Errorf("NewBatchSource(nil) error = %v, want ErrOpen", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.parquet")
	if _, err := NewBatchSource([]string{missing}, DefaultColumnSpec(), SourceOptions{}); !errors.Is(err, ErrOpen) {
		t.Errorf("NewBatchSource(missing) error = %v, want ErrOpen", err)
	}
}
