// Package lineitem defines the lineitem row layout used by the data generator,
// the reference engine and test fixtures, and writes it as parquet.
package lineitem

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Row is one lineitem record restricted to the columns the aggregation reads.
type Row struct {
	ReturnFlag    string  `parquet:"l_returnflag"`
	LineStatus    string  `parquet:"l_linestatus"`
	Quantity      float64 `parquet:"l_quantity"`
	ExtendedPrice float64 `parquet:"l_extendedprice"`
	Discount      float64 `parquet:"l_discount"`
	Tax           float64 `parquet:"l_tax"`
	ShipDate      int32   `parquet:"l_shipdate,date"`
}

// Days converts a calendar date to days since 1970-01-01.
func Days(year int, month time.Month, day int) int32 {
	return DaysOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DaysOf converts t to days since 1970-01-01 in UTC, ignoring the time of day.
func DaysOf(t time.Time) int32 {
	const day = 24 * 60 * 60
	secs := t.Unix()
	days := secs / day
	if secs%day < 0 {
		days--
	}
	return int32(days)
}

// Codec returns the writer option for a compression codec name.
// Supported names are zstd, snappy, gzip and none.
func Codec(name string) (parquet.WriterOption, error) {
	switch name {
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported compression codec %q", name)
	}
}

// File is a parquet file being written one row group at a time.
type File[T any] struct {
	f      *os.File
	writer *parquet.GenericWriter[T]
	groups int
}

// Create creates a new parquet file at path.
func Create[T any](path string, opts ...parquet.WriterOption) (*File[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &File[T]{f: f, writer: parquet.NewGenericWriter[T](f, opts...)}, nil
}

// WriteGroup writes rows as one row group. rows may be reused once it returns.
func (w *File[T]) WriteGroup(rows []T) error {
	i := w.groups
	w.groups++
	if _, err := w.writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write row group %d: %w", i, err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush row group %d: %w", i, err)
	}
	return nil
}

// Close writes the footer and closes the file.
func (w *File[T]) Close() error {
	if err := w.writer.Close(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return w.f.Close()
}

// Write writes each element of groups as its own row group of a new parquet
// file at path.
func Write[T any](path string, groups [][]T, opts ...parquet.WriterOption) error {
	w, err := Create[T](path, opts...)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := w.WriteGroup(group); err != nil {
			_ = w.f.Close()
			return err
		}
	}
	return w.Close()
}

// Chunk splits rows into row groups of at most size rows.
func Chunk[T any](rows []T, size int) [][]T {
	if size <= 0 || len(rows) <= size {
		return [][]T{rows}
	}
	groups := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		groups = append(groups, rows[start:end])
	}
	return groups
}
