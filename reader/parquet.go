// Package reader provides functionality for reading lineitem data from Apache
// Parquet files.
//
// It uses the parquet-go library to open files, bind the columns a query needs
// and stream them as fixed-size column batches.
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"
)

var (
	// ErrOpen classifies failures to open, stat or parse a dataset file.
	ErrOpen = errors.New("cannot open dataset")

	// ErrRead classifies failures while decoding pages of an opened file.
	ErrRead = errors.New("cannot read dataset")
)

// maxFiles bounds the number of files a glob pattern may expand to.
const maxFiles = 1000

// Reader holds an open parquet file.
//
// It maintains both an OS file handle and a parquet file handle to enable
// proper resource cleanup.
type Reader struct {
	path   string
	file   *os.File
	pqFile *parquet.File
}

// NewReader creates a new parquet reader for the specified file path.
//
// The file is opened and validated as a parquet file. Returns an error
// matching ErrOpen if the file doesn't exist or is not a valid parquet file.
//
// Example:
//
//	reader, err := NewReader("lineitem.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", ErrOpen, err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: failed to stat file: %w", ErrOpen, err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: failed to open parquet file %s: %w", ErrOpen, path, err)
	}

	return &Reader{
		path:   path,
		file:   file,
		pqFile: pqFile,
	}, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// File returns the underlying parquet file.
func (r *Reader) File() *parquet.File {
	return r.pqFile
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.pqFile.NumRows()
}

// ForEachRow reads the file row by row and calls fn with every row decoded
// into a map keyed by column name. The map is reused between calls.
//
// This is the slow path: every column of every row is materialized. It exists
// for verification and tooling, not for the aggregation itself.
func (r *Reader) ForEachRow(fn func(row map[string]interface{}) error) error {
	rows := parquet.NewReader(r.pqFile)
	defer func() { _ = rows.Close() }()

	row := make(map[string]interface{})
	for {
		clear(row)
		err := rows.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: failed to read row: %w", ErrRead, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Close closes the parquet reader and releases associated resources.
//
// It is safe to call Close multiple times.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ExpandPaths resolves a dataset argument into the list of files to scan.
//
// A plain path is returned as is. A pattern containing glob wildcards is
// expanded and the matches are sorted so that scans are deterministic:
//   - "data/*.parquet" - all parquet files in data directory
//   - "data/lineitem-*.parquet" - files starting with lineitem- in data directory
//
// Returns an error if no files match the pattern or it matches more than 1000
// files.
func ExpandPaths(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[]") {
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid glob pattern: %w", ErrOpen, err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no files match pattern: %s", ErrOpen, pattern)
	}

	if len(matches) > maxFiles {
		return nil, fmt.Errorf("%w: glob pattern matched too many files (%d), maximum is %d", ErrOpen, len(matches), maxFiles)
	}

	sort.Strings(matches)
	return matches, nil
}
