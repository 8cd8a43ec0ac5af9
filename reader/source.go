package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// PruneReason records why a row group was skipped without decoding.
type PruneReason string

const (
	// PruneMinAboveThreshold means the smallest ship date exceeds the threshold.
	PruneMinAboveThreshold PruneReason = "min_above_threshold"
	// PruneAllNull means every ship date in the row group is null.
	PruneAllNull PruneReason = "all_null"
)

// SourceOptions configures a BatchSource.
type SourceOptions struct {
	// BatchSize is the number of rows per batch. Default: DefaultBatchSize.
	BatchSize int

	// Threshold is the inclusive upper bound on the ship date, in days since
	// epoch. Row groups whose minimum ship date is above it are skipped.
	Threshold int32

	// DisablePruning decodes every row group regardless of statistics.
	DisablePruning bool

	Logger log.Logger
}

// SourceStats counts the work done by a BatchSource.
type SourceStats struct {
	Files        int
	ChunksTotal  int
	ChunksPruned int
	RowsSkipped  int64
	RowsDecoded  int64
}

// BatchSource yields the projected lineitem columns of one or more parquet
// files as a finite, non-restartable sequence of batches.
type BatchSource struct {
	paths  []string
	spec   ColumnSpec
	opts   SourceOptions
	logger log.Logger

	fileIdx   int
	reader    *Reader
	bound     [numColumns]boundColumn
	rowGroups []parquet.RowGroup
	rgIdx     int

	cursors    [numColumns]columnCursor
	inRowGroup bool
	remaining  int64

	batch   *Batch
	scratch []parquet.Value
	stats   SourceStats
	done    bool
}

// NewBatchSource creates a source over paths. The first file is opened and
// its schema checked immediately so configuration errors surface before any
// batch is requested; later files are opened as the scan reaches them.
func NewBatchSource(paths []string, spec ColumnSpec, opts SourceOptions) (*BatchSource, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no dataset files given", ErrOpen)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &BatchSource{
		paths:   paths,
		spec:    spec,
		opts:    opts,
		logger:  logger,
		batch:   newBatch(opts.BatchSize),
		scratch: make([]parquet.Value, min(opts.BatchSize, 1024)),
	}

	if err := s.openNextFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// Next returns the next batch, or io.EOF once every file is exhausted.
//
// The returned batch is only valid until the following call to Next.
func (s *BatchSource) Next() (*Batch, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		if s.inRowGroup {
			if s.remaining > 0 {
				return s.readBatch()
			}
			if err := s.closeRowGroup(); err != nil {
				return nil, err
			}
		}

		if s.reader != nil && s.rgIdx < len(s.rowGroups) {
			s.openRowGroup()
			continue
		}

		if err := s.closeFile(); err != nil {
			return nil, err
		}
		if s.fileIdx >= len(s.paths) {
			s.done = true
			return nil, io.EOF
		}
		if err := s.openNextFile(); err != nil {
			return nil, err
		}
	}
}

// Stats returns the counters accumulated so far.
func (s *BatchSource) Stats() SourceStats {
	return s.stats
}

// Close releases the open file and any page buffers.
func (s *BatchSource) Close() error {
	s.done = true
	err := s.closeRowGroup()
	if closeErr := s.closeFile(); err == nil {
		err = closeErr
	}
	return err
}

func (s *BatchSource) openNextFile() error {
	path := s.paths[s.fileIdx]
	s.fileIdx++

	r, err := NewReader(path)
	if err != nil {
		return err
	}

	bound, err := bindColumns(r.Schema(), s.spec, path)
	if err != nil {
		_ = r.Close()
		return err
	}

	s.reader = r
	s.bound = bound
	s.rowGroups = r.File().RowGroups()
	s.rgIdx = 0
	s.stats.Files++

	level.Debug(s.logger).Log("msg", "opened dataset file", "file", path, "rows", r.NumRows(), "row_groups", len(s.rowGroups))
	return nil
}

func (s *BatchSource) closeFile() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	s.rowGroups = nil
	if err != nil {
		return fmt.Errorf("%w: failed to close file: %w", ErrRead, err)
	}
	return nil
}

// openRowGroup advances to the next row group, skipping it when its
// statistics prove no row can pass the date predicate.
func (s *BatchSource) openRowGroup() {
	idx := s.rgIdx
	rg := s.rowGroups[idx]
	s.rgIdx++
	s.stats.ChunksTotal++

	numRows := rg.NumRows()
	if numRows == 0 {
		return
	}

	if !s.opts.DisablePruning {
		if reason, minDate, pruned := s.pruneDecision(rg, idx); pruned {
			s.stats.ChunksPruned++
			s.stats.RowsSkipped += numRows
			level.Debug(s.logger).Log("msg", "pruned row group", "file", s.reader.Path(), "row_group", idx,
				"reason", reason, "min_date", FormatDate(minDate), "threshold", FormatDate(s.opts.Threshold), "rows", numRows)
			return
		}
	}

	chunks := rg.ColumnChunks()
	for i := range s.cursors {
		s.cursors[i].open(chunks[s.bound[i].index], s.bound[i], i)
	}
	s.inRowGroup = true
	s.remaining = numRows
}

func (s *BatchSource) closeRowGroup() error {
	if !s.inRowGroup {
		return nil
	}
	s.inRowGroup = false
	s.remaining = 0

	var firstErr error
	for i := range s.cursors {
		if err := s.cursors[i].close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: failed to close column %q: %w", ErrRead, s.bound[i].name, err)
		}
	}
	return firstErr
}

func (s *BatchSource) readBatch() (*Batch, error) {
	n := s.opts.BatchSize
	if int64(n) > s.remaining {
		n = int(s.remaining)
	}

	s.batch.reset(n)
	for i := range s.cursors {
		if err := s.cursors[i].fill(s.batch, n, s.scratch); err != nil {
			return nil, fmt.Errorf("%s row group %d: %w", s.reader.Path(), s.rgIdx-1, err)
		}
	}

	s.remaining -= int64(n)
	s.stats.RowsDecoded += int64(n)
	return s.batch, nil
}

// pruneDecision inspects ship date statistics for the row group. The page
// index is preferred; column chunk statistics are the fallback. Without either
// the row group is always decoded.
func (s *BatchSource) pruneDecision(rg parquet.RowGroup, idx int) (PruneReason, int32, bool) {
	col := s.bound[colShipDate]

	minDate, allNull, ok := pageIndexMin(rg.ColumnChunks()[col.index], col.kind)
	if !ok {
		minDate, allNull, ok = chunkStatisticsMin(s.reader.File().Metadata(), idx, col)
	}
	if !ok {
		return "", 0, false
	}

	switch {
	case allNull:
		return PruneAllNull, 0, true
	case minDate > s.opts.Threshold:
		return PruneMinAboveThreshold, minDate, true
	default:
		return "", minDate, false
	}
}

// pageIndexMin returns the minimum over the non-null pages of a column chunk.
func pageIndexMin(cc parquet.ColumnChunk, kind parquet.Kind) (minDate int32, allNull bool, ok bool) {
	index, err := cc.ColumnIndex()
	if err != nil || index == nil || index.NumPages() == 0 {
		return 0, false, false
	}

	found := false
	for p := 0; p < index.NumPages(); p++ {
		if index.NullPage(p) {
			continue
		}
		v := index.MinValue(p)
		if v.IsNull() {
			// A page without a recorded minimum makes the chunk minimum unknown.
			return 0, false, false
		}
		d := dateValue(v, kind)
		if !found || d < minDate {
			minDate = d
		}
		found = true
	}
	if !found {
		return 0, true, true
	}
	return minDate, false, true
}

// chunkStatisticsMin reads the plain-encoded minimum from the column chunk
// metadata of row group idx.
func chunkStatisticsMin(md *format.FileMetaData, idx int, col boundColumn) (minDate int32, allNull bool, ok bool) {
	if md == nil || idx >= len(md.RowGroups) || col.index >= len(md.RowGroups[idx].Columns) {
		return 0, false, false
	}
	meta := md.RowGroups[idx].Columns[col.index].MetaData
	stats := meta.Statistics

	if meta.NumValues > 0 && stats.NullCount == meta.NumValues {
		return 0, true, true
	}

	raw := stats.MinValue
	if len(raw) == 0 {
		raw = stats.Min
	}
	switch {
	case col.kind == parquet.Int32 && len(raw) == 4:
		return int32(binary.LittleEndian.Uint32(raw)), false, true
	case col.kind == parquet.Int64 && len(raw) == 8:
		return int32(int64(binary.LittleEndian.Uint64(raw))), false, true
	default:
		return 0, false, false
	}
}

// IsClassified reports whether err belongs to one of the reader error classes.
func IsClassified(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrSchema) || errors.Is(err, ErrRead)
}
