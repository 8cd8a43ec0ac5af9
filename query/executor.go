package query

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/vegasq/q1scan/reader"
)

// BatchReader yields batches until io.EOF.
type BatchReader interface {
	Next() (*reader.Batch, error)
}

// sourceStatser is implemented by readers that track row group pruning.
type sourceStatser interface {
	Stats() reader.SourceStats
}

// Stats describes one run. Stage timings are only filled when
// Config.Timings is set; they never influence the result.
type Stats struct {
	Files          int
	ChunksTotal    int
	ChunksPruned   int
	RowsSkipped    int64
	Batches        int
	BatchesSkipped int
	RowsScanned    int64
	RowsMatched    int64

	ReadTime      time.Duration
	FilterTime    time.Duration
	AggregateTime time.Duration
	FinalizeTime  time.Duration
	TotalTime     time.Duration
}

// Result is the output of one run.
type Result struct {
	RunID uuid.UUID
	Rows  []Row
	Stats Stats
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics makes the executor update m after every run.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// Executor drives the pipeline: batches are filtered, batches without a
// single match are skipped, the rest are aggregated, and the groups are
// finalized once the input is exhausted.
//
// An Executor is not safe for concurrent use. It may run many times; each run
// starts from zeroed accumulators.
type Executor struct {
	cfg       Config
	predicate Predicate
	agg       *Aggregator
	mask      *Mask

	logger  log.Logger
	metrics *Metrics
}

// NewExecutor validates cfg and returns an executor for it.
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Executor{
		cfg:       cfg,
		predicate: Predicate{Threshold: cfg.ThresholdDays()},
		agg:       NewAggregator(cfg.Domain),
		mask:      NewMask(cfg.BatchSize),
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs the aggregation over the parquet files at paths, in order.
func (e *Executor) Execute(paths []string) (*Result, error) {
	runID := uuid.New()
	logger := log.With(e.logger, "run_id", runID)

	src, err := reader.NewBatchSource(paths, e.cfg.Columns, reader.SourceOptions{
		BatchSize:      e.cfg.BatchSize,
		Threshold:      e.predicate.Threshold,
		DisablePruning: e.cfg.DisablePruning,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	res, err := e.run(runID, logger, src)
	if closeErr := src.Close(); err == nil && closeErr != nil {
		return nil, closeErr
	}
	return res, err
}

// Run aggregates every batch src yields. src is not closed.
func (e *Executor) Run(src BatchReader) (*Result, error) {
	runID := uuid.New()
	return e.run(runID, log.With(e.logger, "run_id", runID), src)
}

func (e *Executor) run(runID uuid.UUID, logger log.Logger, src BatchReader) (*Result, error) {
	var stats Stats
	timed := e.cfg.Timings
	start := time.Now()

	e.agg.Reset()

	for {
		t := e.stamp()
		b, err := src.Next()
		if timed {
			stats.ReadTime += time.Since(t)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		stats.Batches++
		stats.RowsScanned += int64(b.Len)

		t = e.stamp()
		e.predicate.Evaluate(b, e.mask)
		if timed {
			stats.FilterTime += time.Since(t)
		}

		if e.mask.Count == 0 {
			stats.BatchesSkipped++
			continue
		}
		stats.RowsMatched += int64(e.mask.Count)

		t = e.stamp()
		if err := e.agg.Aggregate(b, e.mask); err != nil {
			return nil, err
		}
		if timed {
			stats.AggregateTime += time.Since(t)
		}
	}

	t := e.stamp()
	rows := e.agg.Finalize()
	if timed {
		stats.FinalizeTime = time.Since(t)
	}
	stats.TotalTime = time.Since(start)

	if s, ok := src.(sourceStatser); ok {
		ss := s.Stats()
		stats.Files = ss.Files
		stats.ChunksTotal = ss.ChunksTotal
		stats.ChunksPruned = ss.ChunksPruned
		stats.RowsSkipped = ss.RowsSkipped
	}

	if e.metrics != nil {
		e.metrics.observe(stats, timed)
	}

	level.Info(logger).Log("msg", "run complete", "groups", len(rows), "rows_scanned", stats.RowsScanned,
		"rows_matched", stats.RowsMatched, "batches", stats.Batches, "batches_skipped", stats.BatchesSkipped,
		"row_groups", stats.ChunksTotal, "row_groups_pruned", stats.ChunksPruned, "duration", stats.TotalTime)

	return &Result{RunID: runID, Rows: rows, Stats: stats}, nil
}

// stamp returns the current time when timings are enabled.
func (e *Executor) stamp() time.Time {
	if !e.cfg.Timings {
		return time.Time{}
	}
	return time.Now()
}
