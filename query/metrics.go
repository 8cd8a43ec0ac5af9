package query

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics updated after each run.
type Metrics struct {
	Runs          prometheus.Counter
	RowsScanned   prometheus.Counter
	RowsMatched   prometheus.Counter
	Batches       *prometheus.CounterVec
	RowGroups     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "q1scan_runs_total",
		Help: "Total completed aggregation runs",
	})

	rowsScanned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "q1scan_rows_scanned_total",
		Help: "Total rows decoded and evaluated",
	})

	rowsMatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "q1scan_rows_matched_total",
		Help: "Total rows that passed the ship date predicate",
	})

	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "q1scan_batches_total",
		Help: "Total batches by outcome",
	}, []string{"outcome"})

	rowGroups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "q1scan_row_groups_total",
		Help: "Total row groups by outcome",
	}, []string{"outcome"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "q1scan_run_duration_seconds",
		Help:    "Wall clock time of one aggregation run",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	})

	stageDuration := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "q1scan_stage_duration_seconds_total",
		Help: "Time spent per pipeline stage when timings are enabled",
	}, []string{"stage"})

	reg.MustRegister(runs, rowsScanned, rowsMatched, batches, rowGroups, runDuration, stageDuration)

	return &Metrics{
		Runs:          runs,
		RowsScanned:   rowsScanned,
		RowsMatched:   rowsMatched,
		Batches:       batches,
		RowGroups:     rowGroups,
		RunDuration:   runDuration,
		StageDuration: stageDuration,
	}
}

// observe records the outcome of one run.
func (m *Metrics) observe(s Stats, timings bool) {
	m.Runs.Inc()
	m.RowsScanned.Add(float64(s.RowsScanned))
	m.RowsMatched.Add(float64(s.RowsMatched))
	m.Batches.WithLabelValues("aggregated").Add(float64(s.Batches - s.BatchesSkipped))
	m.Batches.WithLabelValues("skipped").Add(float64(s.BatchesSkipped))
	m.RowGroups.WithLabelValues("decoded").Add(float64(s.ChunksTotal - s.ChunksPruned))
	m.RowGroups.WithLabelValues("pruned").Add(float64(s.ChunksPruned))
	m.RunDuration.Observe(s.TotalTime.Seconds())

	if timings {
		m.StageDuration.WithLabelValues("read").Add(s.ReadTime.Seconds())
		m.StageDuration.WithLabelValues("filter").Add(s.FilterTime.Seconds())
		m.StageDuration.WithLabelValues("aggregate").Add(s.AggregateTime.Seconds())
		m.StageDuration.WithLabelValues("finalize").Add(s.FinalizeTime.Seconds())
	}
}
