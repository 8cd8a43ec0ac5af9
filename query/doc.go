// Package query executes the TPC-H Query 1 aggregation over lineitem batches.
//
// The query is fixed:
//
//	SELECT l_returnflag, l_linestatus,
//	       sum(l_quantity), sum(l_extendedprice),
//	       sum(l_extendedprice * (1 - l_discount)),
//	       sum(l_extendedprice * (1 - l_discount) * (1 + l_tax)),
//	       avg(l_quantity), avg(l_extendedprice), avg(l_discount), count(*)
//	FROM lineitem
//	WHERE l_shipdate <= date '1998-09-02'
//	GROUP BY l_returnflag, l_linestatus
//	ORDER BY l_returnflag, l_linestatus
//
// Only the threshold, the column names, the batch size and the group domain
// are configurable.
//
// # Basic Usage
//
//	cfg := query.DefaultConfig()
//	exec, err := query.NewExecutor(cfg, query.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := exec.Execute([]string{"lineitem.parquet"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range res.Rows {
//	    fmt.Println(row.ReturnFlag, row.LineStatus, row.Count)
//	}
//
// # Pipeline
//
// Each batch from the reader goes through three stages:
//
//   - Predicate.Evaluate builds a Mask of rows whose ship date is at or
//     before the threshold. Null dates never match.
//   - Batches with no matching rows are skipped.
//   - Aggregator.Aggregate adds matching rows to their group. The group slot
//     comes from two 256-entry lookup tables, so there is no hashing and no
//     map. Discounted price and charge are computed while accumulating.
//
// Accumulators live in four banks of six cache-line-sized records. Row i goes
// to bank i%4, which keeps consecutive floating point additions independent.
// Finalize sums the banks, drops empty groups and sorts the rest.
//
// # Group Domain
//
// The default domain is return flag {A, N, R} and line status {F, O}. A byte
// outside the domain is not an error: it is counted in the group at index 0
// of its dimension. Corrupt categorical values therefore inflate the first
// group instead of failing the run.
//
// # Configuration
//
// Config can be populated from flags with RegisterFlagsAndApplyDefaults and
// from YAML with LoadConfig:
//
//	threshold: 1998-09-02
//	batch_size: 8192
//	timings: true
//	columns:
//	  ship_date: l_shipdate
//	domain:
//	  return_flags: ANR
//	  line_statuses: FO
package query
