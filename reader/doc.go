// Package reader provides functionality for reading lineitem data from Apache
// Parquet files as column batches.
//
// Only the seven columns named by a ColumnSpec are decoded. Before a row group
// is decoded its ship date statistics are inspected and the row group is
// skipped when no row in it can satisfy the date predicate.
//
// # Basic Usage
//
// Streaming batches from a file:
//
//	src, err := reader.NewBatchSource([]string{"lineitem.parquet"}, reader.DefaultColumnSpec(),
//	    reader.SourceOptions{Threshold: 10471})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Close()
//
//	for {
//	    batch, err := src.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(batch.Len)
//	}
//
// # Multi-file Datasets
//
// A glob pattern is expanded into a sorted list of files:
//
//	paths, err := reader.ExpandPaths("data/lineitem-*.parquet")
//
// # Errors
//
// Failures are classified by ErrOpen, ErrSchema and ErrRead and can be tested
// with errors.Is. Missing columns are reported as *ColumnNotFoundError and
// columns of an unusable type as *SchemaError.
//
// # Schema Introspection
//
// DescribeColumns reports the physical and logical type each required column
// is read as:
//
//	infos, err := reader.DescribeColumns("lineitem.parquet", reader.DefaultColumnSpec())
package reader
