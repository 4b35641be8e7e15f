// Package extractor filters large delimited (CSV/TSV) files at high
// throughput.
//
// An Engine reads one input file, keeps the rows that pass every attached
// filter and writes them to one output file in input order. The input is
// memory-mapped once and split into row-aligned chunks that are scanned in
// parallel without copying; only matching rows are copied, and a single
// writer restores file order before anything is written.
//
// # Quick Start
//
//	gene, _ := filter.New("gene", filter.Equals("BRCA1"))
//	expr, _ := filter.New("expr", filter.GreaterThan(0.5))
//
//	eng, err := extractor.New("expr.csv", "brca1.csv",
//	    extractor.WithFilters(gene, expr))
//	if err != nil {
//	    return err
//	}
//	stats, err := eng.Process(ctx)
//
// # Indexed Mode
//
// Repeated queries on the same file can skip the scan. BuildIndex records
// the byte offset of every row per key value; later runs with an equality
// filter on an indexed column read only the candidate rows and check the
// remaining filters against them:
//
//	eng, _ := extractor.New("variants.tsv", "out.tsv",
//	    extractor.WithConfig(extractor.TSVConfig()),
//	    extractor.WithIndexPath("variants.tsv.xidx"))
//	_, _ = eng.BuildIndex(ctx, "snpeff.ann.gene_id", "dbsnp.chrom")
//
// Runs verify the index against the size, modification time and head
// fingerprint of the input and fail with index.ErrOutdated when the file
// changed. Filters that no index covers make the run fall back to a full
// scan; the output is the same either way.
//
// # Errors
//
// Malformed cells, such as text under a numeric filter, never abort a run:
// the row is rejected and counted in Stats.RowsMalformed. Structural
// failures are returned as *Error with a Kind describing the cause.
package extractor
