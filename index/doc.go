// Package index builds, persists and queries exact-match indexes over a
// delimited file.
//
// An Index maps each distinct value of a primary key column to the byte
// offsets of the rows that hold it, in file order. Optional secondary
// columns get maps of the same shape. Offsets point at row starts in the
// source file, so a query resolves to rows without scanning.
//
//	ix, err := index.Build(ctx, "genes.csv", index.BuildOptions{
//	    Column:    "gene_id",
//	    Delimiter: ',',
//	    HasHeader: true,
//	})
//	if err != nil {
//	    return err
//	}
//	err = ix.Save(ctx, blobstore.NewLocalStore("."), "genes.csv.xidx", index.CompressionZSTD)
//
// Indexes are immutable once built and safe for concurrent readers.
// Verify detects a source file that changed since the build.
package index
