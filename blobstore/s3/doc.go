// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface for sharing persisted indexes.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "indexes/"
//	    o.Region = "us-east-1"
//	})
//
//	e, err := extractor.New(in, out, extractor.WithIndexStore(store, "genes.xidx"))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - CommitStore: DynamoDB-guarded publication for concurrent writers
package s3
