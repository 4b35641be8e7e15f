// Package minio provides a MinIO / S3-compatible implementation of
// blobstore.BlobStore, used to share persisted indexes between hosts.
//
//	store, err := minio.Dial(ctx, "localhost:9000", "indexes", minio.Options{
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	    CreateBucket: true,
//	})
//
//	e, err := extractor.New(in, out, extractor.WithIndexStore(store, "genes.xidx"))
package minio
