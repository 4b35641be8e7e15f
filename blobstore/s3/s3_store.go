package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/extractor/blobstore"
)

var _ blobstore.BlobStore = (*Store)(nil)

// Options configures New.
type Options struct {
	// Region overrides the region from the shared AWS configuration.
	Region string
	// Endpoint points the client at an S3-compatible service.
	// Path-style addressing is enabled when set.
	Endpoint string
	// Prefix is prepended to every blob name (e.g. "indexes/").
	Prefix string
	// PartSize is the multipart upload part size. Default 8 MiB.
	PartSize int64
	// Concurrency is the number of parallel part uploads. Default 5.
	Concurrency int
}

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	uploader *manager.Uploader
	awsCfg   *aws.Config
}

// NewStore creates a new S3 blob store from an existing client.
// rootPrefix is prepended to all keys (e.g. "indexes/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return newStore(client, bucket, Options{Prefix: rootPrefix})
}

// New loads the default AWS configuration and returns a Store for bucket.
func New(ctx context.Context, bucket string, optFns ...func(*Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := newStore(client, bucket, opts)
	s.awsCfg = &cfg
	return s, nil
}

func newStore(client Client, bucket string, opts Options) *Store {
	if opts.PartSize <= 0 {
		opts.PartSize = 8 * 1024 * 1024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: opts.Prefix,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = opts.PartSize
			u.Concurrency = opts.Concurrency
		}),
	}
}

// CommitStore returns a store that publishes blobs through the DynamoDB
// table. It requires a Store created by New.
func (s *Store) CommitStore(table string) (*CommitStore, error) {
	if s.awsCfg == nil {
		return nil, fmt.Errorf("s3: commit store needs a store created by New")
	}
	return NewCommitStore(s, dynamodb.NewFromConfig(*s.awsCfg), table, "s3://"+path.Join(s.bucket, s.prefix)), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens a blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Create starts a streaming multipart upload. The object is committed on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()

	wb := &writableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	input := &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(s.key(name)),
		Body:              pr,
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	}

	go func() {
		_, err := s.uploader.Upload(ctx, input)
		_ = pr.CloseWithError(err)
		wb.done <- err
	}()

	return wb, nil
}

// Put uploads a blob in a single request with a CRC32C integrity check.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(s.key(name)),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(crc32c(data)),
	})
	return err
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns the names of all blobs with the prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c returns the base64 big-endian CRC32C S3 expects.
func crc32c(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], crc32.Checksum(data, castagnoli))
	return base64.StdEncoding.EncodeToString(b[:])
}
