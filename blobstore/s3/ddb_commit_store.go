package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hupe1980/extractor/blobstore"
)

// CommitStore publishes blobs on S3 through DynamoDB conditional writes so
// that concurrent index builds against a shared bucket cannot silently
// overwrite each other.
//
// Every Put uploads the payload to a fresh object key and then records it as
// the next version of the logical name. Two writers racing for the same
// version are detected and the loser gets ErrConcurrentModification.
//
// Table schema:
//   - Partition key: blob_uri (string) - base URI plus logical name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name extractor-indexes \
//	  --attribute-definitions AttributeName=blob_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=blob_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	store     *Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// DDBClient is the subset of the DynamoDB API used by CommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when another writer published the
// same version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// NewCommitStore creates a commit store. baseURI ("s3://bucket/prefix")
// namespaces the partition keys.
func NewCommitStore(store *Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		store:     store,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

func (s *CommitStore) uri(name string) string {
	return s.baseURI + "/" + name
}

// Version returns the latest published version of name, or 0.
func (s *CommitStore) Version(ctx context.Context, name string) (uint64, error) {
	v, _, err := s.latest(ctx, name)
	return v, err
}

// Open opens the latest published version of name.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	version, object, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return s.store.Open(ctx, object)
}

// Put uploads data and publishes it as the next version of name.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	current, _, err := s.latest(ctx, name)
	if err != nil {
		return err
	}

	object := name + "." + uuid.NewString()
	if err := s.store.Put(ctx, object, data); err != nil {
		return err
	}

	if err := s.commit(ctx, name, current+1, object); err != nil {
		_ = s.store.Delete(ctx, object)
		return err
	}
	return nil
}

// Create buffers writes and publishes them on Close.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return &commitWritableBlob{ctx: ctx, store: s, name: name}, nil
}

// Delete removes the latest version of name and its object.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	version, object, err := s.latest(ctx, name)
	if err != nil {
		return err
	}
	if version == 0 {
		return blobstore.ErrNotFound
	}

	_, err = s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"blob_uri": &types.AttributeValueMemberS{Value: s.uri(name)},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("delete version from DynamoDB: %w", err)
	}
	return s.store.Delete(ctx, object)
}

// List lists the underlying versioned objects.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

func (s *CommitStore) latest(ctx context.Context, name string) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("blob_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.uri(name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query DynamoDB: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	objectAttr, ok := item["object_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid object_key attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, objectAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, name string, version uint64, object string) error {
	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"blob_uri":   &types.AttributeValueMemberS{Value: s.uri(name)},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"object_key": &types.AttributeValueMemberS{Value: object},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version to DynamoDB: %w", err)
	}
	return nil
}

type commitWritableBlob struct {
	ctx   context.Context
	store *CommitStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *commitWritableBlob) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("s3: blob already closed")
	}
	return w.buf.Write(p)
}

func (w *commitWritableBlob) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.store.Put(w.ctx, w.name, w.buf.Bytes())
}

func (w *commitWritableBlob) Sync() error {
	return nil
}
