package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hupe1980/extractor/blobstore"
)

// FileExt is the conventional suffix of persisted index files.
const FileExt = ".xidx"

// Save encodes the index and writes it to store under name. Local stores
// publish the file atomically.
func (ix *Index) Save(ctx context.Context, store blobstore.BlobStore, name string, c Compression) error {
	data, err := ix.Encode(c)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("save index %q: %w", name, err)
	}
	return nil
}

// Load reads and decodes the index stored under name.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Index, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("load index %q: %w", name, err)
	}
	return Decode(data)
}

// SaveFile writes the index to a local path.
func (ix *Index) SaveFile(ctx context.Context, path string, c Compression) error {
	dir, name := filepath.Split(path)
	return ix.Save(ctx, blobstore.NewLocalStore(dir), name, c)
}

// LoadFile reads an index from a local path.
func LoadFile(ctx context.Context, path string) (*Index, error) {
	dir, name := filepath.Split(path)
	return Load(ctx, blobstore.NewLocalStore(dir), name)
}

// DefaultPath returns the index path conventionally used for source.
func DefaultPath(source string) string {
	return source + FileExt
}
