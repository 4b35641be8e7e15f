package index

import "errors"

var (
	// ErrNotFound is returned when no persisted index exists under a name.
	ErrNotFound = errors.New("index not found")
	// ErrInvalidFormat is returned for truncated or corrupted index data.
	ErrInvalidFormat = errors.New("invalid index format")
	// ErrUnsupportedVersion is returned for index data written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported index version")
	// ErrOutdated is returned when the source file changed after the build.
	ErrOutdated = errors.New("index is outdated")
	// ErrColumnNotFound is returned when a key column is missing from the source header.
	ErrColumnNotFound = errors.New("column not found")
	// ErrColumnNotIndexed is returned when a lookup names a column the index does not cover.
	ErrColumnNotIndexed = errors.New("column not indexed")
)
