package mmap

import "errors"

// AccessPattern is a madvise hint for a mapping.
type AccessPattern int

const (
	// AccessDefault clears any earlier hint.
	AccessDefault AccessPattern = iota
	// AccessSequential suits full scans: aggressive read-ahead.
	AccessSequential
	// AccessRandom suits index lookups: no read-ahead.
	AccessRandom
)

var (
	// ErrClosed is returned by operations on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for a file reporting a negative size.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrTooLarge is returned by OpenLimit for files above the limit.
	ErrTooLarge = errors.New("mmap: file exceeds size limit")
	// ErrOutOfBounds is returned by Slice for ranges outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned by ReadAt for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
