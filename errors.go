package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/mmap"
	"github.com/hupe1980/extractor/internal/output"
	"github.com/hupe1980/extractor/internal/resource"
	"github.com/hupe1980/extractor/internal/source"
)

var (
	// ErrInvalidConfig is the cause of every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidDelimiter is returned for a delimiter that cannot separate fields.
	ErrInvalidDelimiter = fmt.Errorf("%w: invalid delimiter", ErrInvalidConfig)
	// ErrInvalidChunkSize is returned for a chunk size that is not positive.
	ErrInvalidChunkSize = fmt.Errorf("%w: invalid chunk size", ErrInvalidConfig)
	// ErrInvalidThreads is returned for a negative thread count.
	ErrInvalidThreads = fmt.Errorf("%w: invalid thread count", ErrInvalidConfig)
	// ErrColumnNotFound is returned when a filter or output column is not in
	// the input header.
	ErrColumnNotFound = errors.New("column not found")
	// ErrNoIndex is returned by operations that need an index location when
	// none is configured.
	ErrNoIndex = errors.New("no index configured")
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindIO is a file system failure.
	KindIO Kind = iota + 1
	// KindParse is malformed delimited content that prevents a run.
	KindParse
	// KindIndex is a missing, corrupt, outdated or incompatible index.
	KindIndex
	// KindConfig is an invalid configuration value.
	KindConfig
	// KindFilter is a filter that could not be constructed.
	KindFilter
	// KindColumn is a reference to a column the input does not have.
	KindColumn
	// KindResource is an exceeded size or memory limit.
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindIndex:
		return "index"
	case KindConfig:
		return "config"
	case KindFilter:
		return "filter"
	case KindColumn:
		return "column"
	case KindResource:
		return "resource"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is the error type returned by the engine.
//
// The underlying cause can be inspected with errors.Is / errors.As, so
// package sentinels such as index.ErrOutdated or filter.ErrInvalidRegex
// match through it.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Column string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %q)", e.Column)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Category returns a coarse grouping used for reporting: "io", "data",
// "index", "config" or "resource".
func (e *Error) Category() string {
	switch e.Kind {
	case KindIO:
		return "io"
	case KindParse, KindColumn, KindFilter:
		return "data"
	case KindIndex:
		return "index"
	case KindConfig:
		return "config"
	case KindResource:
		return "resource"
	}
	return "unknown"
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsIO reports whether err is a file system failure.
func IsIO(err error) bool { return KindOf(err) == KindIO }

// IsData reports whether err stems from the input data or filters rather
// than the environment.
func IsData(err error) bool {
	switch KindOf(err) {
	case KindParse, KindColumn, KindFilter:
		return true
	}
	return false
}

// translateError classifies errors from the internal packages.
// Context cancellation and errors that are already typed pass through.
func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	wrap := func(k Kind) error {
		return &Error{Kind: k, Op: op, Path: path, Err: err}
	}

	var fe *filter.Error
	if errors.As(err, &fe) {
		return &Error{Kind: KindFilter, Op: op, Column: fe.Column, Err: err}
	}

	switch {
	case errors.Is(err, index.ErrColumnNotFound),
		errors.Is(err, output.ErrUnknownColumn),
		errors.Is(err, ErrColumnNotFound):
		return wrap(KindColumn)
	case errors.Is(err, index.ErrNotFound),
		errors.Is(err, index.ErrInvalidFormat),
		errors.Is(err, index.ErrUnsupportedVersion),
		errors.Is(err, index.ErrOutdated),
		errors.Is(err, index.ErrColumnNotIndexed),
		errors.Is(err, ErrNoIndex):
		return wrap(KindIndex)
	case errors.Is(err, source.ErrMalformedHeader):
		return wrap(KindParse)
	case errors.Is(err, mmap.ErrTooLarge),
		errors.Is(err, resource.ErrMemoryLimitExceeded):
		return wrap(KindResource)
	case errors.Is(err, ErrInvalidConfig):
		return wrap(KindConfig)
	}

	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &Error{Kind: KindIO, Op: op, Path: pe.Path, Err: err}
	}
	return wrap(KindIO)
}
