package extractor

import (
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/output"
	"github.com/hupe1980/extractor/internal/progress"
)

// DefaultChunkSize is the nominal chunk size used by DefaultConfig.
const DefaultChunkSize = 1 << 20

// OutputFormat selects how matching rows are written.
type OutputFormat = output.Format

const (
	// FormatDelimited mirrors the input bytes and delimiter.
	FormatDelimited = output.FormatDelimited
	// FormatCSV re-renders rows as comma separated values.
	FormatCSV = output.FormatCSV
	// FormatTSV re-renders rows as tab separated values.
	FormatTSV = output.FormatTSV
	// FormatJSONLines writes one JSON object per row.
	FormatJSONLines = output.FormatJSONLines
)

// ParseOutputFormat parses "delimited", "csv", "tsv" or "jsonl".
func ParseOutputFormat(s string) (OutputFormat, error) {
	return output.ParseFormat(s)
}

// Progress is a snapshot of a running scan.
type Progress = progress.Update

// ProgressConfig controls progress reporting.
type ProgressConfig struct {
	// Enabled turns progress reporting on. Without a callback set through
	// WithProgressFunc, updates are logged at info level.
	Enabled bool
	// RefreshRate is the minimum time between two updates.
	RefreshRate time.Duration
}

// Config is an immutable snapshot of processing options. A run uses exactly
// one Config; New copies it, so later changes by the caller have no effect.
type Config struct {
	// Delimiter separates fields. Default ','.
	Delimiter byte
	// HasHeader means the first line names the columns. Without a header,
	// columns are named by zero-based position ("0", "1", ...).
	HasHeader bool
	// ChunkSize is the nominal size in bytes of the ranges handed to workers.
	ChunkSize int
	// Parallel scans chunks on a worker pool. Output is identical either way.
	Parallel bool
	// Threads bounds the worker pool. Zero means the number of CPUs.
	Threads int
	// UseIndex resolves equality filters through an index when one is
	// available. Without an explicit index location the conventional path
	// next to the input is used.
	UseIndex bool
	// SkipIndexVerification trusts the index without comparing it against
	// the current source file.
	SkipIndexVerification bool
	// IndexCompression is used when BuildIndex persists an index.
	IndexCompression index.Compression
	// OutputFormat selects the output encoding.
	OutputFormat OutputFormat
	// OutputColumns restricts and orders output columns. Empty means all.
	OutputColumns []string
	// DropColumns removes columns from the output. It is applied after
	// OutputColumns.
	DropColumns []string
	// Append adds to an existing output file. The header is only written
	// when the file is empty.
	Append bool
	// MemoryLimit caps the bytes held by in-flight chunks, including
	// finished chunks waiting for an earlier one to be written. A limit
	// below the largest chunk is raised to that chunk. Zero caps in-flight
	// chunks at four per worker.
	MemoryLimit int64
	// MaxMapSize rejects larger input files. Zero means no limit.
	MaxMapSize int64
	// ReadRateLimit caps how many input bytes per second are handed to the
	// workers in streaming mode. Zero means no limit.
	ReadRateLimit int64
	// Progress controls progress reporting.
	Progress ProgressConfig
}

// DefaultConfig returns the default configuration: comma delimited with a
// header, 1 MiB chunks, parallel on every CPU.
func DefaultConfig() Config {
	return Config{
		Delimiter:        ',',
		HasHeader:        true,
		ChunkSize:        DefaultChunkSize,
		Parallel:         true,
		IndexCompression: index.CompressionZSTD,
		OutputFormat:     FormatDelimited,
		Progress: ProgressConfig{
			RefreshRate: progress.DefaultInterval,
		},
	}
}

// TSVConfig returns DefaultConfig with a tab delimiter.
func TSVConfig() Config {
	c := DefaultConfig()
	c.Delimiter = '\t'
	return c
}

// Validate reports the first invalid setting as a configuration error.
func (c Config) Validate() error {
	switch c.Delimiter {
	case 0, '\n', '\r', '"':
		return configError("delimiter", fmt.Errorf("%w: %q", ErrInvalidDelimiter, c.Delimiter))
	}
	if c.ChunkSize <= 0 {
		return configError("chunk_size", fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize))
	}
	if c.Threads < 0 {
		return configError("threads", fmt.Errorf("%w: %d", ErrInvalidThreads, c.Threads))
	}
	if c.MemoryLimit < 0 {
		return configError("memory_limit", fmt.Errorf("%w: negative memory limit %d", ErrInvalidConfig, c.MemoryLimit))
	}
	if c.MaxMapSize < 0 {
		return configError("max_map_size", fmt.Errorf("%w: negative map size %d", ErrInvalidConfig, c.MaxMapSize))
	}
	if c.ReadRateLimit < 0 {
		return configError("read_rate_limit", fmt.Errorf("%w: negative read rate %d", ErrInvalidConfig, c.ReadRateLimit))
	}
	if c.OutputFormat > FormatJSONLines {
		return configError("output_format", fmt.Errorf("%w: %v", ErrInvalidConfig, c.OutputFormat))
	}
	if c.IndexCompression > index.CompressionZSTD {
		return configError("index_compression", fmt.Errorf("%w: %v", ErrInvalidConfig, c.IndexCompression))
	}
	if c.Progress.RefreshRate < 0 {
		return configError("progress.refresh_rate", fmt.Errorf("%w: negative refresh rate", ErrInvalidConfig))
	}
	for _, col := range slices.Concat(c.OutputColumns, c.DropColumns) {
		if col == "" {
			return configError("output_columns", fmt.Errorf("%w: empty column name", ErrInvalidConfig))
		}
	}
	return nil
}

func (c Config) clone() Config {
	c.OutputColumns = slices.Clone(c.OutputColumns)
	c.DropColumns = slices.Clone(c.DropColumns)
	return c
}

func configError(field string, err error) error {
	return &Error{Kind: KindConfig, Op: "config " + field, Err: err}
}
