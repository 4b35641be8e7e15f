package extractor

import (
	"log/slog"
	"slices"

	"github.com/hupe1980/extractor/blobstore"
	"github.com/hupe1980/extractor/filter"
)

// Builder is an immutable fluent builder for Engines.
// Each method returns a new builder with the updated configuration.
//
// Example:
//
//	eng, err := extractor.NewBuilder("variants.tsv", "brca1.tsv").
//	    Delimiter('\t').
//	    Where("snpeff.ann.gene_id", filter.Equals("BRCA1")).
//	    Where("pval", filter.LessThan(5e-8)).
//	    Index("variants.tsv.xidx").
//	    Build()
type Builder struct {
	input   string
	output  string
	config  Config
	filters []filter.Filter
	conds   []columnCondition
	opts    []Option
}

type columnCondition struct {
	column string
	cond   filter.Condition
}

// NewBuilder returns a builder for an engine reading input and writing output.
func NewBuilder(input, output string) Builder {
	return Builder{
		input:  input,
		output: output,
		config: DefaultConfig(),
	}
}

func (b Builder) with(opt Option) Builder {
	b.opts = append(slices.Clip(b.opts), opt)
	return b
}

// Config replaces the whole configuration.
func (b Builder) Config(cfg Config) Builder {
	b.config = cfg.clone()
	return b
}

// Delimiter sets the field delimiter.
func (b Builder) Delimiter(d byte) Builder {
	b.config.Delimiter = d
	return b
}

// Header sets whether the first line is a header.
func (b Builder) Header(has bool) Builder {
	b.config.HasHeader = has
	return b
}

// ChunkSize sets the nominal chunk size in bytes.
func (b Builder) ChunkSize(n int) Builder {
	b.config.ChunkSize = n
	return b
}

// Threads enables parallel scans on n workers. n <= 0 means one per CPU.
func (b Builder) Threads(n int) Builder {
	b.config.Parallel = true
	b.config.Threads = max(n, 0)
	return b
}

// Sequential disables the worker pool.
func (b Builder) Sequential() Builder {
	b.config.Parallel = false
	return b
}

// Format sets the output format.
func (b Builder) Format(f OutputFormat) Builder {
	b.config.OutputFormat = f
	return b
}

// Columns restricts the output to the named columns, in that order.
func (b Builder) Columns(columns ...string) Builder {
	b.config.OutputColumns = slices.Clone(columns)
	return b
}

// MemoryLimit caps the bytes held by in-flight chunks.
func (b Builder) MemoryLimit(bytes int64) Builder {
	b.config.MemoryLimit = bytes
	return b
}

// Filter attaches a filter.
func (b Builder) Filter(f filter.Filter) Builder {
	b.filters = append(slices.Clip(b.filters), f)
	return b
}

// Where attaches a condition on column. The condition is validated by Build.
func (b Builder) Where(column string, cond filter.Condition) Builder {
	b.conds = append(slices.Clip(b.conds), columnCondition{column: column, cond: cond})
	return b
}

// Index uses the index file at path.
func (b Builder) Index(path string) Builder {
	return b.with(WithIndexPath(path))
}

// IndexStore uses the index stored under name in store.
func (b Builder) IndexStore(store blobstore.BlobStore, name string) Builder {
	return b.with(WithIndexStore(store, name))
}

// Logger sets the logger.
func (b Builder) Logger(l *Logger) Builder {
	return b.with(WithLogger(l))
}

// LogLevel sets a text logger with the given level.
func (b Builder) LogLevel(level slog.Level) Builder {
	return b.with(WithLogLevel(level))
}

// Metrics sets the metrics collector.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	return b.with(WithMetricsCollector(mc))
}

// Progress sets a progress callback.
func (b Builder) Progress(fn func(Progress)) Builder {
	return b.with(WithProgressFunc(fn))
}

// Build validates the configuration and the conditions and returns the Engine.
func (b Builder) Build() (*Engine, error) {
	filters := slices.Clone(b.filters)
	for _, c := range b.conds {
		f, err := filter.New(c.column, c.cond)
		if err != nil {
			return nil, translateError("build filter", "", err)
		}
		filters = append(filters, f)
	}

	opts := make([]Option, 0, len(b.opts)+2)
	opts = append(opts, WithConfig(b.config), WithFilters(filters...))
	opts = append(opts, b.opts...)
	return New(b.input, b.output, opts...)
}

// MustBuild is like Build but panics on error.
func (b Builder) MustBuild() *Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
