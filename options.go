package extractor

import (
	"log/slog"

	"github.com/hupe1980/extractor/blobstore"
	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
)

type options struct {
	config           Config
	filters          []filter.Filter
	indexPath        string
	indexStore       blobstore.BlobStore
	indexName        string
	index            *index.Index
	metricsCollector MetricsCollector
	logger           *Logger
	progressFunc     func(Progress)
	indexed          bool
}

// Option configures an Engine.
type Option func(*options)

// WithConfig sets the processing configuration. The default is
// DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithFilters attaches filters. Filters from repeated calls accumulate and
// are combined with AND.
func WithFilters(filters ...filter.Filter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

// WithIndexPath uses the index file at path and enables indexed mode.
func WithIndexPath(path string) Option {
	return func(o *options) {
		o.indexPath = path
		o.indexed = true
	}
}

// WithIndexStore uses the index stored under name in store and enables
// indexed mode. Any blobstore.BlobStore works: a local directory, memory,
// S3 or MinIO.
//
// Example:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	eng, _ := extractor.New("variants.tsv", "out.tsv",
//	    extractor.WithIndexStore(store, "variants.tsv.xidx"))
func WithIndexStore(store blobstore.BlobStore, name string) Option {
	return func(o *options) {
		o.indexStore = store
		o.indexName = name
		o.indexed = true
	}
}

// WithIndex uses an index that is already in memory and enables indexed
// mode.
func WithIndex(ix *index.Index) Option {
	return func(o *options) {
		o.index = ix
		o.indexed = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &extractor.BasicMetricsCollector{}
//	eng, _ := extractor.New(in, out, extractor.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithProgressFunc receives throttled progress updates and enables
// progress reporting. fn is never called concurrently.
func WithProgressFunc(fn func(Progress)) Option {
	return func(o *options) {
		o.progressFunc = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		config:           DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	// Index and progress options win over a WithConfig that comes later.
	if o.indexed {
		o.config.UseIndex = true
	}
	if o.progressFunc != nil {
		o.config.Progress.Enabled = true
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
