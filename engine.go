package extractor

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/output"
	"github.com/hupe1980/extractor/internal/progress"
	"github.com/hupe1980/extractor/internal/source"
	"github.com/hupe1980/extractor/row"
)

// Engine filters one input file into one output file.
//
// An Engine may run Process several times; a loaded index is kept between
// runs. It is not safe for concurrent use.
type Engine struct {
	input  string
	output string
	cfg    Config
	opts   options

	filters []filter.Filter
	index   *index.Index
}

// New creates an Engine reading input and writing output.
func New(input, output string, optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	if input == "" {
		return nil, &Error{Kind: KindConfig, Op: "new engine", Err: fmt.Errorf("%w: empty input path", ErrInvalidConfig)}
	}
	if output == "" {
		return nil, &Error{Kind: KindConfig, Op: "new engine", Err: fmt.Errorf("%w: empty output path", ErrInvalidConfig)}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		input:  input,
		output: output,
		cfg:    o.config.clone(),
		opts:   o,
		index:  o.index,
	}
	for _, f := range o.filters {
		e.AddFilter(f)
	}
	return e, nil
}

// AddFilter attaches f. All filters must pass for a row to be emitted.
// Nil filters are ignored.
func (e *Engine) AddFilter(f filter.Filter) *Engine {
	if f != nil {
		e.filters = append(e.filters, f)
	}
	return e
}

// Filters returns the attached filters in registration order.
func (e *Engine) Filters() []filter.Filter { return slices.Clone(e.filters) }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.cfg.clone() }

// Input returns the input path.
func (e *Engine) Input() string { return e.input }

// Output returns the output path.
func (e *Engine) Output() string { return e.output }

// Process runs the filters over the input and writes matching rows to the
// output in input order.
//
// With indexed mode enabled and at least one equality filter on an indexed
// column, only index candidates are read; otherwise the whole file is
// scanned. Both paths produce the same output.
func (e *Engine) Process(ctx context.Context) (*Stats, error) {
	start := time.Now()
	log := e.opts.logger.WithRunID(uuid.NewString()).WithInput(e.input)

	st, err := e.process(ctx, log)
	if st != nil {
		st.Elapsed = time.Since(start)
	}

	mode := ModeStreaming
	if st != nil {
		mode = st.Mode
	}
	e.opts.metricsCollector.RecordProcess(mode.String(), st, err)
	log.LogProcess(ctx, st, err)

	if err != nil {
		return nil, err
	}
	return st, nil
}

// run holds the state of one Process call.
type run struct {
	cfg     Config
	src     *source.Source
	filter  *filter.Combined
	enc     *output.Encoder
	tracker *progress.Tracker
	metrics MetricsCollector
	stats   *Stats
}

func (e *Engine) process(ctx context.Context, log *Logger) (*Stats, error) {
	src, err := source.Open(e.input, source.Options{
		Delimiter:  e.cfg.Delimiter,
		HasHeader:  e.cfg.HasHeader,
		MaxMapSize: e.cfg.MaxMapSize,
	})
	if err != nil {
		return nil, translateError("open input", e.input, err)
	}
	defer src.Close()

	filters := filter.Flatten(e.filters)
	if err := checkColumns(filters, src.Header, e.cfg.HasHeader); err != nil {
		return nil, err
	}

	enc, err := output.NewEncoder(output.EncoderOptions{
		Format:     e.cfg.OutputFormat,
		Delimiter:  e.cfg.Delimiter,
		Header:     src.Header,
		HeaderLine: src.HeaderLine(),
		Columns:    projection(src.Header, e.cfg.OutputColumns, e.cfg.DropColumns),
	})
	if err != nil {
		return nil, translateError("configure output", e.output, err)
	}

	plan, err := e.plan(ctx, filters, log)
	if err != nil {
		return nil, err
	}

	if sameFile(e.input, e.output) {
		return nil, &Error{Kind: KindConfig, Op: "create output", Path: e.output,
			Err: fmt.Errorf("%w: output would overwrite the input", ErrInvalidConfig)}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w, err := output.Create(e.output, output.WriterOptions{
		Encoder: enc,
		Header:  e.cfg.HasHeader,
		Append:  e.cfg.Append,
		OnError: cancel,
	})
	if err != nil {
		return nil, translateError("create output", e.output, err)
	}

	r := &run{
		cfg:     e.cfg,
		src:     src,
		enc:     enc,
		metrics: e.opts.metricsCollector,
		stats:   &Stats{Mode: plan.Mode, InputBytes: src.Size()},
	}
	r.tracker = e.newTracker(ctx, log, int64(len(src.Body())))

	if plan.Mode == ModeIndexed {
		r.filter = filter.And(plan.Residual...)
		err = r.indexed(ctx, w, e.index, plan.Constraints)
	} else {
		r.filter = filter.And(filters...)
		err = r.stream(ctx, w)
	}

	if cerr := w.Close(); err == nil && cerr != nil {
		err = translateError("write output", e.output, cerr)
	}
	r.tracker.Finish()
	r.stats.OutputBytes = w.BytesWritten()

	if err != nil {
		return nil, translateError("process", e.input, err)
	}
	return r.stats, nil
}

func (e *Engine) newTracker(ctx context.Context, log *Logger, total int64) *progress.Tracker {
	if !e.cfg.Progress.Enabled {
		return nil
	}
	fn := e.opts.progressFunc
	if fn == nil {
		fn = func(p Progress) { log.LogProgress(ctx, p) }
	}
	return progress.New(total, e.cfg.Progress.RefreshRate, progress.Func(fn))
}

func sameFile(a, b string) bool {
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// checkColumns fails if a filter names a column the input does not have.
// Filters without a column name are custom predicates and are not checked.
func checkColumns(filters []filter.Filter, h *row.Header, hasHeader bool) error {
	for _, f := range filters {
		for _, col := range filter.Columns(f) {
			if _, ok := h.Index(col); ok {
				continue
			}
			detail := "not in header"
			if !hasHeader {
				detail = fmt.Sprintf("input has %d columns", h.Len())
			}
			return &Error{
				Kind:   KindColumn,
				Op:     "resolve filter " + f.Description(),
				Column: col,
				Err:    fmt.Errorf("%w: %s", ErrColumnNotFound, detail),
			}
		}
	}
	return nil
}

// projection resolves the output columns. Nil means every column in input
// order.
func projection(h *row.Header, columns, drop []string) []string {
	if len(drop) == 0 {
		return columns
	}
	if len(columns) == 0 {
		columns = h.Names()
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !slices.Contains(drop, c) {
			out = append(out, c)
		}
	}
	return out
}
