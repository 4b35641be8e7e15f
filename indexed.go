package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/output"
	"github.com/hupe1980/extractor/row"
)

// ErrIndexMismatch is returned when an index was built with a delimiter or
// header setting that differs from the engine configuration.
var ErrIndexMismatch = errors.New("index does not match configuration")

// Plan describes how a run resolves its filters.
type Plan struct {
	Mode Mode
	// Reason explains why a run scans the whole file.
	Reason string
	// Index names where the index was loaded from.
	Index string
	// Constraints are answered by the index.
	Constraints []index.Constraint
	// Residual filters are checked against every candidate row.
	Residual []filter.Filter
	// Candidates is the number of rows the index returned. It is only set
	// by Explain.
	Candidates int
}

// Explain reports the plan Process would use without reading or writing
// any rows beyond the index lookup.
func (e *Engine) Explain(ctx context.Context) (*Plan, error) {
	p, err := e.plan(ctx, filter.Flatten(e.filters), e.opts.logger)
	if err != nil {
		return nil, err
	}
	if p.Mode == ModeIndexed {
		offs, err := e.index.Query(p.Constraints)
		if err != nil {
			return nil, translateError("query index", p.Index, err)
		}
		p.Candidates = len(offs)
	}
	return p, nil
}

func (e *Engine) plan(ctx context.Context, filters []filter.Filter, log *Logger) (*Plan, error) {
	if !e.cfg.UseIndex {
		return &Plan{Mode: ModeStreaming, Reason: "index disabled", Residual: filters}, nil
	}

	if err := e.loadIndex(ctx); err != nil {
		return nil, err
	}
	ix := e.index
	where := e.indexLocation()

	if !e.cfg.SkipIndexVerification {
		if err := ix.Verify(e.input); err != nil {
			return nil, translateError("verify index", where, err)
		}
	}
	meta := ix.Metadata()
	if meta.Delimiter != e.cfg.Delimiter || meta.HasHeader != e.cfg.HasHeader {
		return nil, &Error{Kind: KindIndex, Op: "check index", Path: where,
			Err: fmt.Errorf("%w: built with delimiter %q header %t", ErrIndexMismatch, meta.Delimiter, meta.HasHeader)}
	}

	p := &Plan{Mode: ModeIndexed, Index: where}
	for _, f := range filters {
		if h, ok := f.(filter.IndexHint); ok {
			if col, values, ok := h.IndexValues(); ok && ix.Has(col) {
				p.Constraints = append(p.Constraints, index.Constraint{Column: col, Values: values})
				continue
			}
		}
		p.Residual = append(p.Residual, f)
	}

	if len(p.Constraints) == 0 {
		p.Mode = ModeStreaming
		p.Reason = fmt.Sprintf("no equality filter on indexed columns %v", ix.Columns())
		log.LogFallback(ctx, p.Reason)
	}
	return p, nil
}

func (e *Engine) indexLocation() string {
	switch {
	case e.opts.indexStore != nil:
		return e.opts.indexName
	case e.opts.indexPath != "":
		return e.opts.indexPath
	case e.opts.index != nil:
		return "memory"
	}
	return index.DefaultPath(e.input)
}

func (e *Engine) loadIndex(ctx context.Context) error {
	if e.index != nil {
		return nil
	}

	var (
		ix  *index.Index
		err error
	)
	if e.opts.indexStore != nil {
		ix, err = index.Load(ctx, e.opts.indexStore, e.opts.indexName)
	} else {
		ix, err = index.LoadFile(ctx, e.indexLocation())
	}
	if err != nil {
		return translateError("load index", e.indexLocation(), err)
	}
	e.index = ix
	return nil
}

// BuildIndex indexes the input on column and any secondary columns,
// persists the index to the configured location (by default next to the
// input) and uses it for subsequent runs.
func (e *Engine) BuildIndex(ctx context.Context, column string, secondary ...string) (*index.Index, error) {
	start := time.Now()
	log := e.opts.logger.WithInput(e.input)

	ix, err := index.Build(ctx, e.input, index.BuildOptions{
		Column:           column,
		SecondaryColumns: secondary,
		Delimiter:        e.cfg.Delimiter,
		HasHeader:        e.cfg.HasHeader,
		ChunkSize:        e.cfg.ChunkSize,
		Parallel:         e.cfg.Parallel,
		Threads:          e.cfg.Threads,
		MaxMapSize:       e.cfg.MaxMapSize,
	})
	if err == nil {
		err = e.saveIndex(ctx, ix)
	}

	var rows int64
	if ix != nil {
		rows = ix.Metadata().RowCount
	}
	e.opts.metricsCollector.RecordIndexBuild(rows, time.Since(start), err)
	log.LogIndexBuild(ctx, column, rows, err)

	if err != nil {
		err = translateError("build index", e.indexLocation(), err)
		var ee *Error
		if errors.As(err, &ee) && ee.Kind == KindColumn {
			ee.Column = column
		}
		return nil, err
	}
	e.index = ix
	return ix, nil
}

func (e *Engine) saveIndex(ctx context.Context, ix *index.Index) error {
	switch {
	case e.opts.indexStore != nil:
		return ix.Save(ctx, e.opts.indexStore, e.opts.indexName, e.cfg.IndexCompression)
	case e.opts.index != nil && e.opts.indexPath == "":
		return nil
	}
	return ix.SaveFile(ctx, e.indexLocation(), e.cfg.IndexCompression)
}

// indexed materializes the candidate rows of the constraints from the
// mapping and checks the residual filters. Offsets come back ascending, so
// the output is in file order.
func (r *run) indexed(ctx context.Context, w *output.Writer, ix *index.Index, constraints []index.Constraint) error {
	start := time.Now()
	offs, err := ix.Query(constraints)
	if err != nil {
		return err
	}
	r.metrics.RecordIndexLookup(len(offs), time.Since(start))
	r.stats.Workers = 1
	r.src.AdviseRandom()

	data := r.src.Data()
	h := r.src.Header
	var (
		buf       []byte
		rows      int64
		processed int64
		read      int64
	)
	flush := func() error {
		r.tracker.Add(read, processed, rows)
		b := output.Batch{Seq: r.stats.Chunks, Data: buf, Rows: rows}
		buf, rows, processed, read = nil, 0, 0, 0
		if len(b.Data) == 0 {
			return nil
		}
		r.stats.Chunks++
		return w.Submit(b)
	}

	for i, off := range offs {
		if i%1024 == 0 {
			if err := context.Cause(ctx); err != nil {
				return err
			}
		}
		if off < int64(r.src.DataStart) || off >= int64(len(data)) || (off > 0 && data[off-1] != '\n') {
			return fmt.Errorf("%w: offset %d is not a row start", index.ErrOutdated, off)
		}

		line := row.LineAt(data, int(off))
		rw := row.Parse(line, off, r.cfg.Delimiter)
		r.stats.RowsProcessed++
		processed++
		read += int64(len(line)) + 1

		switch r.filter.Check(rw, h) {
		case filter.Accept:
			r.stats.RowsMatched++
			rows++
			if buf, err = r.enc.AppendRow(buf, rw); err != nil {
				return err
			}
			if len(buf) >= r.cfg.ChunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case filter.Malformed:
			r.stats.RowsMalformed++
		}
	}
	return flush()
}
