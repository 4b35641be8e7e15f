package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/internal/chunk"
	"github.com/hupe1980/extractor/internal/output"
	"github.com/hupe1980/extractor/internal/resource"
	"github.com/hupe1980/extractor/row"
)

// counts are the per-chunk tallies merged into Stats by the consumer.
type counts struct {
	processed int64
	matched   int64
	malformed int64
}

// stream scans every chunk of the input and hands the rendered matches to
// the writer, which restores file order. ctx is canceled by the writer when
// a write fails.
func (r *run) stream(ctx context.Context, w *output.Writer) error {
	data := r.src.Data()
	chunks := chunk.Split(data, r.src.DataStart, r.cfg.ChunkSize)

	sched := chunk.Scheduler{Parallel: r.cfg.Parallel, Threads: r.cfg.Threads}
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   memoryCeiling(r.cfg.MemoryLimit, chunk.Largest(chunks), sched.Workers()),
		IOLimitBytesPerSec: r.cfg.ReadRateLimit,
	})
	// Reserving in chunk order guarantees the chunk the writer waits for
	// always holds its reservation.
	sched.Admit = func(ctx context.Context, c chunk.Chunk) error {
		if err := rc.AcquireIO(ctx, c.Len()); err != nil {
			return err
		}
		return rc.ReserveMemory(ctx, int64(c.Len()))
	}
	r.stats.Chunks = len(chunks)
	r.stats.Workers = sched.Workers()

	batches := make(chan output.Batch, sched.Workers())
	tallies := make([]counts, len(chunks))
	werr := make(chan error, 1)
	go func() { werr <- w.Run(ctx, batches) }()

	err := sched.Run(ctx, chunks, func(ctx context.Context, c chunk.Chunk) error {
		start := time.Now()
		buf, n, err := r.scan(data[c.Start:c.End], c.Start)
		if err != nil {
			rc.ReleaseMemory(int64(c.Len()))
			return err
		}
		tallies[c.Seq] = n
		r.metrics.RecordChunk(int64(c.Len()), n.processed, time.Since(start))
		r.tracker.Add(int64(c.Len()), n.processed, n.matched)

		b := output.Batch{
			Seq:     c.Seq,
			Data:    buf,
			Rows:    n.matched,
			Release: func() { rc.ReleaseMemory(int64(c.Len())) },
		}
		select {
		case batches <- b:
			return nil
		case <-ctx.Done():
			b.Release()
			return context.Cause(ctx)
		}
	})
	close(batches)
	writeErr := <-werr

	for _, n := range tallies {
		r.stats.RowsProcessed += n.processed
		r.stats.RowsMatched += n.matched
		r.stats.RowsMalformed += n.malformed
	}
	r.stats.PeakMemory = rc.PeakMemory()

	// A write failure cancels the scan, so it is the root cause.
	if err == nil || (writeErr != nil && !errors.Is(writeErr, context.Canceled)) {
		return writeErr
	}
	return err
}

// pendingPerWorker bounds the chunks held per worker when no memory limit
// is configured, so one slow chunk cannot make the writer buffer the rest of
// the file.
const pendingPerWorker = 4

// memoryCeiling returns the reservation limit for a run. A configured limit
// is raised to the largest chunk; without one, in-flight chunks are capped
// at pendingPerWorker per worker.
func memoryCeiling(limit int64, largest, workers int) int64 {
	if limit > 0 {
		return max(limit, int64(largest))
	}
	return int64(largest) * int64(pendingPerWorker*max(workers, 1))
}

// scan filters the rows of one chunk and renders the matches.
// Rows are read in place; only matches are copied into the returned buffer.
func (r *run) scan(data []byte, base int) ([]byte, counts, error) {
	var (
		n   counts
		buf []byte
		err error
	)
	h := r.src.Header
	sc := row.NewScanner(data, int64(base), r.cfg.Delimiter)
	for sc.Next() {
		rw := sc.Row()
		n.processed++
		switch r.filter.Check(rw, h) {
		case filter.Accept:
			n.matched++
			if buf, err = r.enc.AppendRow(buf, rw); err != nil {
				return nil, n, err
			}
		case filter.Malformed:
			n.malformed++
		}
	}
	return buf, n, nil
}
