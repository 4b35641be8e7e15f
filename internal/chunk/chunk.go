// Package chunk partitions a mapped file into row-aligned byte ranges and
// runs work over them on a bounded worker pool.
package chunk

import (
	"bytes"
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Chunk is a half-open byte range [Start, End) of the source that begins at
// a row start and ends just after a newline (or at end of input).
type Chunk struct {
	Seq   int
	Start int
	End   int
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int { return c.End - c.Start }

// Split partitions data[start:] into chunks of roughly size bytes.
// Each nominal end is moved forward to the byte after the next '\n', so a
// chunk smaller than a row grows to hold that row. No row is split.
func Split(data []byte, start, size int) []Chunk {
	if size <= 0 {
		size = 1
	}
	n := len(data)
	if start >= n {
		return nil
	}

	chunks := make([]Chunk, 0, (n-start)/size+1)
	for pos := start; pos < n; {
		end := min(pos+size, n)
		if end < n && data[end-1] != '\n' {
			if i := bytes.IndexByte(data[end:], '\n'); i >= 0 {
				end += i + 1
			} else {
				end = n
			}
		}
		chunks = append(chunks, Chunk{Seq: len(chunks), Start: pos, End: end})
		pos = end
	}
	return chunks
}

// Largest returns the length of the longest chunk.
func Largest(chunks []Chunk) int {
	largest := 0
	for _, c := range chunks {
		largest = max(largest, c.Len())
	}
	return largest
}

// Scheduler runs a function over every chunk.
type Scheduler struct {
	// Parallel enables the worker pool. When false, chunks run in order on
	// the calling goroutine.
	Parallel bool
	// Threads bounds the worker pool. Zero means runtime.NumCPU().
	Threads int
	// Admit, if set, is called on the dispatching goroutine before a chunk is
	// handed to a worker. Calls happen in chunk order, so a blocking Admit
	// never lets a later chunk overtake an earlier one.
	Admit func(ctx context.Context, c Chunk) error
}

// Workers returns the effective number of workers.
func (s Scheduler) Workers() int {
	if !s.Parallel {
		return 1
	}
	if s.Threads > 0 {
		return s.Threads
	}
	return runtime.NumCPU()
}

// Run calls fn once per chunk. The first error cancels the context passed
// to the remaining calls and is returned.
func (s Scheduler) Run(ctx context.Context, chunks []Chunk, fn func(ctx context.Context, c Chunk) error) error {
	if !s.Parallel {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.admit(ctx, c); err != nil {
				return err
			}
			if err := fn(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers())

	for _, c := range chunks {
		if gctx.Err() != nil {
			break
		}
		if err := s.admit(gctx, c); err != nil {
			g.Go(func() error { return err })
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, c)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s Scheduler) admit(ctx context.Context, c Chunk) error {
	if s.Admit == nil {
		return nil
	}
	return s.Admit(ctx, c)
}
