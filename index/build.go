package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/extractor/internal/chunk"
	"github.com/hupe1980/extractor/internal/source"
	"github.com/hupe1980/extractor/row"
)

// DefaultChunkSize is the nominal chunk size used when BuildOptions.ChunkSize is zero.
const DefaultChunkSize = 1 << 20

// BuildOptions configures Build.
type BuildOptions struct {
	// Column is the primary key column.
	Column string
	// SecondaryColumns are indexed alongside the primary column.
	SecondaryColumns []string
	Delimiter        byte
	HasHeader        bool
	// ChunkSize is the nominal chunk size in bytes.
	ChunkSize int
	// Parallel scans chunks on a worker pool of Threads goroutines.
	Parallel bool
	Threads  int
	// MaxMapSize rejects larger source files. Zero means no limit.
	MaxMapSize int64
	// OnChunk, if set, is called after each chunk with its size and row count.
	OnChunk func(bytes, rows int64)
}

type partial struct {
	maps []postings
	rows int64
}

// Build scans the file at path once and indexes every data row.
//
// Chunks may be processed in parallel; partial maps are merged in chunk
// order so offsets for a repeated key stay in file order.
func Build(ctx context.Context, path string, opts BuildOptions) (*Index, error) {
	if opts.Column == "" {
		return nil, fmt.Errorf("%w: empty key column", ErrColumnNotFound)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	src, err := source.Open(path, source.Options{
		Delimiter:  opts.Delimiter,
		HasHeader:  opts.HasHeader,
		MaxMapSize: opts.MaxMapSize,
	})
	if err != nil {
		return nil, err
	}
	defer src.Close()

	columns := append([]string{opts.Column}, opts.SecondaryColumns...)
	positions := make([]int, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("index: column %q listed twice", c)
		}
		seen[c] = true

		pos, ok := src.Header.Index(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, c)
		}
		positions[i] = pos
	}

	data := src.Data()
	chunks := chunk.Split(data, src.DataStart, opts.ChunkSize)
	parts := make([]partial, len(chunks))

	sched := chunk.Scheduler{Parallel: opts.Parallel, Threads: opts.Threads}
	err = sched.Run(ctx, chunks, func(ctx context.Context, c chunk.Chunk) error {
		p := scanChunk(data[c.Start:c.End], int64(c.Start), opts.Delimiter, positions)
		parts[c.Seq] = p
		if opts.OnChunk != nil {
			opts.OnChunk(int64(c.Len()), p.rows)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	maps, rows := merge(parts, len(columns))

	meta := Metadata{
		SourceFile:  path,
		FileSize:    src.Size(),
		ModTime:     src.ModTime,
		Fingerprint: src.Fingerprint(),
		RowCount:    rows,
		Delimiter:   opts.Delimiter,
		HasHeader:   opts.HasHeader,
		BuildID:     uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
	return newIndex(meta, columns, maps), nil
}

func scanChunk(data []byte, base int64, delim byte, positions []int) partial {
	p := partial{maps: make([]postings, len(positions))}
	for i := range p.maps {
		p.maps[i] = make(postings)
	}

	sc := row.NewScanner(data, base, delim)
	for sc.Next() {
		r := sc.Row()
		p.rows++
		for i, pos := range positions {
			v, ok := r.Field(pos)
			if !ok {
				continue
			}
			m := p.maps[i]
			key := string(v)
			m[key] = append(m[key], r.Offset())
		}
	}
	return p
}

func merge(parts []partial, ncols int) ([]postings, int64) {
	maps := make([]postings, ncols)
	var rows int64

	for i := range maps {
		maps[i] = make(postings)
	}
	for _, p := range parts {
		rows += p.rows
		for i, m := range p.maps {
			dst := maps[i]
			for k, offs := range m {
				dst[k] = append(dst[k], offs...)
			}
		}
	}
	return maps, rows
}
