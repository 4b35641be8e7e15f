package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultBufferSize is the size of the write buffer.
const DefaultBufferSize = 256 << 10

// Batch is the rendered output of one chunk.
type Batch struct {
	Seq  int
	Data []byte
	Rows int64
	// Release, if set, is called once the batch has been written.
	Release func()
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Encoder *Encoder
	// Header writes the encoder's header line before the first batch.
	Header bool
	// Append opens an existing file for appending. The header is skipped
	// when the file is not empty.
	Append     bool
	BufferSize int
	// OnError, if set, is called by Run with the first write failure so
	// producers can be stopped early.
	OnError func(error)
}

// Writer is the single consumer of rendered batches. Batches may arrive in
// any order; they are written strictly by ascending Seq.
//
// A Writer is not safe for concurrent use; only the consuming goroutine may
// call Submit.
type Writer struct {
	bw      *bufio.Writer
	file    *os.File
	closer  io.Closer
	next    int
	pending map[int]Batch
	written int64
	rows    int64
	closed  bool
	onError func(error)
}

// Create opens path for writing and returns a Writer over it.
func Create(path string, opts WriterOptions) (*Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if opts.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	if opts.Append && opts.Header {
		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if fi.Size() > 0 {
			opts.Header = false
		}
	}

	w, err := newWriter(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	w.closer = f
	return w, nil
}

// NewWriter returns a Writer over dst. If dst is an io.Closer it is closed
// by Close.
func NewWriter(dst io.Writer, opts WriterOptions) (*Writer, error) {
	w, err := newWriter(dst, opts)
	if err != nil {
		return nil, err
	}
	if c, ok := dst.(io.Closer); ok {
		w.closer = c
	}
	return w, nil
}

func newWriter(dst io.Writer, opts WriterOptions) (*Writer, error) {
	if opts.Encoder == nil {
		return nil, errors.New("output: nil encoder")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	w := &Writer{
		bw:      bufio.NewWriterSize(dst, opts.BufferSize),
		pending: make(map[int]Batch),
		onError: opts.OnError,
	}

	if opts.Header {
		if err := w.write(opts.Encoder.AppendHeader(nil)); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.bw.Write(p)
	w.written += int64(n)
	return err
}

// Submit accepts a batch and writes every batch that is now in sequence.
func (w *Writer) Submit(b Batch) error {
	if w.closed {
		return errors.New("output: writer closed")
	}
	if b.Seq < w.next {
		return fmt.Errorf("output: duplicate batch %d", b.Seq)
	}
	if _, dup := w.pending[b.Seq]; dup {
		return fmt.Errorf("output: duplicate batch %d", b.Seq)
	}
	w.pending[b.Seq] = b

	for {
		nb, ok := w.pending[w.next]
		if !ok {
			return nil
		}
		delete(w.pending, w.next)
		w.next++

		err := w.write(nb.Data)
		w.rows += nb.Rows
		if nb.Release != nil {
			nb.Release()
		}
		if err != nil {
			return err
		}
	}
}

// Run consumes batches from in until it is closed or ctx is done.
// After an error it keeps draining in, releasing batches without writing
// them, so producers never block.
func (w *Writer) Run(ctx context.Context, in <-chan Batch) error {
	var failed error
	for {
		select {
		case b, ok := <-in:
			if !ok {
				return failed
			}
			if failed != nil {
				if b.Release != nil {
					b.Release()
				}
				continue
			}
			failed = w.Submit(b)
			if failed != nil && w.onError != nil {
				w.onError(failed)
			}
		case <-ctx.Done():
			if failed == nil {
				failed = ctx.Err()
			}
			w.drain(in)
			return failed
		}
	}
}

func (w *Writer) drain(in <-chan Batch) {
	for {
		select {
		case b, ok := <-in:
			if !ok {
				return
			}
			if b.Release != nil {
				b.Release()
			}
		default:
			return
		}
	}
}

// Pending returns the number of batches waiting for an earlier sequence number.
func (w *Writer) Pending() int { return len(w.pending) }

// BytesWritten returns the number of bytes written so far, header included.
func (w *Writer) BytesWritten() int64 { return w.written }

// RowsWritten returns the number of rows written so far.
func (w *Writer) RowsWritten() int64 { return w.rows }

// Close flushes buffered data, syncs files and closes the destination.
// It fails if batches are still waiting for a missing predecessor.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if n := len(w.pending); n > 0 {
		errs = append(errs, fmt.Errorf("output: %d batches missing predecessor %d", n, w.next))
		for _, b := range w.pending {
			if b.Release != nil {
				b.Release()
			}
		}
		clear(w.pending)
	}
	if err := w.bw.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
