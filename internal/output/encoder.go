// Package output renders matching rows and writes them in source order.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hupe1980/extractor/row"
)

// Format selects the output encoding.
type Format uint8

const (
	// FormatDelimited mirrors the input bytes. With a projection, the
	// selected fields are joined with the input delimiter.
	FormatDelimited Format = iota
	// FormatCSV re-renders rows as comma separated values.
	FormatCSV
	// FormatTSV re-renders rows as tab separated values.
	FormatTSV
	// FormatJSONLines writes one JSON object per row keyed by column name.
	FormatJSONLines
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatJSONLines:
		return "jsonl"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delimited", "raw":
		return FormatDelimited, nil
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "jsonl", "json", "ndjson":
		return FormatJSONLines, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

// ErrUnknownColumn is returned when a projected column is not in the header.
var ErrUnknownColumn = errors.New("unknown output column")

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	Format Format
	// Delimiter is the input delimiter.
	Delimiter byte
	Header    *row.Header
	// HeaderLine is the raw input header, mirrored by FormatDelimited.
	HeaderLine []byte
	// Columns restricts and orders the output columns. Empty means all.
	Columns []string
}

// Encoder renders rows. It is stateless after construction and safe for
// concurrent use, so workers render their own batches.
type Encoder struct {
	format     Format
	inDelim    byte
	outDelim   byte
	header     *row.Header
	headerLine []byte
	proj       []int    // nil means every field
	names      []string // output column names
	jsonKeys   [][]byte // pre-encoded JSON keys
}

// NewEncoder validates opts and returns an Encoder.
func NewEncoder(opts EncoderOptions) (*Encoder, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	e := &Encoder{
		format:     opts.Format,
		inDelim:    opts.Delimiter,
		header:     opts.Header,
		headerLine: opts.HeaderLine,
	}

	switch opts.Format {
	case FormatDelimited:
		e.outDelim = opts.Delimiter
	case FormatCSV:
		e.outDelim = ','
	case FormatTSV:
		e.outDelim = '\t'
	case FormatJSONLines:
	default:
		return nil, fmt.Errorf("unknown output format %d", opts.Format)
	}

	if len(opts.Columns) > 0 {
		e.proj = make([]int, len(opts.Columns))
		for i, c := range opts.Columns {
			pos, ok := opts.Header.Index(c)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
			}
			e.proj[i] = pos
		}
		e.names = append([]string(nil), opts.Columns...)
	} else {
		e.names = opts.Header.Names()
	}

	if opts.Format == FormatJSONLines {
		e.jsonKeys = make([][]byte, len(e.names))
		for i, n := range e.names {
			k, err := json.Marshal(n)
			if err != nil {
				return nil, err
			}
			e.jsonKeys[i] = k
		}
	}
	return e, nil
}

// Format returns the output format.
func (e *Encoder) Format() Format { return e.format }

// AppendHeader appends the header line. JSON lines have no header.
func (e *Encoder) AppendHeader(dst []byte) []byte {
	switch {
	case e.format == FormatJSONLines:
		return dst
	case e.format == FormatDelimited && e.proj == nil && e.headerLine != nil:
		dst = append(dst, e.headerLine...)
	default:
		for i, n := range e.names {
			if i > 0 {
				dst = append(dst, e.outDelim)
			}
			dst = appendQuoted(dst, []byte(n), e.outDelim)
		}
	}
	return append(dst, '\n')
}

// AppendRow appends the rendering of r, including the line terminator.
func (e *Encoder) AppendRow(dst []byte, r row.Row) ([]byte, error) {
	if e.format == FormatDelimited && e.proj == nil {
		dst = append(dst, r.Bytes()...)
		return append(dst, '\n'), nil
	}

	if e.format == FormatJSONLines {
		return e.appendJSON(dst, r)
	}

	var scratch [128]byte
	n := e.width(r)
	for i := 0; i < n; i++ {
		if i > 0 {
			dst = append(dst, e.outDelim)
		}
		v := r.AppendValue(scratch[:0], e.field(i))
		dst = appendQuoted(dst, v, e.outDelim)
	}
	return append(dst, '\n'), nil
}

func (e *Encoder) width(r row.Row) int {
	if e.proj != nil {
		return len(e.proj)
	}
	return r.Len()
}

func (e *Encoder) field(i int) int {
	if e.proj != nil {
		return e.proj[i]
	}
	return i
}

func (e *Encoder) appendJSON(dst []byte, r row.Row) ([]byte, error) {
	var scratch [128]byte
	dst = append(dst, '{')
	for i := range e.jsonKeys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, e.jsonKeys[i]...)
		dst = append(dst, ':')

		if _, ok := r.Field(e.field(i)); !ok {
			dst = append(dst, "null"...)
			continue
		}
		v, err := json.Marshal(string(r.AppendValue(scratch[:0], e.field(i))))
		if err != nil {
			return nil, err
		}
		dst = append(dst, v...)
	}
	dst = append(dst, '}', '\n')
	return dst, nil
}

// appendQuoted appends v, quoting it when it holds the delimiter, a quote,
// a line break or leading whitespace.
func appendQuoted(dst, v []byte, delim byte) []byte {
	if !needsQuotes(v, delim) {
		return append(dst, v...)
	}
	dst = append(dst, '"')
	for _, c := range v {
		if c == '"' {
			dst = append(dst, '"')
		}
		dst = append(dst, c)
	}
	return append(dst, '"')
}

func needsQuotes(v []byte, delim byte) bool {
	if len(v) == 0 {
		return false
	}
	if v[0] == ' ' || v[0] == '\t' {
		return true
	}
	for _, c := range v {
		if c == delim || c == '"' || c == '\n' || c == '\r' {
			return true
		}
	}
	return false
}
