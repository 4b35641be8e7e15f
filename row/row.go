package row

import "bytes"

// span is a half-open byte range [start, end) relative to the row.
type span struct {
	start int
	end   int
}

// Row is an immutable view of one delimited row.
//
// A Row produced by a Scanner shares its field table with the scanner and is
// only valid until the next call to Scanner.Next. Use Clone to retain it.
type Row struct {
	line   []byte
	offset int64
	spans  []span
}

// Parse splits line into fields and returns a Row that owns its field table.
// Scanner is the allocation-free alternative for bulk scans.
func Parse(line []byte, offset int64, delim byte) Row {
	return Row{
		line:   line,
		offset: offset,
		spans:  split(line, delim, nil),
	}
}

// Bytes returns the raw row without its line terminator.
func (r Row) Bytes() []byte { return r.line }

// Offset returns the byte offset of the row start in the source file.
func (r Row) Offset() int64 { return r.offset }

// Len returns the number of fields in the row.
func (r Row) Len() int { return len(r.spans) }

// Field returns the value of field i.
// The second result is false if the row has fewer than i+1 fields.
func (r Row) Field(i int) ([]byte, bool) {
	if i < 0 || i >= len(r.spans) {
		return nil, false
	}
	s := r.spans[i]
	return r.line[s.start:s.end:s.end], true
}

// Quoted reports whether field i was enclosed in quotes in the source.
func (r Row) Quoted(i int) bool {
	if i < 0 || i >= len(r.spans) {
		return false
	}
	start := r.spans[i].start
	return start > 0 && r.line[start-1] == '"'
}

// AppendValue appends the logical value of field i to dst: for quoted
// fields, doubled quotes collapse to one.
func (r Row) AppendValue(dst []byte, i int) []byte {
	v, ok := r.Field(i)
	if !ok {
		return dst
	}
	if !r.Quoted(i) || bytes.IndexByte(v, '"') < 0 {
		return append(dst, v...)
	}
	for j := 0; j < len(v); j++ {
		dst = append(dst, v[j])
		if v[j] == '"' && j+1 < len(v) && v[j+1] == '"' {
			j++
		}
	}
	return dst
}

// FieldByName resolves name through h and returns the field value.
func (r Row) FieldByName(h *Header, name string) ([]byte, bool) {
	idx, ok := h.Index(name)
	if !ok {
		return nil, false
	}
	return r.Field(idx)
}

// AppendFields appends every field value to dst and returns the extended slice.
func (r Row) AppendFields(dst [][]byte) [][]byte {
	for _, s := range r.spans {
		dst = append(dst, r.line[s.start:s.end:s.end])
	}
	return dst
}

// Clone returns a Row that owns a private copy of its bytes and field table.
func (r Row) Clone() Row {
	line := bytes.Clone(r.line)
	spans := make([]span, len(r.spans))
	copy(spans, r.spans)
	return Row{line: line, offset: r.offset, spans: spans}
}

// UnterminatedQuote reports whether a quoted field of line is never closed.
func UnterminatedQuote(line []byte, delim byte) bool {
	n := len(line)
	i := 0
	for i <= n {
		if i < n && line[i] == '"' {
			j := i + 1
			for ; j < n; j++ {
				if line[j] != '"' {
					continue
				}
				if j+1 < n && line[j+1] == '"' {
					j++
					continue
				}
				break
			}
			if j >= n {
				return true
			}
			i = j + 1
		}
		d := bytes.IndexByte(line[i:], delim)
		if d < 0 {
			return false
		}
		i += d + 1
	}
	return false
}

func split(line []byte, delim byte, spans []span) []span {
	spans = spans[:0]
	n := len(line)
	i := 0

	for {
		if i < n && line[i] == '"' {
			start := i + 1
			j := start
			for j < n {
				if line[j] == '"' {
					if j+1 < n && line[j+1] == '"' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			spans = append(spans, span{start: start, end: min(j, n)})

			// Anything between the closing quote and the delimiter is ignored.
			k := min(j+1, n)
			d := bytes.IndexByte(line[k:], delim)
			if d < 0 {
				return spans
			}
			i = k + d + 1
			continue
		}

		d := bytes.IndexByte(line[i:], delim)
		if d < 0 {
			return append(spans, span{start: i, end: n})
		}
		spans = append(spans, span{start: i, end: i + d})
		i += d + 1
	}
}
