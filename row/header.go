package row

import "strconv"

// Header maps column names to field positions.
// It is built once per run and shared read-only between workers.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader creates a Header from column names.
// If a name appears more than once, the first occurrence wins.
func NewHeader(names []string) *Header {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(h.names, names)
	for i, name := range h.names {
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	return h
}

// ParseHeader builds a Header from a header line.
func ParseHeader(line []byte, delim byte) *Header {
	line = trimCR(line)
	spans := split(line, delim, nil)
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = string(line[s.start:s.end])
	}
	return NewHeader(names)
}

// PositionalHeader names n columns by their zero-based position ("0", "1", ...).
// It is used for input without a header line.
func PositionalHeader(n int) *Header {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return NewHeader(names)
}

// Index returns the position of the named column.
func (h *Header) Index(name string) (int, bool) {
	if h == nil {
		return 0, false
	}
	i, ok := h.index[name]
	return i, ok
}

// Len returns the number of columns.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Name returns the name of column i.
func (h *Header) Name(i int) string {
	if i < 0 || i >= h.Len() {
		return ""
	}
	return h.names[i]
}

// Names returns a copy of the column names in file order.
func (h *Header) Names() []string {
	out := make([]string, h.Len())
	copy(out, h.names)
	return out
}
