package filter

import "github.com/hupe1980/extractor/row"

// Func adapts a plain predicate over one cell into a Filter.
// A missing column rejects the row as Malformed.
type Func struct {
	column      string
	description string
	fn          func(cell []byte) bool
}

// NewFunc returns a Filter that calls fn with the value of column.
// fn must be safe for concurrent use.
func NewFunc(column, description string, fn func(cell []byte) bool) *Func {
	return &Func{column: column, description: description, fn: fn}
}

// Column implements Filter.
func (f *Func) Column() string { return f.column }

// Description implements Filter.
func (f *Func) Description() string { return f.description }

// Apply implements Filter.
func (f *Func) Apply(r row.Row, h *row.Header) bool {
	return f.Check(r, h) == Accept
}

// Check implements Checker.
func (f *Func) Check(r row.Row, h *row.Header) Outcome {
	cell, ok := r.FieldByName(h, f.column)
	if !ok {
		return Malformed
	}
	return outcome(f.fn(cell))
}
