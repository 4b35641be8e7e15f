package filter

import (
	"strings"

	"github.com/hupe1980/extractor/row"
)

// Outcome is the result of evaluating a filter against a single row.
type Outcome uint8

const (
	// Reject means the row does not satisfy the filter.
	Reject Outcome = iota
	// Accept means the row satisfies the filter.
	Accept
	// Malformed means the cell could not be interpreted. The row is rejected
	// and counted as a data-quality problem.
	Malformed
)

// Filter is a predicate over a row.
// Implementations must be safe for concurrent use by multiple goroutines.
type Filter interface {
	// Apply reports whether the row satisfies the filter.
	Apply(r row.Row, h *row.Header) bool
	// Column returns the name of the column the filter reads.
	Column() string
	// Description returns a human-readable form of the filter.
	Description() string
}

// Checker is implemented by filters that distinguish malformed cells from
// plain mismatches.
type Checker interface {
	Check(r row.Row, h *row.Header) Outcome
}

// MultiColumn is implemented by filters that read more than one column.
type MultiColumn interface {
	Columns() []string
}

// IndexHint is implemented by filters that can be answered by an exact-match
// index lookup: the row passes iff the column equals one of values.
type IndexHint interface {
	IndexValues() (column string, values []string, ok bool)
}

// Evaluate runs f against r, preferring Check when f implements Checker.
func Evaluate(f Filter, r row.Row, h *row.Header) Outcome {
	if c, ok := f.(Checker); ok {
		return c.Check(r, h)
	}
	if f.Apply(r, h) {
		return Accept
	}
	return Reject
}

// Columns returns every column read by f.
func Columns(f Filter) []string {
	if mc, ok := f.(MultiColumn); ok {
		return mc.Columns()
	}
	if c := f.Column(); c != "" {
		return []string{c}
	}
	return nil
}

// Flatten expands nested Combined filters into their leaves, preserving order.
// AND is associative, so the flattened list accepts exactly the same rows.
func Flatten(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if c, ok := f.(*Combined); ok {
			out = append(out, Flatten(c.children)...)
			continue
		}
		out = append(out, f)
	}
	return out
}

// Describe joins the descriptions of filters with " AND ".
func Describe(filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.Description()
	}
	return strings.Join(parts, " AND ")
}
