package filter

import (
	"github.com/hupe1980/extractor/row"
)

// Combined is the conjunction of its children. An empty Combined accepts
// every row.
type Combined struct {
	children []Filter
}

var (
	_ Filter      = (*Combined)(nil)
	_ Checker     = (*Combined)(nil)
	_ MultiColumn = (*Combined)(nil)
)

// And returns a filter that passes iff every child passes.
func And(children ...Filter) *Combined {
	c := &Combined{children: make([]Filter, 0, len(children))}
	for _, f := range children {
		c.Add(f)
	}
	return c
}

// Add appends f to the conjunction. Nil filters are ignored.
func (c *Combined) Add(f Filter) *Combined {
	if f != nil {
		c.children = append(c.children, f)
	}
	return c
}

// Len returns the number of direct children.
func (c *Combined) Len() int { return len(c.children) }

// Filters returns a copy of the direct children.
func (c *Combined) Filters() []Filter {
	out := make([]Filter, len(c.children))
	copy(out, c.children)
	return out
}

// Apply implements Filter.
func (c *Combined) Apply(r row.Row, h *row.Header) bool {
	return c.Check(r, h) == Accept
}

// Check evaluates children in order and stops at the first non-accepting one.
func (c *Combined) Check(r row.Row, h *row.Header) Outcome {
	for _, f := range c.children {
		if o := Evaluate(f, r, h); o != Accept {
			return o
		}
	}
	return Accept
}

// Column returns the column of the first child, or "" when empty.
func (c *Combined) Column() string {
	if len(c.children) == 0 {
		return ""
	}
	return c.children[0].Column()
}

// Columns implements MultiColumn. Duplicates are removed, order is preserved.
func (c *Combined) Columns() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range c.children {
		for _, col := range Columns(f) {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			out = append(out, col)
		}
	}
	return out
}

// Description implements Filter.
func (c *Combined) Description() string {
	if len(c.children) == 0 {
		return "true"
	}
	return "(" + Describe(c.children) + ")"
}
