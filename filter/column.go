package filter

import (
	"bytes"
	"fmt"
	"math"
	"regexp"

	"github.com/hupe1980/extractor/row"
)

// setThreshold is the value count above which OneOf switches from a linear
// scan to a hash set.
const setThreshold = 8

// ColumnFilter tests a single named column against a Condition.
type ColumnFilter struct {
	column string
	cond   Condition
	text   []byte
	re     *regexp.Regexp
	values [][]byte
	set    map[string]struct{}
}

var (
	_ Filter    = (*ColumnFilter)(nil)
	_ Checker   = (*ColumnFilter)(nil)
	_ IndexHint = (*ColumnFilter)(nil)
)

// New validates cond and returns a filter on column.
func New(column string, cond Condition) (*ColumnFilter, error) {
	if column == "" {
		return nil, newError(column, ErrInvalidCondition, fmt.Errorf("empty column name"))
	}

	f := &ColumnFilter{column: column, cond: cond}

	switch cond.Kind {
	case KindEquals, KindContains:
		f.text = []byte(cond.Text)
	case KindRegex:
		re, err := regexp.Compile(cond.Text)
		if err != nil {
			return nil, newError(column, ErrInvalidRegex, err)
		}
		f.re = re
	case KindGreaterThan, KindLessThan, KindNumericEqual, KindNumericNotEqual:
		if !finite(cond.Number) {
			return nil, newError(column, ErrInvalidNumeric, fmt.Errorf("threshold %v", cond.Number))
		}
	case KindRange:
		if !finite(cond.Min) || !finite(cond.Max) {
			return nil, newError(column, ErrInvalidNumeric, fmt.Errorf("range [%v, %v]", cond.Min, cond.Max))
		}
		if cond.Min > cond.Max {
			return nil, newError(column, ErrInvalidCondition, fmt.Errorf("range min %v exceeds max %v", cond.Min, cond.Max))
		}
	case KindOneOf:
		if len(cond.Values) == 0 {
			return nil, newError(column, ErrInvalidCondition, fmt.Errorf("empty value set"))
		}
		if len(cond.Values) > setThreshold {
			f.set = make(map[string]struct{}, len(cond.Values))
			for _, v := range cond.Values {
				f.set[v] = struct{}{}
			}
		} else {
			f.values = make([][]byte, len(cond.Values))
			for i, v := range cond.Values {
				f.values[i] = []byte(v)
			}
		}
	case KindEmpty, KindNotEmpty:
	default:
		return nil, newError(column, ErrInvalidCondition, fmt.Errorf("unknown kind %v", cond.Kind))
	}

	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and static
// filter tables.
func MustNew(column string, cond Condition) *ColumnFilter {
	f, err := New(column, cond)
	if err != nil {
		panic(err)
	}
	return f
}

// Condition returns the condition the filter tests.
func (f *ColumnFilter) Condition() Condition { return f.cond }

// Column implements Filter.
func (f *ColumnFilter) Column() string { return f.column }

// Description implements Filter.
func (f *ColumnFilter) Description() string { return f.cond.Describe(f.column) }

// Apply implements Filter.
func (f *ColumnFilter) Apply(r row.Row, h *row.Header) bool {
	return f.Check(r, h) == Accept
}

// Check implements Checker. A missing column or an unparsable numeric cell
// yields Malformed.
func (f *ColumnFilter) Check(r row.Row, h *row.Header) Outcome {
	cell, ok := r.FieldByName(h, f.column)
	if !ok {
		return Malformed
	}
	return f.CheckCell(cell)
}

// CheckCell evaluates the condition against a raw cell value.
func (f *ColumnFilter) CheckCell(cell []byte) Outcome {
	switch f.cond.Kind {
	case KindEquals:
		return outcome(bytes.Equal(cell, f.text))
	case KindContains:
		return outcome(bytes.Contains(cell, f.text))
	case KindRegex:
		return outcome(f.re.Match(cell))
	case KindOneOf:
		if f.set != nil {
			_, ok := f.set[string(cell)]
			return outcome(ok)
		}
		for _, v := range f.values {
			if bytes.Equal(cell, v) {
				return Accept
			}
		}
		return Reject
	case KindEmpty:
		return outcome(isBlank(cell))
	case KindNotEmpty:
		return outcome(!isBlank(cell))
	}

	v, ok := parseNumber(cell)
	if !ok {
		return Malformed
	}

	switch f.cond.Kind {
	case KindGreaterThan:
		return outcome(v > f.cond.Number)
	case KindLessThan:
		return outcome(v < f.cond.Number)
	case KindNumericEqual:
		return outcome(math.Abs(v-f.cond.Number) < epsilon)
	case KindNumericNotEqual:
		return outcome(math.Abs(v-f.cond.Number) >= epsilon)
	case KindRange:
		if f.cond.Inclusive {
			return outcome(v >= f.cond.Min && v <= f.cond.Max)
		}
		return outcome(v > f.cond.Min && v < f.cond.Max)
	}
	return Reject
}

// IndexValues implements IndexHint for Equals and OneOf conditions.
func (f *ColumnFilter) IndexValues() (string, []string, bool) {
	switch f.cond.Kind {
	case KindEquals:
		return f.column, []string{f.cond.Text}, true
	case KindOneOf:
		vs := make([]string, len(f.cond.Values))
		copy(vs, f.cond.Values)
		return f.column, vs, true
	}
	return "", nil, false
}

func (f *ColumnFilter) String() string { return f.Description() }

func outcome(ok bool) Outcome {
	if ok {
		return Accept
	}
	return Reject
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
