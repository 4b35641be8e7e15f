package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Condition.
type Kind uint8

const (
	// KindEquals matches cells equal to Text.
	KindEquals Kind = iota + 1
	// KindContains matches cells containing Text.
	KindContains
	// KindRegex matches cells matching the regular expression in Text.
	KindRegex
	// KindGreaterThan matches numeric cells greater than Number.
	KindGreaterThan
	// KindLessThan matches numeric cells less than Number.
	KindLessThan
	// KindNumericEqual matches numeric cells equal to Number.
	KindNumericEqual
	// KindNumericNotEqual matches numeric cells not equal to Number.
	KindNumericNotEqual
	// KindRange matches numeric cells between Min and Max.
	KindRange
	// KindOneOf matches cells equal to any of Values.
	KindOneOf
	// KindEmpty matches empty or all-whitespace cells.
	KindEmpty
	// KindNotEmpty matches cells with at least one non-whitespace byte.
	KindNotEmpty
)

var kindNames = map[Kind]string{
	KindEquals:          "equals",
	KindContains:        "contains",
	KindRegex:           "regex",
	KindGreaterThan:     "greater_than",
	KindLessThan:        "less_than",
	KindNumericEqual:    "numeric_equal",
	KindNumericNotEqual: "numeric_not_equal",
	KindRange:           "range",
	KindOneOf:           "one_of",
	KindEmpty:           "empty",
	KindNotEmpty:        "not_empty",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumeric reports whether the kind compares cells as numbers.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindGreaterThan, KindLessThan, KindNumericEqual, KindNumericNotEqual, KindRange:
		return true
	}
	return false
}

// Condition is a tagged value describing what a column filter tests.
// Only the fields relevant to Kind are meaningful.
type Condition struct {
	Kind      Kind
	Text      string
	Number    float64
	Min       float64
	Max       float64
	Inclusive bool
	Values    []string
}

// Equals matches cells byte-equal to v.
func Equals(v string) Condition { return Condition{Kind: KindEquals, Text: v} }

// Contains matches cells containing substr.
func Contains(substr string) Condition { return Condition{Kind: KindContains, Text: substr} }

// Regex matches cells matching pattern (RE2 syntax).
func Regex(pattern string) Condition { return Condition{Kind: KindRegex, Text: pattern} }

// GreaterThan matches cells whose numeric value is greater than v.
func GreaterThan(v float64) Condition { return Condition{Kind: KindGreaterThan, Number: v} }

// LessThan matches cells whose numeric value is less than v.
func LessThan(v float64) Condition { return Condition{Kind: KindLessThan, Number: v} }

// NumericEqual matches cells whose numeric value equals v.
func NumericEqual(v float64) Condition { return Condition{Kind: KindNumericEqual, Number: v} }

// NumericNotEqual matches cells whose numeric value differs from v.
func NumericNotEqual(v float64) Condition { return Condition{Kind: KindNumericNotEqual, Number: v} }

// Range matches cells whose numeric value lies between min and max.
func Range(min, max float64, inclusive bool) Condition {
	return Condition{Kind: KindRange, Min: min, Max: max, Inclusive: inclusive}
}

// OneOf matches cells equal to any of values.
func OneOf(values ...string) Condition {
	vs := make([]string, len(values))
	copy(vs, values)
	return Condition{Kind: KindOneOf, Values: vs}
}

// Empty matches empty or all-whitespace cells.
func Empty() Condition { return Condition{Kind: KindEmpty} }

// NotEmpty matches cells with content.
func NotEmpty() Condition { return Condition{Kind: KindNotEmpty} }

// Describe renders the condition applied to column.
func (c Condition) Describe(column string) string {
	switch c.Kind {
	case KindEquals:
		return fmt.Sprintf("%s equals '%s'", column, c.Text)
	case KindContains:
		return fmt.Sprintf("%s contains '%s'", column, c.Text)
	case KindRegex:
		return fmt.Sprintf("%s matches regex '%s'", column, c.Text)
	case KindGreaterThan:
		return fmt.Sprintf("%s > %s", column, formatFloat(c.Number))
	case KindLessThan:
		return fmt.Sprintf("%s < %s", column, formatFloat(c.Number))
	case KindNumericEqual:
		return fmt.Sprintf("%s = %s", column, formatFloat(c.Number))
	case KindNumericNotEqual:
		return fmt.Sprintf("%s != %s", column, formatFloat(c.Number))
	case KindRange:
		lo, hi := ">", "<"
		if c.Inclusive {
			lo, hi = ">=", "<="
		}
		return fmt.Sprintf("%s %s %s and %s %s", column, lo, formatFloat(c.Min), hi, formatFloat(c.Max))
	case KindOneOf:
		quoted := make([]string, len(c.Values))
		for i, v := range c.Values {
			quoted[i] = strconv.Quote(v)
		}
		return fmt.Sprintf("%s in [%s]", column, strings.Join(quoted, ", "))
	case KindEmpty:
		return column + " is empty"
	case KindNotEmpty:
		return column + " is not empty"
	default:
		return fmt.Sprintf("%s %s", column, c.Kind)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
