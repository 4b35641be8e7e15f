package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseExpr parses a single filter expression of the forms
//
//	col=v        exact match
//	col!=n       numeric not-equal
//	col==n       numeric equal
//	col~re       regular expression
//	col^=sub     substring
//	col>n col<n  numeric comparison
//	col>=n col<=n  inclusive numeric comparison
//	col in a|b   set membership
//	col between a..b  inclusive numeric range
//	col empty / col notempty
func ParseExpr(expr string) (*ColumnFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, newError("", ErrInvalidCondition, fmt.Errorf("empty expression"))
	}

	if f, ok, err := parseWordExpr(expr); ok {
		return f, err
	}

	i := strings.IndexAny(expr, "=!~^<>")
	if i <= 0 {
		return nil, newError("", ErrInvalidCondition, fmt.Errorf("no operator in %q", expr))
	}

	col := strings.TrimSpace(expr[:i])
	rest := expr[i:]

	switch {
	case strings.HasPrefix(rest, "!="):
		return numericExpr(col, rest[2:], NumericNotEqual)
	case strings.HasPrefix(rest, "=="):
		return numericExpr(col, rest[2:], NumericEqual)
	case strings.HasPrefix(rest, ">="):
		return numericExpr(col, rest[2:], func(v float64) Condition { return Range(v, math.MaxFloat64, true) })
	case strings.HasPrefix(rest, "<="):
		return numericExpr(col, rest[2:], func(v float64) Condition { return Range(-math.MaxFloat64, v, true) })
	case strings.HasPrefix(rest, "^="):
		return New(col, Contains(rest[2:]))
	case rest[0] == '~':
		return New(col, Regex(rest[1:]))
	case rest[0] == '=':
		return New(col, Equals(rest[1:]))
	case rest[0] == '>':
		return numericExpr(col, rest[1:], GreaterThan)
	case rest[0] == '<':
		return numericExpr(col, rest[1:], LessThan)
	}
	return nil, newError(col, ErrInvalidCondition, fmt.Errorf("unknown operator in %q", expr))
}

func parseWordExpr(expr string) (*ColumnFilter, bool, error) {
	parts := strings.SplitN(expr, " ", 3)
	if len(parts) < 2 || strings.ContainsAny(parts[0], "=!~^<>") {
		return nil, false, nil
	}

	col := parts[0]
	arg := ""
	if len(parts) == 3 {
		arg = strings.TrimSpace(parts[2])
	}

	switch strings.ToLower(parts[1]) {
	case "empty":
		f, err := New(col, Empty())
		return f, true, err
	case "notempty":
		f, err := New(col, NotEmpty())
		return f, true, err
	case "in":
		if arg == "" {
			return nil, true, newError(col, ErrInvalidCondition, fmt.Errorf("empty value set"))
		}
		f, err := New(col, OneOf(strings.Split(arg, "|")...))
		return f, true, err
	case "between":
		lo, hi, found := strings.Cut(arg, "..")
		if !found {
			return nil, true, newError(col, ErrInvalidCondition, fmt.Errorf("range %q: expected min..max", arg))
		}
		min, err := parseThreshold(col, lo)
		if err != nil {
			return nil, true, err
		}
		max, err := parseThreshold(col, hi)
		if err != nil {
			return nil, true, err
		}
		f, err := New(col, Range(min, max, true))
		return f, true, err
	}
	return nil, false, nil
}

func numericExpr(col, s string, cond func(float64) Condition) (*ColumnFilter, error) {
	v, err := parseThreshold(col, s)
	if err != nil {
		return nil, err
	}
	return New(col, cond(v))
}

func parseThreshold(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, newError(col, ErrInvalidNumeric, err)
	}
	return v, nil
}
