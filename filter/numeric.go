package filter

import (
	"strconv"
	"unsafe"
)

// epsilon is the float64 machine epsilon used for numeric equality.
const epsilon = 2.220446049250313e-16

// parseNumber parses an ASCII-trimmed cell as float64 without allocating.
func parseNumber(cell []byte) (float64, bool) {
	cell = trimSpace(cell)
	if len(cell) == 0 {
		return 0, false
	}
	// The string never outlives this call, so aliasing the cell is safe.
	v, err := strconv.ParseFloat(unsafe.String(&cell[0], len(cell)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if !isSpace(c) {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
