package row

import "bytes"

// Scanner iterates over the rows of a byte range.
//
// The Row returned by Row aliases both the input buffer and the scanner's
// field table; it must not be retained across calls to Next.
type Scanner struct {
	data  []byte
	base  int64
	delim byte
	pos   int
	spans []span
	cur   Row
}

// NewScanner returns a Scanner over data.
// base is the file offset of data[0] and is added to every row offset.
func NewScanner(data []byte, base int64, delim byte) *Scanner {
	return &Scanner{
		data:  data,
		base:  base,
		delim: delim,
		spans: make([]span, 0, 32),
	}
}

// Next advances to the next non-empty row.
// It returns false when the range is exhausted.
func (s *Scanner) Next() bool {
	for s.pos < len(s.data) {
		start := s.pos
		line, next := nextLine(s.data, start)
		s.pos = next

		line = trimCR(line)
		if len(line) == 0 {
			continue
		}

		s.spans = split(line, s.delim, s.spans)
		s.cur = Row{
			line:   line,
			offset: s.base + int64(start),
			spans:  s.spans,
		}
		return true
	}
	return false
}

// Row returns the current row.
func (s *Scanner) Row() Row { return s.cur }

// FirstLine returns the first line of data without its terminator and the
// position of the byte that follows the terminator.
func FirstLine(data []byte) (line []byte, next int) {
	line, next = nextLine(data, 0)
	return trimCR(line), next
}

// LineAt returns the row line starting at off, without its terminator.
func LineAt(data []byte, off int) []byte {
	if off < 0 || off >= len(data) {
		return nil
	}
	line, _ := nextLine(data, off)
	return trimCR(line)
}

func nextLine(data []byte, start int) ([]byte, int) {
	i := bytes.IndexByte(data[start:], '\n')
	if i < 0 {
		return data[start:], len(data)
	}
	return data[start : start+i], start + i + 1
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
