package row

import "bytes"

// candidateDelimiters are tried by DetectDelimiter in order of preference.
var candidateDelimiters = []byte{'\t', ',', ';', '|'}

// LooksDelimited reports whether sample looks like delimited text using delim:
// it must contain the delimiter and a line break, and every complete line must
// have the same number of fields as the first one.
func LooksDelimited(sample []byte, delim byte) bool {
	if bytes.IndexByte(sample, delim) < 0 || bytes.IndexByte(sample, '\n') < 0 {
		return false
	}

	// The last line of a sample is usually cut short.
	if sample[len(sample)-1] != '\n' {
		sample = sample[:bytes.LastIndexByte(sample, '\n')+1]
	}

	expected := -1
	var spans []span
	for len(sample) > 0 {
		line, next := nextLine(sample, 0)
		sample = sample[next:]

		line = trimCR(line)
		if len(line) == 0 {
			continue
		}
		spans = split(line, delim, spans)
		if expected < 0 {
			expected = len(spans)
			continue
		}
		if len(spans) != expected {
			return false
		}
	}
	return expected > 1
}

// DetectDelimiter guesses the delimiter of sample.
func DetectDelimiter(sample []byte) (byte, bool) {
	for _, d := range candidateDelimiters {
		if LooksDelimited(sample, d) {
			return d, true
		}
	}
	return 0, false
}
