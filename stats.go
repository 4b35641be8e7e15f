package extractor

import (
	"fmt"
	"time"
)

// Mode is the query path a run took.
type Mode uint8

const (
	// ModeStreaming scans every row of the input.
	ModeStreaming Mode = iota
	// ModeIndexed reads only the rows an index lookup returned.
	ModeIndexed
)

func (m Mode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeIndexed:
		return "indexed"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Stats summarizes one run.
type Stats struct {
	Mode Mode
	// RowsProcessed counts the data rows tested against the filters. In
	// indexed mode these are the index candidates.
	RowsProcessed int64
	RowsMatched   int64
	// RowsMalformed counts rows rejected because a cell could not be
	// interpreted, such as a non-numeric value under a numeric filter.
	RowsMalformed int64
	Chunks        int
	Workers       int
	InputBytes    int64
	OutputBytes   int64
	// PeakMemory is the highest number of bytes reserved by in-flight chunks.
	PeakMemory int64
	Elapsed    time.Duration
}

// RowsPerSecond returns the processing throughput.
func (s *Stats) RowsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.RowsProcessed) / s.Elapsed.Seconds()
}

// MatchRatio returns RowsMatched / RowsProcessed.
func (s *Stats) MatchRatio() float64 {
	if s.RowsProcessed == 0 {
		return 0
	}
	return float64(s.RowsMatched) / float64(s.RowsProcessed)
}

func (s *Stats) String() string {
	return fmt.Sprintf("%s: %d/%d rows matched (%d malformed) in %s, %.0f rows/s",
		s.Mode, s.RowsMatched, s.RowsProcessed, s.RowsMalformed,
		s.Elapsed.Round(time.Millisecond), s.RowsPerSecond())
}
