package extractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	st := &Stats{Mode: ModeIndexed, RowsProcessed: 1000, RowsMatched: 250, RowsMalformed: 3, Elapsed: 2 * time.Second}

	assert.InDelta(t, 500.0, st.RowsPerSecond(), 1e-9)
	assert.InDelta(t, 0.25, st.MatchRatio(), 1e-9)
	assert.Equal(t, "indexed: 250/1000 rows matched (3 malformed) in 2s, 500 rows/s", st.String())

	var zero Stats
	assert.Zero(t, zero.RowsPerSecond())
	assert.Zero(t, zero.MatchRatio())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
