package extractor

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metric/prom provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordProcess is called after each run. mode is "streaming" or
	// "indexed"; st is nil if the run failed before producing stats.
	RecordProcess(mode string, st *Stats, err error)

	// RecordChunk is called after each chunk has been filtered.
	RecordChunk(bytes, rows int64, duration time.Duration)

	// RecordIndexBuild is called after each index build.
	RecordIndexBuild(rows int64, duration time.Duration, err error)

	// RecordIndexLookup is called after an indexed run resolved its candidates.
	RecordIndexLookup(candidates int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordProcess(string, *Stats, error)           {}
func (NoopMetricsCollector) RecordChunk(int64, int64, time.Duration)       {}
func (NoopMetricsCollector) RecordIndexBuild(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordIndexLookup(int, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ProcessCount      atomic.Int64
	ProcessErrors     atomic.Int64
	IndexedRuns       atomic.Int64
	RowsProcessed     atomic.Int64
	RowsMatched       atomic.Int64
	RowsMalformed     atomic.Int64
	ChunkCount        atomic.Int64
	ChunkBytes        atomic.Int64
	ChunkTotalNanos   atomic.Int64
	IndexBuilds       atomic.Int64
	IndexBuildErrors  atomic.Int64
	IndexLookups      atomic.Int64
	IndexCandidates   atomic.Int64
	ProcessTotalNanos atomic.Int64
}

// RecordProcess implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProcess(mode string, st *Stats, err error) {
	b.ProcessCount.Add(1)
	if err != nil {
		b.ProcessErrors.Add(1)
		return
	}
	if mode == ModeIndexed.String() {
		b.IndexedRuns.Add(1)
	}
	if st != nil {
		b.RowsProcessed.Add(st.RowsProcessed)
		b.RowsMatched.Add(st.RowsMatched)
		b.RowsMalformed.Add(st.RowsMalformed)
		b.ProcessTotalNanos.Add(st.Elapsed.Nanoseconds())
	}
}

// RecordChunk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunk(bytes, _ int64, duration time.Duration) {
	b.ChunkCount.Add(1)
	b.ChunkBytes.Add(bytes)
	b.ChunkTotalNanos.Add(duration.Nanoseconds())
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(_ int64, _ time.Duration, err error) {
	b.IndexBuilds.Add(1)
	if err != nil {
		b.IndexBuildErrors.Add(1)
	}
}

// RecordIndexLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexLookup(candidates int, _ time.Duration) {
	b.IndexLookups.Add(1)
	b.IndexCandidates.Add(int64(candidates))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ProcessCount:     b.ProcessCount.Load(),
		ProcessErrors:    b.ProcessErrors.Load(),
		IndexedRuns:      b.IndexedRuns.Load(),
		RowsProcessed:    b.RowsProcessed.Load(),
		RowsMatched:      b.RowsMatched.Load(),
		RowsMalformed:    b.RowsMalformed.Load(),
		ChunkCount:       b.ChunkCount.Load(),
		ChunkBytes:       b.ChunkBytes.Load(),
		ChunkAvgNanos:    avg(b.ChunkTotalNanos.Load(), b.ChunkCount.Load()),
		IndexBuilds:      b.IndexBuilds.Load(),
		IndexBuildErrors: b.IndexBuildErrors.Load(),
		IndexLookups:     b.IndexLookups.Load(),
		IndexCandidates:  b.IndexCandidates.Load(),
		ProcessAvgNanos:  avg(b.ProcessTotalNanos.Load(), b.ProcessCount.Load()-b.ProcessErrors.Load()),
	}
}

func avg(total, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ProcessCount     int64
	ProcessErrors    int64
	IndexedRuns      int64
	RowsProcessed    int64
	RowsMatched      int64
	RowsMalformed    int64
	ChunkCount       int64
	ChunkBytes       int64
	ChunkAvgNanos    int64
	IndexBuilds      int64
	IndexBuildErrors int64
	IndexLookups     int64
	IndexCandidates  int64
	ProcessAvgNanos  int64
}
