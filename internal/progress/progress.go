// Package progress reports scan progress through a throttled callback.
package progress

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the default minimum time between two updates.
const DefaultInterval = 100 * time.Millisecond

// Update is a snapshot of a running scan.
type Update struct {
	BytesDone     int64
	BytesTotal    int64
	RowsProcessed int64
	RowsMatched   int64
	Elapsed       time.Duration
	Done          bool
}

// Fraction returns BytesDone / BytesTotal in [0, 1].
func (u Update) Fraction() float64 {
	if u.BytesTotal <= 0 {
		return 1
	}
	return min(float64(u.BytesDone)/float64(u.BytesTotal), 1)
}

// Func receives progress updates. Calls are serialized.
type Func func(Update)

// Tracker accumulates counters from many workers and forwards at most one
// update per interval to the callback. A nil *Tracker is a no-op.
type Tracker struct {
	total   int64
	start   time.Time
	fn      Func
	every   rate.Sometimes
	done    atomic.Int64
	rows    atomic.Int64
	matched atomic.Int64
}

// New returns a tracker for a scan of total bytes. It returns nil when fn is
// nil so callers can skip the bookkeeping entirely.
func New(total int64, interval time.Duration, fn Func) *Tracker {
	if fn == nil {
		return nil
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		total: total,
		start: time.Now(),
		fn:    fn,
		every: rate.Sometimes{Interval: interval},
	}
}

// Add records a finished unit of work and maybe emits an update.
func (t *Tracker) Add(bytes, rows, matched int64) {
	if t == nil {
		return
	}
	t.done.Add(bytes)
	t.rows.Add(rows)
	t.matched.Add(matched)
	t.every.Do(func() { t.fn(t.snapshot(false)) })
}

// Finish emits a final update unconditionally.
func (t *Tracker) Finish() {
	if t == nil {
		return
	}
	t.fn(t.snapshot(true))
}

func (t *Tracker) snapshot(done bool) Update {
	return Update{
		BytesDone:     t.done.Load(),
		BytesTotal:    t.total,
		RowsProcessed: t.rows.Load(),
		RowsMatched:   t.matched.Load(),
		Elapsed:       time.Since(t.start),
		Done:          done,
	}
}
