package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Throttles(t *testing.T) {
	var mu sync.Mutex
	var updates []Update

	tr := New(1000, time.Hour, func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		tr.Add(100, 10, 1)
	}
	tr.Finish()

	require.Len(t, updates, 2, "first update plus the final one")
	last := updates[len(updates)-1]
	assert.True(t, last.Done)
	assert.Equal(t, int64(1000), last.BytesDone)
	assert.Equal(t, int64(100), last.RowsProcessed)
	assert.Equal(t, int64(10), last.RowsMatched)
	assert.InDelta(t, 1.0, last.Fraction(), 1e-9)
}

func TestTracker_Concurrent(t *testing.T) {
	var final Update
	tr := New(8000, time.Millisecond, func(u Update) {
		if u.Done {
			final = u
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Add(10, 1, 0)
			}
		}()
	}
	wg.Wait()
	tr.Finish()

	assert.Equal(t, int64(8000), final.BytesDone)
	assert.Equal(t, int64(800), final.RowsProcessed)
}

func TestTracker_Nil(t *testing.T) {
	tr := New(10, 0, nil)
	assert.Nil(t, tr)
	tr.Add(1, 1, 1)
	tr.Finish()
}

func TestUpdate_Fraction(t *testing.T) {
	assert.Equal(t, 1.0, Update{}.Fraction())
	assert.Equal(t, 0.5, Update{BytesDone: 5, BytesTotal: 10}.Fraction())
}
