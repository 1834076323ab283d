package progress

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/pagecheck/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by a fixed step on every call, giving deterministic
// inter-completion intervals.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) tick() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestNewRejectsTinyWindow(t *testing.T) {
	_, err := New(1)
	require.Error(t, err)

	_, err = New(2)
	require.NoError(t, err)
}

func TestStartTwiceFails(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)

	require.NoError(t, tr.Start(10))
	assert.Error(t, tr.Start(10))
}

func TestUpdateBeforeStartFails(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)

	assert.Error(t, tr.Update(types.UnitCompleted, "page-001"))
}

func TestCountersAndConservation(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, tr.Start(6))

	require.NoError(t, tr.Update(types.UnitCompleted, "a#0"))
	require.NoError(t, tr.Update(types.UnitCacheHit, "a#1"))
	require.NoError(t, tr.Update(types.UnitFailed, "a#2"))
	require.NoError(t, tr.Update(types.UnitCompleted, "b#0"))

	s := tr.Snapshot()
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.CacheHits)
	assert.LessOrEqual(t, s.Completed+s.Failed, s.Total, "completed+failed never exceeds total")

	require.NoError(t, tr.Update(types.UnitCompleted, "b#1"))
	require.NoError(t, tr.Update(types.UnitFailed, "b#2"))

	stats, err := tr.Finish()
	require.NoError(t, err)
	assert.Equal(t, stats.Total, stats.Completed+stats.Failed+stats.CacheHits,
		"conservation law at completion")
}

func TestUpdateBeyondTotalFails(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, tr.Start(1))

	require.NoError(t, tr.Update(types.UnitCompleted, ""))
	assert.Error(t, tr.Update(types.UnitCompleted, ""), "resolving more units than total is a bug")
}

func TestETAUndefinedUntilTwoSamples(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, tr.Start(10))

	s := tr.Snapshot()
	assert.False(t, s.ETAValid, "no samples: ETA omitted")

	require.NoError(t, tr.Update(types.UnitCompleted, ""))
	s = tr.Snapshot()
	assert.False(t, s.ETAValid, "one sample: ETA still omitted, not guessed")

	time.Sleep(time.Millisecond)
	require.NoError(t, tr.Update(types.UnitCompleted, ""))
	s = tr.Snapshot()
	assert.True(t, s.ETAValid)
}

func TestThroughputAndETAWithFakeClock(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1000, 0), step: time.Second}
	tr.now = clock.tick

	require.NoError(t, tr.Start(10))

	// Five completions, one per second: throughput 1 unit/s.
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Update(types.UnitCompleted, ""))
	}

	s := tr.Snapshot()
	require.True(t, s.ETAValid)
	assert.InDelta(t, 1.0, s.Throughput, 0.001)
	assert.Equal(t, 5*time.Second, s.ETA, "5 remaining units at 1 unit/s")
}

func TestRollingWindowIsBounded(t *testing.T) {
	tr, err := New(3)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1000, 0), step: time.Second}
	tr.now = clock.tick

	require.NoError(t, tr.Start(100))

	// First 10 completions arrive one per second, then the batch speeds
	// up to 4 per second. A bounded window must forget the slow phase.
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.Update(types.UnitCompleted, ""))
	}
	clock.step = 250 * time.Millisecond
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.Update(types.UnitCompleted, ""))
	}

	s := tr.Snapshot()
	assert.InDelta(t, 4.0, s.Throughput, 0.001, "window of 3 reflects only the fast phase")
}

func TestFinishOnlyOnce(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, tr.Start(0))

	_, err = tr.Finish()
	require.NoError(t, err)

	_, err = tr.Finish()
	assert.Error(t, err, "Finish is callable exactly once")
}

func TestFinishStats(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1000, 0), step: time.Second}
	tr.now = clock.tick

	require.NoError(t, tr.Start(4))
	require.NoError(t, tr.Update(types.UnitCompleted, ""))
	require.NoError(t, tr.Update(types.UnitCompleted, ""))
	require.NoError(t, tr.Update(types.UnitFailed, ""))
	require.NoError(t, tr.Update(types.UnitCacheHit, ""))

	stats, err := tr.Finish()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 5*time.Second, stats.Elapsed, "start + 4 updates + finish = 5 ticks")
	assert.InDelta(t, 0.8, stats.MeanThroughput, 0.001)
}

func TestConcurrentUpdatesDoNotCorruptCounters(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)

	const n = 300
	require.NoError(t, tr.Start(n))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		status := types.UnitCompleted
		if i%3 == 0 {
			status = types.UnitFailed
		}
		go func(s types.UnitStatus) {
			defer wg.Done()
			_ = tr.Update(s, "")
		}(status)
	}
	wg.Wait()

	stats, err := tr.Finish()
	require.NoError(t, err)
	assert.Equal(t, n, stats.Completed+stats.Failed+stats.CacheHits)
	assert.Equal(t, 100, stats.Failed)
}

func TestRenderContainsCounts(t *testing.T) {
	tr, err := New(DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, tr.Start(3))
	require.NoError(t, tr.Update(types.UnitCompleted, "brief#0"))

	out := tr.Render()
	assert.True(t, strings.Contains(out, "1/3"), "render shows resolved/total: %q", out)
	assert.True(t, strings.Contains(out, "brief#0"), "render shows the last label: %q", out)
}
