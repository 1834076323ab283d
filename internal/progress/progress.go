// Package progress tracks the live state of an in-flight batch:
// per-outcome counters, instantaneous throughput estimated from a
// bounded rolling window of completion timestamps, and the derived ETA.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/steveyegge/pagecheck/internal/types"
)

// DefaultWindowSize is the number of recent completion timestamps kept
// for throughput estimation.
const DefaultWindowSize = 20

// Tracker maintains batch counters. All methods are safe to call from
// concurrently completing units; updates are serialized by a mutex.
type Tracker struct {
	mu         sync.Mutex
	total      int
	completed  int
	failed     int
	cacheHits  int
	window     []time.Time // rolling completion timestamps, newest last
	windowSize int
	startTime  time.Time
	lastLabel  string
	started    bool
	finished   bool

	now func() time.Time // injectable for tests
}

// New creates a tracker. windowSize must be at least 2 because a single
// sample yields no inter-completion interval.
func New(windowSize int) (*Tracker, error) {
	if windowSize < 2 {
		return nil, fmt.Errorf("rolling window size must be at least 2 (got %d)", windowSize)
	}
	return &Tracker{
		windowSize: windowSize,
		now:        time.Now,
	}, nil
}

// Start fixes the batch denominator and records the start time.
func (t *Tracker) Start(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return fmt.Errorf("tracker already started")
	}
	if total < 0 {
		return fmt.Errorf("total cannot be negative (got %d)", total)
	}
	t.started = true
	t.total = total
	t.startTime = t.now()
	return nil
}

// Update records one resolved unit. Every resolution, whatever its
// outcome, contributes a timestamp to the rolling window.
func (t *Tracker) Update(status types.UnitStatus, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return fmt.Errorf("tracker not started")
	}
	if t.finished {
		return fmt.Errorf("tracker already finished")
	}

	switch status {
	case types.UnitCompleted:
		t.completed++
	case types.UnitFailed:
		t.failed++
	case types.UnitCacheHit:
		t.cacheHits++
	default:
		return fmt.Errorf("invalid outcome: %s", status)
	}
	if t.resolved() > t.total {
		return fmt.Errorf("resolved %d units but total is %d", t.resolved(), t.total)
	}

	t.lastLabel = label
	t.window = append(t.window, t.now())
	if len(t.window) > t.windowSize {
		t.window = t.window[1:]
	}
	return nil
}

func (t *Tracker) resolved() int {
	return t.completed + t.failed + t.cacheHits
}

// State is a point-in-time snapshot for rendering.
type State struct {
	Total      int
	Completed  int
	Failed     int
	CacheHits  int
	Elapsed    time.Duration
	Percent    float64
	Throughput float64 // units per second over the rolling window
	ETA        time.Duration
	ETAValid   bool // false until the window has at least 2 samples
	LastLabel  string
}

// Snapshot returns the current state without blocking producers beyond
// the counter mutex.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{
		Total:     t.total,
		Completed: t.completed,
		Failed:    t.failed,
		CacheHits: t.cacheHits,
		LastLabel: t.lastLabel,
	}
	if t.started {
		s.Elapsed = t.now().Sub(t.startTime)
	}
	if t.total > 0 {
		s.Percent = float64(t.resolved()) / float64(t.total) * 100
	}

	// Throughput is the reciprocal of the mean inter-completion time
	// over the rolling window. Under 2 samples the ETA is omitted, not
	// guessed.
	if len(t.window) >= 2 {
		span := t.window[len(t.window)-1].Sub(t.window[0])
		if span > 0 {
			s.Throughput = float64(len(t.window)-1) / span.Seconds()
		}
	}
	remaining := t.total - t.resolved()
	if s.Throughput > 0 && remaining >= 0 {
		s.ETA = time.Duration(float64(remaining) / s.Throughput * float64(time.Second))
		s.ETAValid = true
	}
	return s
}

// Render produces a single-line human-readable snapshot. It never
// returns an error; rendering is observability only.
func (t *Tracker) Render() string {
	s := t.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "%5.1f%% (%d/%d)", s.Percent, s.Completed+s.Failed+s.CacheHits, s.Total)
	fmt.Fprintf(&b, " | %s ok", color.GreenString("%d", s.Completed))
	if s.Failed > 0 {
		fmt.Fprintf(&b, " | %s failed", color.RedString("%d", s.Failed))
	} else {
		fmt.Fprintf(&b, " | %d failed", s.Failed)
	}
	fmt.Fprintf(&b, " | %s cached", color.CyanString("%d", s.CacheHits))
	fmt.Fprintf(&b, " | elapsed %s", s.Elapsed.Round(time.Second))
	if s.ETAValid {
		fmt.Fprintf(&b, " | %.2f units/s | ETA %s", s.Throughput, s.ETA.Round(time.Second))
	}
	if s.LastLabel != "" {
		fmt.Fprintf(&b, " | %s", s.LastLabel)
	}
	return b.String()
}

// Finish finalizes the tracker and returns summary stats. It may be
// called exactly once per batch.
func (t *Tracker) Finish() (types.BatchStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return types.BatchStats{}, fmt.Errorf("tracker not started")
	}
	if t.finished {
		return types.BatchStats{}, fmt.Errorf("tracker already finished")
	}
	t.finished = true

	elapsed := t.now().Sub(t.startTime)
	stats := types.BatchStats{
		Total:     t.total,
		Completed: t.completed,
		Failed:    t.failed,
		CacheHits: t.cacheHits,
		Elapsed:   elapsed,
	}
	if elapsed > 0 {
		stats.MeanThroughput = float64(t.resolved()) / elapsed.Seconds()
	}
	return stats, nil
}
