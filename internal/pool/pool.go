// Package pool provides the bounded worker pool that executes page
// analyses. Admission is FIFO with backpressure: Submit blocks the
// caller until an execution slot frees up. Each unit runs isolated with
// its own timeout; one unit's error, panic, or overrun never affects a
// sibling.
package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnitTimeout marks a unit that exceeded the configured timeout.
	ErrUnitTimeout = errors.New("analysis timed out")

	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// Task is one unit of analysis work. The context passed to it carries
// the per-unit timeout; well-behaved tasks return promptly once it is
// canceled.
type Task func(ctx context.Context) (json.RawMessage, error)

// Result is the terminal outcome of a submitted task.
type Result struct {
	Value    json.RawMessage
	Err      error
	Duration time.Duration
}

// TimedOut reports whether the task was failed by the unit timeout.
func (r Result) TimedOut() bool {
	return errors.Is(r.Err, ErrUnitTimeout)
}

// Future delivers a task's Result exactly once.
type Future struct {
	ch chan Result
}

// Wait blocks until the result is available or ctx is canceled.
func (f *Future) Wait(ctx context.Context) Result {
	select {
	case res := <-f.ch:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Config holds worker pool configuration
type Config struct {
	// Concurrency is the maximum number of tasks executing at once.
	Concurrency int
	// UnitTimeout bounds each task's execution. On expiry the task is
	// marked failed and its slot is released; the underlying call is
	// abandoned (it is canceled via context, but the pool does not wait
	// for it to notice).
	UnitTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 4,
		UnitTimeout: 2 * time.Minute,
	}
}

// Validate checks the configuration before any work is dispatched.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1 (got %d)", c.Concurrency)
	}
	if c.UnitTimeout <= 0 {
		return fmt.Errorf("unit timeout must be positive (got %v)", c.UnitTimeout)
	}
	return nil
}

// Pool bounds concurrent task execution with a weighted semaphore.
// The semaphore is the only piece of shared mutable scheduling state.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration

	// baseCtx parents every unit context so a hard shutdown can cancel
	// in-flight work. Submission contexts only gate admission.
	baseCtx context.Context
	cancel  context.CancelFunc

	wg     sync.WaitGroup
	closed atomic.Bool

	// instrumentation
	inFlight  atomic.Int64
	peak      atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
}

// New creates a worker pool. It fails fast on invalid configuration.
func New(cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		timeout: cfg.UnitTimeout,
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Submit admits the task when a slot is free and returns a Future for
// its result. Callers are suspended while the pool is saturated, which
// is what preserves FIFO admission for a single submitting goroutine.
// ctx cancels only the wait for admission, not work already admitted.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission canceled: %w", err)
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}

	p.submitted.Add(1)
	fut := &Future{ch: make(chan Result, 1)}
	p.wg.Add(1)
	go p.run(task, fut)
	return fut, nil
}

func (p *Pool) run(task Task, fut *Future) {
	defer p.wg.Done()

	cur := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if cur <= peak || p.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer p.inFlight.Add(-1)

	start := time.Now()
	unitCtx, cancelUnit := context.WithTimeout(p.baseCtx, p.timeout)
	defer cancelUnit()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Err: fmt.Errorf("analysis panicked: %v", r)}
			}
		}()
		value, err := task(unitCtx)
		done <- Result{Value: value, Err: err}
	}()

	var res Result
	select {
	case res = <-done:
	case <-unitCtx.Done():
		// Timeout or hard shutdown. Free the logical slot now; the
		// abandoned call keeps running until it observes cancellation,
		// and its eventual result is discarded.
		if errors.Is(unitCtx.Err(), context.DeadlineExceeded) {
			res = Result{Err: fmt.Errorf("%w after %v", ErrUnitTimeout, p.timeout)}
		} else {
			res = Result{Err: fmt.Errorf("analysis aborted: %w", unitCtx.Err())}
		}
	}
	res.Duration = time.Since(start)

	p.completed.Add(1)
	p.sem.Release(1)
	fut.ch <- res
}

// Shutdown stops the pool. With drain=true it waits for in-flight work
// to finish; queued-but-not-admitted submissions are rejected with
// ErrPoolClosed. With drain=false in-flight work is canceled too.
func (p *Pool) Shutdown(drain bool) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if !drain {
		p.cancel()
	}
	p.wg.Wait()
	p.cancel()
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	InFlight  int64
	Peak      int64
	Submitted int64
	Completed int64
}

// Stats returns scheduling counters for observability and tests.
func (p *Pool) Stats() Stats {
	return Stats{
		InFlight:  p.inFlight.Load(),
		Peak:      p.peak.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
	}
}
