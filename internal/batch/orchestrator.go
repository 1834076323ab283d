// Package batch contains the orchestrator that drives a validation
// batch end to end: it expands documents into page-level work units,
// consults the content cache, dispatches misses to the worker pool,
// feeds every outcome to the progress tracker, and aggregates resolved
// outcomes into per-document results and a final batch report.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/pagecheck/internal/analyzer"
	"github.com/steveyegge/pagecheck/internal/cache"
	"github.com/steveyegge/pagecheck/internal/expand"
	"github.com/steveyegge/pagecheck/internal/pool"
	"github.com/steveyegge/pagecheck/internal/progress"
	"github.com/steveyegge/pagecheck/internal/score"
	"github.com/steveyegge/pagecheck/internal/types"
)

// Config holds orchestrator configuration and collaborators.
type Config struct {
	Cache    cache.Store
	Source   expand.Source
	Analyzer analyzer.Analyzer
	Scorer   score.Scorer // defaults to score.WeightedScorer

	Concurrency       int
	TTL               time.Duration
	UnitTimeout       time.Duration
	FailFast          bool
	RollingWindowSize int
	ValidatorVersion  string

	// RenderInterval enables periodic progress rendering to RenderTo.
	// Zero disables live rendering entirely.
	RenderInterval time.Duration
	RenderTo       io.Writer

	Logger *slog.Logger
}

// Validate checks the configuration eagerly, before any unit is
// dispatched. This is the engine's only fatal error path.
func (c *Config) Validate() error {
	if c.Cache == nil {
		return fmt.Errorf("cache store is required")
	}
	if c.Source == nil {
		return fmt.Errorf("expansion source is required")
	}
	if c.Analyzer == nil {
		return fmt.Errorf("analyzer is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1 (got %d)", c.Concurrency)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", c.TTL)
	}
	if c.UnitTimeout <= 0 {
		return fmt.Errorf("unit timeout must be positive (got %v)", c.UnitTimeout)
	}
	if c.RollingWindowSize < 2 {
		return fmt.Errorf("rolling window size must be at least 2 (got %d)", c.RollingWindowSize)
	}
	if c.ValidatorVersion == "" {
		return fmt.Errorf("validator version is required")
	}
	return nil
}

// Orchestrator runs batches. Its dispatch loop is single-threaded; only
// page analyses execute concurrently.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an orchestrator. It fails fast on invalid configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = score.WeightedScorer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With("component", "batch"),
	}, nil
}

// document is the per-document bookkeeping for one run.
type document struct {
	id        string
	units     []types.WorkUnit
	outcomes  []types.UnitOutcome // indexed by unit index
	expandErr error
}

// Run executes one batch over the given documents and always returns a
// report once started: unit failures degrade documents, they never
// abort the batch. Canceling ctx stops admission of new units but lets
// admitted work finish.
func (o *Orchestrator) Run(ctx context.Context, documentIDs []string) (*types.BatchReport, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("no documents to validate")
	}

	batchID := uuid.NewString()
	logger := o.logger.With("batch", batchID)

	// Expand every document up front so the progress denominator is
	// fixed before dispatch. A document that fails to expand still gets
	// a (degraded, empty) result rather than aborting its siblings.
	docs := make([]*document, 0, len(documentIDs))
	total := 0
	for _, id := range documentIDs {
		doc := &document{id: id}
		refs, err := o.cfg.Source.Expand(ctx, id)
		if err != nil {
			logger.Warn("document expansion failed", "document", id, "error", err)
			doc.expandErr = err
		} else {
			for i, ref := range refs {
				doc.units = append(doc.units, types.WorkUnit{
					DocumentID: id,
					Index:      i,
					ContentRef: ref,
				})
			}
			doc.outcomes = make([]types.UnitOutcome, len(doc.units))
			total += len(doc.units)
		}
		docs = append(docs, doc)
	}

	tracker, err := progress.New(o.cfg.RollingWindowSize)
	if err != nil {
		return nil, err
	}
	if err := tracker.Start(total); err != nil {
		return nil, err
	}

	workers, err := pool.New(&pool.Config{
		Concurrency: o.cfg.Concurrency,
		UnitTimeout: o.cfg.UnitTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer workers.Shutdown(true)

	stopRender := o.startRenderer(tracker)
	defer stopRender()

	var (
		mu            sync.Mutex // guards outcome slots
		wg            sync.WaitGroup
		stopAdmission atomic.Bool
	)

	record := func(doc *document, outcome types.UnitOutcome) {
		outcome.FinishedAt = time.Now()
		mu.Lock()
		doc.outcomes[outcome.Unit.Index] = outcome
		mu.Unlock()
		if err := tracker.Update(outcome.Status, outcome.Unit.ID()); err != nil {
			logger.Warn("progress update failed", "unit", outcome.Unit.ID(), "error", err)
		}
		if outcome.Failed() && o.cfg.FailFast {
			stopAdmission.Store(true)
		}
	}

	for _, doc := range docs {
		for _, unit := range doc.units {
			if ctx.Err() != nil {
				stopAdmission.Store(true)
			}
			if stopAdmission.Load() {
				record(doc, skippedOutcome(unit))
				continue
			}
			o.dispatch(ctx, unit, doc, record, workers, &wg, logger)
		}
	}

	// Every admitted unit resolves before aggregation; nothing below
	// reads an outcome slot until then.
	wg.Wait()

	results := make([]types.DocumentResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, o.aggregate(doc, logger))
	}

	stats, err := tracker.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize progress: %w", err)
	}

	report := &types.BatchReport{
		BatchID:     batchID,
		Results:     results,
		Stats:       stats,
		GeneratedAt: time.Now(),
	}
	logger.Info("batch complete",
		"documents", len(results),
		"total", stats.Total,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"cache_hits", stats.CacheHits,
		"elapsed", stats.Elapsed)
	return report, nil
}

// dispatch resolves one unit: cache hit, or pool submission with an
// asynchronous completion handler.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	unit types.WorkUnit,
	doc *document,
	record func(*document, types.UnitOutcome),
	workers *pool.Pool,
	wg *sync.WaitGroup,
	logger *slog.Logger,
) {
	content, err := o.cfg.Source.Content(unit.ContentRef)
	if err != nil {
		record(doc, types.UnitOutcome{
			Unit:   unit,
			Status: types.UnitFailed,
			Kind:   types.FailureAnalysis,
			Cause:  err.Error(),
		})
		return
	}

	key := cache.DeriveKey(content, o.cfg.ValidatorVersion)
	value, hit, err := o.cfg.Cache.Get(ctx, key, o.cfg.ValidatorVersion)
	if err != nil {
		// Cache trouble must not fail the unit; fall through to dispatch.
		logger.Warn("cache lookup failed", "unit", unit.ID(), "error", err)
	}
	if hit {
		record(doc, types.UnitOutcome{
			Unit:   unit,
			Status: types.UnitCacheHit,
			Value:  value,
		})
		return
	}

	ref := unit.ContentRef
	fut, err := workers.Submit(ctx, func(taskCtx context.Context) (json.RawMessage, error) {
		return o.cfg.Analyzer.Analyze(taskCtx, ref)
	})
	if err != nil {
		// Admission was refused (cancellation or shutdown); the unit was
		// never dispatched.
		record(doc, skippedOutcome(unit))
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		res := fut.Wait(context.Background())

		switch {
		case res.Err == nil:
			if err := o.cfg.Cache.Set(ctx, key, o.cfg.ValidatorVersion, res.Value, o.cfg.TTL); err != nil {
				logger.Warn("cache write failed", "unit", unit.ID(), "error", err)
			}
			record(doc, types.UnitOutcome{
				Unit:     unit,
				Status:   types.UnitCompleted,
				Value:    res.Value,
				Duration: res.Duration,
			})
		case res.TimedOut():
			record(doc, types.UnitOutcome{
				Unit:     unit,
				Status:   types.UnitFailed,
				Kind:     types.FailureTimeout,
				Cause:    res.Err.Error(),
				Duration: res.Duration,
			})
		default:
			// Failure cause is captured verbatim for the report; it is
			// never written to the cache.
			record(doc, types.UnitOutcome{
				Unit:     unit,
				Status:   types.UnitFailed,
				Kind:     types.FailureAnalysis,
				Cause:    res.Err.Error(),
				Duration: res.Duration,
			})
		}
	}()
}

// aggregate computes a document's result from its complete set of
// resolved outcomes. The scorer sees exactly that set, nothing more.
func (o *Orchestrator) aggregate(doc *document, logger *slog.Logger) types.DocumentResult {
	result := types.DocumentResult{
		DocumentID: doc.id,
		Outcomes:   doc.outcomes,
	}
	if doc.expandErr != nil {
		result.Degraded = true
		result.ScoreErr = fmt.Sprintf("expansion failed: %v", doc.expandErr)
		return result
	}

	for _, outcome := range doc.outcomes {
		if outcome.Failed() {
			result.Degraded = true
			break
		}
	}

	summary, err := o.cfg.Scorer.Score(doc.outcomes)
	if err != nil {
		logger.Warn("scoring failed", "document", doc.id, "error", err)
		result.ScoreErr = err.Error()
		return result
	}
	result.Summary = summary
	return result
}

func skippedOutcome(unit types.WorkUnit) types.UnitOutcome {
	return types.UnitOutcome{
		Unit:   unit,
		Status: types.UnitFailed,
		Kind:   types.FailureSkipped,
		Cause:  "not submitted: batch admission stopped",
	}
}

// startRenderer launches the live progress renderer when configured.
// Rendering is observability only; it can never affect batch state.
func (o *Orchestrator) startRenderer(tracker *progress.Tracker) func() {
	if o.cfg.RenderInterval <= 0 || o.cfg.RenderTo == nil {
		return func() {}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(o.cfg.RenderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Fprintf(o.cfg.RenderTo, "\r%s", tracker.Render())
			case <-stopCh:
				fmt.Fprintf(o.cfg.RenderTo, "\r%s\n", tracker.Render())
				return
			}
		}
	}()
	return func() {
		close(stopCh)
		<-doneCh
	}
}
