// Package types defines the core data model shared by the batch
// validation engine: work units, per-unit outcomes, aggregated document
// results, and the final batch report.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkUnit is one analyzable item within a batch, typically a single
// page of an exported document.
type WorkUnit struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`       // position within the document, 0-based
	ContentRef string `json:"content_ref"` // opaque reference resolvable by the expansion source
}

// ID returns a stable identifier for the unit within its batch.
func (u WorkUnit) ID() string {
	return fmt.Sprintf("%s#%d", u.DocumentID, u.Index)
}

// UnitStatus represents the terminal state of a work unit
type UnitStatus string

const (
	// UnitCompleted means the analysis function ran and returned a value
	UnitCompleted UnitStatus = "completed"
	// UnitFailed means the analysis timed out, errored, or was skipped by fail-fast
	UnitFailed UnitStatus = "failed"
	// UnitCacheHit means the result was served from the content cache
	UnitCacheHit UnitStatus = "cache_hit"
)

// IsValid checks if the status value is valid
func (s UnitStatus) IsValid() bool {
	switch s {
	case UnitCompleted, UnitFailed, UnitCacheHit:
		return true
	}
	return false
}

func (s UnitStatus) String() string {
	return string(s)
}

// FailureKind classifies why a unit failed
type FailureKind string

const (
	// FailureTimeout means the analysis exceeded the configured unit timeout
	FailureTimeout FailureKind = "timeout"
	// FailureAnalysis means the analysis function returned an error or panicked
	FailureAnalysis FailureKind = "analysis_error"
	// FailureSkipped means the unit was never submitted (fail-fast or cancellation)
	FailureSkipped FailureKind = "skipped"
)

// UnitOutcome is the resolved result of one work unit. Exactly one of
// Value (for completed/cache_hit) or Cause (for failed) is meaningful.
type UnitOutcome struct {
	Unit       WorkUnit        `json:"unit"`
	Status     UnitStatus      `json:"status"`
	Value      json.RawMessage `json:"value,omitempty"` // raw analysis output, opaque to the engine
	Kind       FailureKind     `json:"failure_kind,omitempty"`
	Cause      string          `json:"cause,omitempty"` // captured verbatim from the analyzer
	Duration   time.Duration   `json:"duration_ns,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Failed reports whether the unit ended in failure.
func (o UnitOutcome) Failed() bool {
	return o.Status == UnitFailed
}

// Validate checks that the outcome is internally consistent
func (o UnitOutcome) Validate() error {
	if !o.Status.IsValid() {
		return fmt.Errorf("invalid unit status: %s", o.Status)
	}
	if o.Status == UnitFailed && o.Cause == "" {
		return fmt.Errorf("failed outcome for %s has no cause", o.Unit.ID())
	}
	if o.Status != UnitFailed && o.Kind != "" {
		return fmt.Errorf("non-failed outcome for %s has failure kind %q", o.Unit.ID(), o.Kind)
	}
	return nil
}

// DocumentResult is the aggregated outcome for one document. It is
// computed only after every unit of the document has resolved, and it
// depends only on the set of outcomes, not on completion order.
type DocumentResult struct {
	DocumentID string        `json:"document_id"`
	Outcomes   []UnitOutcome `json:"outcomes"` // ordered by unit index
	Degraded   bool          `json:"degraded"` // true if any unit failed

	// Summary is the scorer's opaque score/violation summary. Nil when
	// the scorer itself failed; ScoreErr carries the reason.
	Summary  json.RawMessage `json:"summary,omitempty"`
	ScoreErr string          `json:"score_error,omitempty"`
}

// BatchStats are the progress tracker's final numbers for a batch.
type BatchStats struct {
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	CacheHits      int           `json:"cache_hits"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	MeanThroughput float64       `json:"mean_throughput"` // units per second over the whole batch
}

// CacheHitRate returns the fraction of units served from cache, 0 when
// the batch was empty.
func (s BatchStats) CacheHitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Total)
}

// BatchReport is the whole-batch output handed to the reporting boundary.
type BatchReport struct {
	BatchID     string           `json:"batch_id"`
	Results     []DocumentResult `json:"results"`
	Stats       BatchStats       `json:"stats"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Partial reports whether any unit in the batch failed.
func (r *BatchReport) Partial() bool {
	for i := range r.Results {
		if r.Results[i].Degraded {
			return true
		}
	}
	return false
}
