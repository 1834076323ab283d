// Package score turns a document's complete set of resolved per-unit
// outcomes into a score/violation summary. The summary is opaque to the
// batch engine, which only transports it into the report.
package score

import (
	"encoding/json"
	"fmt"

	"github.com/steveyegge/pagecheck/internal/types"
)

// Scorer consumes one document's full set of resolved outcomes. The
// orchestrator invokes it exactly once per document, only after every
// unit has resolved, and the result must not depend on outcome order.
type Scorer interface {
	Score(outcomes []types.UnitOutcome) (json.RawMessage, error)
}

// Violation is one brand-rule finding on a page.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"` // error | warning | info
	Message  string `json:"message"`
}

// pageAnalysis is the slice of the analyzer output the scorer reads.
// Unknown fields are ignored so analyzer output can grow freely.
type pageAnalysis struct {
	Violations []Violation `json:"violations"`
}

// Summary is the WeightedScorer's output shape.
type Summary struct {
	Score         int            `json:"score"` // 0-100
	Band          string         `json:"band"`  // excellent | good | needs_work | failing
	PagesAnalyzed int            `json:"pages_analyzed"`
	PagesFailed   int            `json:"pages_failed"`
	Violations    map[string]int `json:"violations"` // count per severity
}

// Severity weights subtracted from a page's base score of 100.
const (
	weightError   = 15
	weightWarning = 5
	weightInfo    = 1
)

// WeightedScorer is the default scorer: each page starts at 100, loses
// points per violation by severity, and the document score is the mean
// over the pages that produced an analysis.
type WeightedScorer struct{}

var _ Scorer = (*WeightedScorer)(nil)

// Score implements Scorer.
func (WeightedScorer) Score(outcomes []types.UnitOutcome) (json.RawMessage, error) {
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("no outcomes to score")
	}

	summary := Summary{Violations: map[string]int{}}
	total := 0
	for _, o := range outcomes {
		if o.Failed() {
			summary.PagesFailed++
			continue
		}

		var page pageAnalysis
		if err := json.Unmarshal(o.Value, &page); err != nil {
			return nil, fmt.Errorf("unreadable analysis for %s: %w", o.Unit.ID(), err)
		}

		pageScore := 100
		for _, v := range page.Violations {
			summary.Violations[v.Severity]++
			switch v.Severity {
			case "error":
				pageScore -= weightError
			case "warning":
				pageScore -= weightWarning
			default:
				pageScore -= weightInfo
			}
		}
		if pageScore < 0 {
			pageScore = 0
		}
		total += pageScore
		summary.PagesAnalyzed++
	}

	if summary.PagesAnalyzed > 0 {
		summary.Score = total / summary.PagesAnalyzed
	}
	summary.Band = band(summary.Score, summary.PagesAnalyzed)

	out, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode score summary: %w", err)
	}
	return out, nil
}

func band(score, pagesAnalyzed int) string {
	switch {
	case pagesAnalyzed == 0:
		return "failing"
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 50:
		return "needs_work"
	default:
		return "failing"
	}
}
