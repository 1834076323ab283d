// Package analyzer defines the boundary to the page analysis function.
// The engine treats analysis as an opaque, slow, failure-prone black
// box; this package supplies the interface plus the production
// implementation that sends page rasters to Claude for brand-rule
// review.
package analyzer

import (
	"context"
	"encoding/json"
)

// Analyzer is the analysis function consumed by the worker pool. It
// must be safe to call from multiple goroutines with no shared state
// assumptions, and repeatedly for the same reference.
type Analyzer interface {
	// Analyze scores one page and returns its raw analysis value. An
	// error marks the unit failed; the error text is captured verbatim
	// in the unit's outcome.
	Analyze(ctx context.Context, contentRef string) (json.RawMessage, error)
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, contentRef string) (json.RawMessage, error)

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, contentRef string) (json.RawMessage, error) {
	return f(ctx, contentRef)
}
