// Package report is the reporting boundary: it serializes a finished
// BatchReport to JSON and renders a human-readable terminal summary.
// The engine hands over one report per batch; everything here is
// presentation.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/steveyegge/pagecheck/internal/types"
)

// WriteJSON emits the full report as indented JSON.
func WriteJSON(w io.Writer, r *types.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// summaryView is the slice of the opaque score summary the terminal
// rendering knows how to show. Missing fields just render as zero.
type summaryView struct {
	Score int    `json:"score"`
	Band  string `json:"band"`
}

// PrintSummary renders the batch outcome for humans.
func PrintSummary(w io.Writer, r *types.BatchReport) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Batch Validation Report ==="))
	fmt.Fprintf(w, "Batch:     %s\n", r.BatchID)
	fmt.Fprintf(w, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, doc := range r.Results {
		icon, paint := green("●"), green
		if doc.Degraded {
			icon, paint = red("●"), red
		}
		fmt.Fprintf(w, "  %s %s\n", icon, paint(doc.DocumentID))

		if doc.ScoreErr != "" {
			fmt.Fprintf(w, "    Score:  %s (%s)\n", gray("unavailable"), doc.ScoreErr)
		} else if doc.Summary != nil {
			var sv summaryView
			if err := json.Unmarshal(doc.Summary, &sv); err == nil {
				fmt.Fprintf(w, "    Score:  %s\n", bandColor(sv.Band)(fmt.Sprintf("%d/100 (%s)", sv.Score, sv.Band)))
			}
		}

		completed, failed, hits := 0, 0, 0
		for _, outcome := range doc.Outcomes {
			switch outcome.Status {
			case types.UnitCompleted:
				completed++
			case types.UnitFailed:
				failed++
			case types.UnitCacheHit:
				hits++
			}
		}
		fmt.Fprintf(w, "    Pages:  %d analyzed, %d cached, %d failed\n", completed, hits, failed)

		for _, outcome := range doc.Outcomes {
			if outcome.Failed() {
				fmt.Fprintf(w, "      %s page %d: %s (%s)\n",
					yellow("!"), outcome.Unit.Index+1, outcome.Cause, outcome.Kind)
			}
		}
		fmt.Fprintln(w)
	}

	stats := r.Stats
	fmt.Fprintf(w, "%s\n", cyan("Summary"))
	fmt.Fprintf(w, "  Units:      %d total | %s ok | %s failed | %s cached\n",
		stats.Total,
		green(fmt.Sprintf("%d", stats.Completed)),
		failColor(stats.Failed)(fmt.Sprintf("%d", stats.Failed)),
		gray(fmt.Sprintf("%d", stats.CacheHits)))
	fmt.Fprintf(w, "  Elapsed:    %s\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Throughput: %.2f units/s\n", stats.MeanThroughput)
	fmt.Fprintf(w, "  Cache hits: %.0f%%\n", stats.CacheHitRate()*100)
}

func bandColor(band string) func(a ...interface{}) string {
	switch band {
	case "excellent":
		return color.New(color.FgGreen).SprintFunc()
	case "good":
		return color.New(color.FgCyan).SprintFunc()
	case "needs_work":
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func failColor(failed int) func(a ...interface{}) string {
	if failed > 0 {
		return color.New(color.FgRed).SprintFunc()
	}
	return color.New(color.FgHiBlack).SprintFunc()
}
