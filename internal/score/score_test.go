package score

import (
	"encoding/json"
	"testing"

	"github.com/steveyegge/pagecheck/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedUnit(doc string, idx int, value string) types.UnitOutcome {
	return types.UnitOutcome{
		Unit:   types.WorkUnit{DocumentID: doc, Index: idx},
		Status: types.UnitCompleted,
		Value:  json.RawMessage(value),
	}
}

func failedUnit(doc string, idx int) types.UnitOutcome {
	return types.UnitOutcome{
		Unit:   types.WorkUnit{DocumentID: doc, Index: idx},
		Status: types.UnitFailed,
		Kind:   types.FailureAnalysis,
		Cause:  "analyzer unavailable",
	}
}

func scoreOf(t *testing.T, outcomes []types.UnitOutcome) Summary {
	t.Helper()
	raw, err := WeightedScorer{}.Score(outcomes)
	require.NoError(t, err)
	var s Summary
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestCleanDocumentScoresHundred(t *testing.T) {
	s := scoreOf(t, []types.UnitOutcome{
		completedUnit("doc", 0, `{"violations":[]}`),
		completedUnit("doc", 1, `{"violations":[],"notes":"nice margins"}`),
	})

	assert.Equal(t, 100, s.Score)
	assert.Equal(t, "excellent", s.Band)
	assert.Equal(t, 2, s.PagesAnalyzed)
	assert.Equal(t, 0, s.PagesFailed)
}

func TestSeverityWeights(t *testing.T) {
	s := scoreOf(t, []types.UnitOutcome{
		completedUnit("doc", 0, `{"violations":[
			{"rule":"color-palette","severity":"error","message":"off-brand teal"},
			{"rule":"typography","severity":"warning","message":"wrong heading font"},
			{"rule":"margins","severity":"info","message":"tight gutter"}
		]}`),
	})

	// 100 - 15 - 5 - 1
	assert.Equal(t, 79, s.Score)
	assert.Equal(t, "good", s.Band)
	assert.Equal(t, map[string]int{"error": 1, "warning": 1, "info": 1}, s.Violations)
}

func TestPageScoreFloorsAtZero(t *testing.T) {
	violations := `{"violations":[` +
		`{"rule":"a","severity":"error","message":"x"},` +
		`{"rule":"b","severity":"error","message":"x"},` +
		`{"rule":"c","severity":"error","message":"x"},` +
		`{"rule":"d","severity":"error","message":"x"},` +
		`{"rule":"e","severity":"error","message":"x"},` +
		`{"rule":"f","severity":"error","message":"x"},` +
		`{"rule":"g","severity":"error","message":"x"}]}`

	s := scoreOf(t, []types.UnitOutcome{completedUnit("doc", 0, violations)})
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, "failing", s.Band)
}

func TestFailedPagesExcludedFromMean(t *testing.T) {
	s := scoreOf(t, []types.UnitOutcome{
		completedUnit("doc", 0, `{"violations":[]}`),
		failedUnit("doc", 1),
		completedUnit("doc", 2, `{"violations":[{"rule":"x","severity":"warning","message":"m"}]}`),
	})

	assert.Equal(t, 2, s.PagesAnalyzed)
	assert.Equal(t, 1, s.PagesFailed)
	assert.Equal(t, 97, s.Score, "(100+95)/2")
}

func TestAllPagesFailed(t *testing.T) {
	s := scoreOf(t, []types.UnitOutcome{failedUnit("doc", 0), failedUnit("doc", 1)})
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, "failing", s.Band)
	assert.Equal(t, 0, s.PagesAnalyzed)
}

func TestOrderIndependence(t *testing.T) {
	outcomes := []types.UnitOutcome{
		completedUnit("doc", 0, `{"violations":[]}`),
		completedUnit("doc", 1, `{"violations":[{"rule":"x","severity":"error","message":"m"}]}`),
		failedUnit("doc", 2),
	}
	reversed := []types.UnitOutcome{outcomes[2], outcomes[1], outcomes[0]}

	a, err := WeightedScorer{}.Score(outcomes)
	require.NoError(t, err)
	b, err := WeightedScorer{}.Score(reversed)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b), "score depends only on the outcome set")
}

func TestErrors(t *testing.T) {
	_, err := WeightedScorer{}.Score(nil)
	assert.Error(t, err, "empty outcome set")

	_, err = WeightedScorer{}.Score([]types.UnitOutcome{
		completedUnit("doc", 0, `not json`),
	})
	assert.Error(t, err, "unreadable analysis value")
}
