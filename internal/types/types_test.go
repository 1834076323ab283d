package types

import (
	"testing"
	"time"
)

func TestUnitStatusIsValid(t *testing.T) {
	tests := []struct {
		status UnitStatus
		want   bool
	}{
		{UnitCompleted, true},
		{UnitFailed, true},
		{UnitCacheHit, true},
		{UnitStatus("running"), false},
		{UnitStatus(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestUnitOutcomeValidate(t *testing.T) {
	unit := WorkUnit{DocumentID: "brief-2026", Index: 3, ContentRef: "page-003.png"}

	tests := []struct {
		name    string
		outcome UnitOutcome
		wantErr bool
	}{
		{
			name:    "completed with value",
			outcome: UnitOutcome{Unit: unit, Status: UnitCompleted, Value: []byte(`{}`)},
			wantErr: false,
		},
		{
			name:    "failed with cause",
			outcome: UnitOutcome{Unit: unit, Status: UnitFailed, Kind: FailureTimeout, Cause: "unit timeout after 30s"},
			wantErr: false,
		},
		{
			name:    "failed without cause",
			outcome: UnitOutcome{Unit: unit, Status: UnitFailed, Kind: FailureAnalysis},
			wantErr: true,
		},
		{
			name:    "completed with failure kind",
			outcome: UnitOutcome{Unit: unit, Status: UnitCompleted, Kind: FailureTimeout},
			wantErr: true,
		},
		{
			name:    "bogus status",
			outcome: UnitOutcome{Unit: unit, Status: UnitStatus("pending")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.outcome.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkUnitID(t *testing.T) {
	u := WorkUnit{DocumentID: "annual-report", Index: 12}
	if got := u.ID(); got != "annual-report#12" {
		t.Errorf("ID() = %q, want %q", got, "annual-report#12")
	}
}

func TestBatchStatsCacheHitRate(t *testing.T) {
	s := BatchStats{Total: 8, CacheHits: 2}
	if got := s.CacheHitRate(); got != 0.25 {
		t.Errorf("CacheHitRate() = %v, want 0.25", got)
	}

	empty := BatchStats{}
	if got := empty.CacheHitRate(); got != 0 {
		t.Errorf("CacheHitRate() on empty batch = %v, want 0", got)
	}
}

func TestBatchReportPartial(t *testing.T) {
	report := &BatchReport{
		Results: []DocumentResult{
			{DocumentID: "a"},
			{DocumentID: "b", Degraded: true},
		},
		GeneratedAt: time.Now(),
	}
	if !report.Partial() {
		t.Error("Partial() = false, want true when a document is degraded")
	}

	clean := &BatchReport{Results: []DocumentResult{{DocumentID: "a"}}}
	if clean.Partial() {
		t.Error("Partial() = true, want false when no document is degraded")
	}
}
