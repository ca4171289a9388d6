package models

import "time"

// Pipeline stage names used in timing records and logs
const (
	PhaseFetch   = "fetch"
	PhaseAnalyze = "analyze"
	PhaseRender  = "render"
	PhaseNotify  = "notify"
)

// TimingRecord stores timing and outcome data for one pipeline run.
type TimingRecord struct {
	RunID       string           `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	TotalMs     int64            `json:"total_ms"`
	Phases      map[string]int64 `json:"phases,omitempty"`
	Status      string           `json:"status"` // "success" or "failed"
	Error       string           `json:"error,omitempty"`
}

// NewTimingRecord starts a timing record for a run
func NewTimingRecord(runID string, start time.Time) *TimingRecord {
	return &TimingRecord{
		RunID:     runID,
		StartedAt: start,
		Phases:    make(map[string]int64),
	}
}

// Phase records the elapsed time of a phase that started at start
func (t *TimingRecord) Phase(name string, start time.Time) {
	t.Phases[name] = time.Since(start).Milliseconds()
}

// Complete closes the record with the run outcome
func (t *TimingRecord) Complete(err error) {
	t.CompletedAt = time.Now()
	t.TotalMs = t.CompletedAt.Sub(t.StartedAt).Milliseconds()
	t.Status = "success"
	if err != nil {
		t.Status = "failed"
		t.Error = err.Error()
	}
}
