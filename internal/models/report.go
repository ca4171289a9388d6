package models

import (
	"time"
)

// ChartContentID is the Content-ID the HTML body uses to reference the inline chart
const ChartContentID = "chart"

// Report is the rendered brief for one run. Assembled once, delivered once, not retained.
type Report struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Subject     string               `json:"subject"`
	Summaries   []PerformanceSummary `json:"summaries"`
	Insights    MarketInsights       `json:"insights"`
	Failures    []SymbolFailure      `json:"failures,omitempty"`
	Chart       []byte               `json:"-"` // PNG
	Markdown    string               `json:"-"`
	HTMLBody    string               `json:"-"`
	TextBody    string               `json:"-"`
	PDF         []byte               `json:"-"` // Optional
}

// IsEmpty reports whether the report carries no index summaries
func (r *Report) IsEmpty() bool {
	return r == nil || len(r.Summaries) == 0
}
