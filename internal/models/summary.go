package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of an index's day-over-day move
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// DirectionOf returns the direction matching the sign of d
func DirectionOf(d decimal.Decimal) Direction {
	switch d.Sign() {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// Arrow returns the glyph used in reports for the direction
func (d Direction) Arrow() string {
	switch d {
	case DirectionUp:
		return "▲"
	case DirectionDown:
		return "▼"
	default:
		return "•"
	}
}

// Color returns the hex colour used for the direction in the chart and HTML table
func (d Direction) Color() string {
	switch d {
	case DirectionUp:
		return "#27ae60"
	case DirectionDown:
		return "#e74c3c"
	default:
		return "#95a5a6"
	}
}

// PerformanceSummary is the analyzed day-over-day performance of one index.
type PerformanceSummary struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Region        string          `json:"region,omitempty"`
	Close         decimal.Decimal `json:"close"`
	PriorClose    decimal.Decimal `json:"prior_close"`
	Change        decimal.Decimal `json:"change"`         // Close - PriorClose, 2dp
	PercentChange decimal.Decimal `json:"percent_change"` // 2dp
	Direction     Direction       `json:"direction"`
	AsOf          time.Time       `json:"as_of"`
	Stale         bool            `json:"stale,omitempty"` // Close predates the last trading day
}

// FailureStage identifies where a symbol dropped out of the run
type FailureStage string

const (
	StageFetch   FailureStage = "fetch"
	StageAnalyze FailureStage = "analyze"
)

// SymbolFailure records an index omitted from the report and why
type SymbolFailure struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Stage  FailureStage `json:"stage"`
	Reason string       `json:"reason"`
}
