package models

import (
	"github.com/shopspring/decimal"
)

// Sentiment is the overall tone of the session
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
)

// RegionAverage is the mean percent change of the indices in one region
type RegionAverage struct {
	Region         string          `json:"region"`
	AveragePercent decimal.Decimal `json:"average_percent"`
	Count          int             `json:"count"`
}

// MarketInsights are run-level statistics across all summaries.
// Total is zero when no index was analyzed.
type MarketInsights struct {
	Best           *PerformanceSummary `json:"best,omitempty"`
	Worst          *PerformanceSummary `json:"worst,omitempty"`
	AveragePercent decimal.Decimal     `json:"average_percent"`
	Regions        []RegionAverage     `json:"regions,omitempty"`
	Advancers      int                 `json:"advancers"`
	Decliners      int                 `json:"decliners"`
	Unchanged      int                 `json:"unchanged"`
	Total          int                 `json:"total"`
	Sentiment      Sentiment           `json:"sentiment,omitempty"`
}
