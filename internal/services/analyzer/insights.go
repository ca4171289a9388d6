package analyzer

import (
	"github.com/shopspring/decimal"
	"github.com/ternarybob/marketbrief/internal/models"
)

// negativeThreshold is the mean percent move below which a session reads as negative.
// Means between it and zero read as mixed.
var negativeThreshold = decimal.NewFromFloat(-0.3)

// Insights computes run-level statistics over summaries.
// Ties for best and worst go to the earlier summary. Empty input yields Total == 0.
func Insights(summaries []models.PerformanceSummary) models.MarketInsights {
	var insights models.MarketInsights
	if len(summaries) == 0 {
		return insights
	}

	type regionAcc struct {
		sum   decimal.Decimal
		count int
	}
	var regionOrder []string
	regions := make(map[string]*regionAcc)

	sum := decimal.Zero
	for i := range summaries {
		s := &summaries[i]
		sum = sum.Add(s.PercentChange)

		if insights.Best == nil || s.PercentChange.GreaterThan(insights.Best.PercentChange) {
			insights.Best = s
		}
		if insights.Worst == nil || s.PercentChange.LessThan(insights.Worst.PercentChange) {
			insights.Worst = s
		}

		switch s.Direction {
		case models.DirectionUp:
			insights.Advancers++
		case models.DirectionDown:
			insights.Decliners++
		default:
			insights.Unchanged++
		}

		if s.Region == "" {
			continue
		}
		acc, ok := regions[s.Region]
		if !ok {
			acc = &regionAcc{}
			regions[s.Region] = acc
			regionOrder = append(regionOrder, s.Region)
		}
		acc.sum = acc.sum.Add(s.PercentChange)
		acc.count++
	}

	insights.Total = len(summaries)
	insights.AveragePercent = sum.DivRound(decimal.NewFromInt(int64(len(summaries))), Precision)

	for _, name := range regionOrder {
		acc := regions[name]
		insights.Regions = append(insights.Regions, models.RegionAverage{
			Region:         name,
			AveragePercent: acc.sum.DivRound(decimal.NewFromInt(int64(acc.count)), Precision),
			Count:          acc.count,
		})
	}

	// Thresholds apply to the unrounded mean
	mean := sum.Div(decimal.NewFromInt(int64(len(summaries))))
	switch {
	case mean.IsPositive():
		insights.Sentiment = models.SentimentPositive
	case mean.LessThan(negativeThreshold):
		insights.Sentiment = models.SentimentNegative
	default:
		insights.Sentiment = models.SentimentMixed
	}

	return insights
}
