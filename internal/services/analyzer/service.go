// Package analyzer turns fetched quotes into day-over-day performance summaries.
package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/models"
)

var (
	// ErrZeroPriorClose is returned when the prior close is zero and no percentage exists.
	ErrZeroPriorClose = errors.New("prior close is zero")

	// ErrInvalidPrice is returned for negative prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// Precision is the number of decimal places reported for changes.
const Precision = 2

var hundred = decimal.NewFromInt(100)

// Analyze computes the performance summary of one quote.
// The direction follows the sign of the rounded percentage, so a move that
// rounds to 0.00% is reported flat.
func Analyze(quote models.IndexQuote) (models.PerformanceSummary, error) {
	if quote.Close.IsNegative() || quote.PriorClose.IsNegative() {
		return models.PerformanceSummary{}, fmt.Errorf("%s: %w: close=%s prior=%s",
			quote.Symbol, ErrInvalidPrice, quote.Close, quote.PriorClose)
	}
	if quote.PriorClose.IsZero() {
		return models.PerformanceSummary{}, fmt.Errorf("%s: %w", quote.Symbol, ErrZeroPriorClose)
	}

	diff := quote.Close.Sub(quote.PriorClose)
	// DivRound rounds half away from zero
	percent := diff.Mul(hundred).DivRound(quote.PriorClose, Precision)

	return models.PerformanceSummary{
		Symbol:        quote.Symbol,
		Name:          quote.Name,
		Region:        quote.Region,
		Close:         quote.Close.Round(Precision),
		PriorClose:    quote.PriorClose.Round(Precision),
		Change:        diff.Round(Precision),
		PercentChange: percent,
		Direction:     models.DirectionOf(percent),
		AsOf:          quote.AsOf,
	}, nil
}

// Service analyzes a run's fetch results.
type Service struct {
	logger arbor.ILogger
	now    func() time.Time
}

// NewService creates an analyzer
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger, now: time.Now}
}

// AnalyzeAll converts fetch results into summaries, keeping input order.
// Fetch and analysis failures become SymbolFailure records instead of summaries.
func (s *Service) AnalyzeAll(results []models.QuoteResult) ([]models.PerformanceSummary, []models.SymbolFailure) {
	summaries := make([]models.PerformanceSummary, 0, len(results))
	var failures []models.SymbolFailure

	now := s.now()
	for _, r := range results {
		if !r.OK() {
			reason := "no quote returned"
			if r.Err != nil {
				reason = r.Err.Error()
			}
			failures = append(failures, models.SymbolFailure{
				Symbol: r.Symbol,
				Name:   r.Name,
				Stage:  models.StageFetch,
				Reason: reason,
			})
			continue
		}

		summary, err := Analyze(*r.Quote)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("symbol", r.Symbol).
				Msg("Failed to analyze quote, symbol omitted")
			failures = append(failures, models.SymbolFailure{
				Symbol: r.Symbol,
				Name:   r.Name,
				Stage:  models.StageAnalyze,
				Reason: err.Error(),
			})
			continue
		}

		if !summary.AsOf.IsZero() {
			freshness := common.CheckQuoteFreshness(summary.AsOf, now)
			if freshness.IsStale {
				summary.Stale = true
				s.logger.Warn().
					Str("symbol", r.Symbol).
					Str("reason", freshness.Reason).
					Msg("Quote is stale")
			}
		}

		summaries = append(summaries, summary)
	}

	s.logger.Info().
		Int("analyzed", len(summaries)).
		Int("omitted", len(failures)).
		Msg("Analysis complete")

	return summaries, failures
}
