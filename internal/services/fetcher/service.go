// Package fetcher retrieves the latest closes for the configured indices.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of fetch workers when none is configured.
	DefaultConcurrency = 4

	// DefaultTimeout bounds a single symbol fetch when none is configured.
	DefaultTimeout = 15 * time.Second
)

// Service fetches quotes for many indices with bounded concurrency.
type Service struct {
	provider    interfaces.QuoteProvider
	logger      arbor.ILogger
	concurrency int
	timeout     time.Duration
}

// NewService creates a fetcher over provider.
func NewService(provider interfaces.QuoteProvider, config common.FetchConfig, logger arbor.ILogger) *Service {
	s := &Service{
		provider:    provider,
		logger:      logger,
		concurrency: config.Concurrency,
		timeout:     config.Timeout.Duration,
	}
	if s.concurrency < 1 {
		s.concurrency = DefaultConcurrency
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s
}

// Fetch returns one result per index, in the order given.
// A failing symbol is reported in its result and never stops the others.
func (s *Service) Fetch(ctx context.Context, indices []common.Index) []models.QuoteResult {
	results := make([]models.QuoteResult, len(indices))
	if len(indices) == 0 {
		return results
	}

	numWorkers := s.concurrency
	if numWorkers > len(indices) {
		numWorkers = len(indices)
	}

	s.logger.Info().
		Str("provider", s.provider.Name()).
		Int("indices", len(indices)).
		Int("num_workers", numWorkers).
		Msg("Fetching quotes")

	var g errgroup.Group
	g.SetLimit(numWorkers)
	for i, index := range indices {
		g.Go(func() error {
			// Each goroutine owns its slot; failures live in the result
			results[i] = s.fetchOne(ctx, i, index)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	s.logger.Info().
		Int("fetched", len(results)-failed).
		Int("failed", failed).
		Msg("Fetch complete")

	return results
}

// fetchOne fetches a single index under the per-symbol timeout.
func (s *Service) fetchOne(ctx context.Context, position int, index common.Index) (result models.QuoteResult) {
	result = models.QuoteResult{
		Symbol: index.Symbol,
		Name:   index.Name,
		Region: index.Region,
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Quote = nil
			result.Err = fmt.Errorf("provider panic: %v", r)
		}
		if result.Err != nil {
			s.logger.Warn().
				Err(result.Err).
				Str("symbol", index.Symbol).
				Int("position", position).
				Int64("elapsed_ms", time.Since(start).Milliseconds()).
				Msg("Failed to fetch quote, symbol omitted")
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	quote, err := s.provider.LatestCloses(fetchCtx, index.Symbol)
	if err != nil {
		result.Err = err
		return result
	}
	if quote == nil {
		result.Err = fmt.Errorf("%s: %w (empty response)", index.Symbol, models.ErrInsufficientHistory)
		return result
	}

	// The provider knows prices; display fields come from configuration
	q := *quote
	q.Symbol = index.Symbol
	q.Name = index.Name
	q.Region = index.Region
	result.Quote = &q

	s.logger.Debug().
		Str("symbol", index.Symbol).
		Str("close", q.Close.String()).
		Str("prior_close", q.PriorClose.String()).
		Int("position", position).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Quote fetched")

	return result
}
