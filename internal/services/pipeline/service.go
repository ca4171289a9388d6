// Package pipeline runs one brief end to end: fetch, analyze, render, notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
	"github.com/ternarybob/marketbrief/internal/services/analyzer"
	"github.com/ternarybob/marketbrief/internal/services/chart"
	"github.com/ternarybob/marketbrief/internal/services/fetcher"
	"github.com/ternarybob/marketbrief/internal/services/mailer"
	"github.com/ternarybob/marketbrief/internal/services/pdf"
	"github.com/ternarybob/marketbrief/internal/services/report"
)

// ErrDelivery wraps notifier failures. The run is a failure even though a report was rendered.
var ErrDelivery = errors.New("delivery failed")

// RunResult describes one completed run
type RunResult struct {
	RunID        string
	Report       *models.Report
	Timing       *models.TimingRecord
	Delivered    bool
	FallbackPath string // Set when the HTML was saved after a failed delivery
}

// Service executes the brief pipeline. Runs share no state.
type Service struct {
	config   *common.Config
	fetcher  *fetcher.Service
	analyzer *analyzer.Service
	chart    *chart.Service
	report   *report.Service
	pdf      *pdf.Service // nil unless email.attach_pdf
	notifier interfaces.Notifier
	logger   arbor.ILogger
	now      func() time.Time
}

// NewService wires the pipeline stages around provider and notifier
func NewService(config *common.Config, provider interfaces.QuoteProvider, notifier interfaces.Notifier, logger arbor.ILogger) (*Service, error) {
	reportSvc, err := report.NewService(config.Email, logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:   config,
		fetcher:  fetcher.NewService(provider, config.Fetch, logger),
		analyzer: analyzer.NewService(logger),
		chart:    chart.NewService(logger),
		report:   reportSvc,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	if config.Email.AttachPDF {
		s.pdf = pdf.NewService(logger)
	}
	return s, nil
}

// Run executes the pipeline once.
// Symbols that fail to fetch or analyze are omitted from the report; if none
// survive, an empty-state report is still delivered. A delivery failure is
// returned wrapped in ErrDelivery along with the result.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	runID := common.NewRunID()
	logger := s.logger.WithCorrelationId(runID)
	start := s.now()
	timing := models.NewTimingRecord(runID, start)

	result := &RunResult{RunID: runID, Timing: timing}

	logger.Info().
		Str("run_id", runID).
		Int("indices", len(s.config.Indices)).
		Msg("Brief run started")

	// Fetch
	phaseStart := time.Now()
	quotes := s.fetcher.Fetch(ctx, s.config.Indices)
	timing.Phase(models.PhaseFetch, phaseStart)

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("run cancelled: %w", err)
		timing.Complete(err)
		return result, err
	}

	// Analyze
	phaseStart = time.Now()
	summaries, failures := s.analyzer.AnalyzeAll(quotes)
	insights := analyzer.Insights(summaries)
	timing.Phase(models.PhaseAnalyze, phaseStart)

	for _, f := range failures {
		logger.Warn().
			Str("symbol", f.Symbol).
			Str("stage", string(f.Stage)).
			Str("reason", f.Reason).
			Msg("Symbol omitted from brief")
	}

	// Render
	phaseStart = time.Now()
	rpt := &models.Report{
		RunID:       runID,
		GeneratedAt: start.In(s.config.Location()),
		Summaries:   summaries,
		Insights:    insights,
		Failures:    failures,
	}
	result.Report = rpt

	if png, err := s.chart.Render(summaries); err != nil {
		logger.Warn().Err(err).Msg("Failed to render chart, sending without it")
	} else {
		rpt.Chart = png
	}

	if err := s.report.Render(rpt); err != nil {
		err = fmt.Errorf("failed to render report: %w", err)
		timing.Complete(err)
		return result, err
	}

	if s.pdf != nil {
		if data, err := s.pdf.Generate(rpt); err != nil {
			logger.Warn().Err(err).Msg("Failed to generate PDF, sending without it")
		} else {
			rpt.PDF = data
		}
	}
	timing.Phase(models.PhaseRender, phaseStart)

	if rpt.IsEmpty() {
		logger.Warn().
			Int("omitted", len(failures)).
			Msg("No market data available, delivering empty-state brief")
	}

	// Notify
	phaseStart = time.Now()
	sendErr := s.notifier.Send(ctx, rpt)
	timing.Phase(models.PhaseNotify, phaseStart)

	if sendErr != nil {
		err := fmt.Errorf("%w: %w", ErrDelivery, sendErr)
		if path, saveErr := mailer.SaveHTML(s.config.Output.Dir, rpt); saveErr != nil {
			logger.Error().Err(saveErr).Msg("Failed to save brief after delivery failure")
		} else {
			result.FallbackPath = path
			logger.Warn().Str("path", path).Msg("Brief saved for manual delivery")
		}
		timing.Complete(err)
		logger.Error().
			Err(sendErr).
			Int64("total_ms", timing.TotalMs).
			Msg("Brief run failed")
		return result, err
	}

	result.Delivered = true
	timing.Complete(nil)

	logger.Info().
		Str("subject", rpt.Subject).
		Int("summaries", len(summaries)).
		Int("omitted", len(failures)).
		Str("sentiment", string(insights.Sentiment)).
		Int64("total_ms", timing.TotalMs).
		Msg("Brief run complete")

	return result, nil
}
