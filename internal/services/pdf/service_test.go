package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/models"
	"github.com/ternarybob/marketbrief/internal/services/analyzer"
	"github.com/ternarybob/marketbrief/internal/services/chart"
	"github.com/ternarybob/marketbrief/internal/services/report"
	"github.com/ternarybob/marketbrief/internal/common"
)

func renderedReport(t *testing.T, summaries []models.PerformanceSummary) *models.Report {
	t.Helper()
	logger := arbor.NewLogger()

	r := &models.Report{
		RunID:       "run_pdf",
		GeneratedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		Summaries:   summaries,
		Insights:    analyzer.Insights(summaries),
	}

	png, err := chart.NewService(logger).Render(summaries)
	require.NoError(t, err)
	r.Chart = png

	svc, err := report.NewService(common.EmailConfig{}, logger)
	require.NoError(t, err)
	require.NoError(t, svc.Render(r))
	return r
}

func summary(t *testing.T, symbol, name, close, prior string) models.PerformanceSummary {
	t.Helper()
	s, err := analyzer.Analyze(models.IndexQuote{
		Symbol:     symbol,
		Name:       name,
		Close:      decimal.RequireFromString(close),
		PriorClose: decimal.RequireFromString(prior),
	})
	require.NoError(t, err)
	return s
}

func validate(t *testing.T, data []byte) int {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	conf := model.NewDefaultConfiguration()
	require.NoError(t, api.Validate(bytes.NewReader(data), conf))

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	require.NoError(t, err)
	return pages
}

func TestGenerate(t *testing.T) {
	service := NewService(arbor.NewLogger())

	tests := []struct {
		name      string
		summaries []models.PerformanceSummary
	}{
		{
			name: "mixed session",
			summaries: []models.PerformanceSummary{
				summary(t, "^NSEI", "Nifty 50", "25300.25", "25100.50"),
				summary(t, "^GSPC", "S&P 500", "5800.10", "5900.20"),
				summary(t, "^DJI", "Dow Jones", "42000", "42000"),
			},
		},
		{
			name:      "empty state",
			summaries: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := renderedReport(t, tt.summaries)

			data, err := service.Generate(r)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, validate(t, data), 1)
		})
	}
}

func TestGenerate_ManyRowsPaginates(t *testing.T) {
	var summaries []models.PerformanceSummary
	for i := 0; i < 60; i++ {
		summaries = append(summaries, summary(t, "IDX", "Index", "101", "100"))
	}
	r := renderedReport(t, summaries)

	data, err := NewService(arbor.NewLogger()).Generate(r)
	require.NoError(t, err)
	assert.Greater(t, validate(t, data), 1)
}

func TestGenerate_WithoutChart(t *testing.T) {
	r := renderedReport(t, nil)
	r.Chart = nil

	data, err := NewService(arbor.NewLogger()).Generate(r)
	require.NoError(t, err)
	validate(t, data)
}

func TestGenerate_Nil(t *testing.T) {
	_, err := NewService(arbor.NewLogger()).Generate(nil)
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "A|B *x*", unescape(`A\|B \*x\*`))
	assert.Equal(t, `C:\dir`, unescape(`C:\dir`))
}

func TestRowColor(t *testing.T) {
	assert.Equal(t, upRGB, rowColor("▲ Nifty 50"))
	assert.Equal(t, downRGB, rowColor("▼ S&P 500"))
	assert.Equal(t, flatRGB, rowColor("• Dow Jones"))
}
