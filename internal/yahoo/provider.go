package yahoo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
)

// historyRange covers two trading days across weekends and short holidays.
const historyRange = "5d"

// Provider adapts Client to interfaces.QuoteProvider.
type Provider struct {
	client *Client
}

// Compile-time assertion
var _ interfaces.QuoteProvider = (*Provider)(nil)

// NewProvider creates a quote provider backed by the Yahoo chart endpoint.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Name returns "yahoo"
func (p *Provider) Name() string {
	return "yahoo"
}

// LatestCloses returns the last two daily closes for symbol.
func (p *Provider) LatestCloses(ctx context.Context, symbol string) (*models.IndexQuote, error) {
	bars, currency, err := p.client.GetDailyCloses(ctx, symbol, historyRange)
	if err != nil {
		return nil, err
	}

	if len(bars) < 2 {
		return nil, fmt.Errorf("%s: %w (got %d bars)", symbol, models.ErrInsufficientHistory, len(bars))
	}

	last := bars[len(bars)-1]
	prior := bars[len(bars)-2]

	return &models.IndexQuote{
		Symbol:     symbol,
		Close:      decimal.NewFromFloat(last.Close),
		PriorClose: decimal.NewFromFloat(prior.Close),
		AsOf:       last.Date,
		Currency:   currency,
	}, nil
}
