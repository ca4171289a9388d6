package eodhd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
)

// historyWindow covers two trading days across weekends and most holiday runs.
const historyWindow = 10 * 24 * time.Hour

// Provider adapts Client to interfaces.QuoteProvider.
type Provider struct {
	client *Client
	now    func() time.Time
}

// Compile-time assertion
var _ interfaces.QuoteProvider = (*Provider)(nil)

// NewProvider creates a quote provider backed by the EODHD end-of-day endpoint.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

// Name returns "eodhd"
func (p *Provider) Name() string {
	return "eodhd"
}

// LatestCloses returns the last two daily closes for symbol.
func (p *Provider) LatestCloses(ctx context.Context, symbol string) (*models.IndexQuote, error) {
	to := p.now().UTC()
	from := to.Add(-historyWindow)

	bars, err := p.client.GetEOD(ctx, symbol, WithDateRange(from, to), WithOrder("a"))
	if err != nil {
		return nil, err
	}

	valid := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close.Valid {
			valid = append(valid, b)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date.Before(valid[j].Date) })

	if len(valid) < 2 {
		return nil, fmt.Errorf("%s: %w (got %d bars)", symbol, models.ErrInsufficientHistory, len(valid))
	}

	last := valid[len(valid)-1]
	prior := valid[len(valid)-2]

	return &models.IndexQuote{
		Symbol:     symbol,
		Close:      last.Close.Decimal,
		PriorClose: prior.Close.Decimal,
		AsOf:       last.Date,
	}, nil
}
