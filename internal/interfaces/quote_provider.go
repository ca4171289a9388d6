package interfaces

import (
	"context"

	"github.com/ternarybob/marketbrief/internal/models"
)

// QuoteProvider retrieves closing prices from an external market-data source
type QuoteProvider interface {
	// Name identifies the provider in logs
	Name() string

	// LatestCloses returns the two most recent closes for symbol.
	// Returned quotes carry Symbol and prices; the caller fills display fields.
	LatestCloses(ctx context.Context, symbol string) (*models.IndexQuote, error)
}
