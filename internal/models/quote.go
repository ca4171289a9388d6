package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndexQuote is the latest and prior closing price of one index.
// Created by the fetcher for a single run and never mutated.
type IndexQuote struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Region     string          `json:"region,omitempty"`
	Close      decimal.Decimal `json:"close"`
	PriorClose decimal.Decimal `json:"prior_close"`
	AsOf       time.Time       `json:"as_of"` // Trading date of Close
	Currency   string          `json:"currency,omitempty"`
}

// QuoteResult is the outcome of fetching one index: exactly one of Quote or Err is set.
type QuoteResult struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name"`
	Region string      `json:"region,omitempty"`
	Quote  *IndexQuote `json:"quote,omitempty"`
	Err    error       `json:"-"`
}

// OK reports whether the fetch produced a quote
func (r QuoteResult) OK() bool {
	return r.Err == nil && r.Quote != nil
}
