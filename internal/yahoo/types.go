// Package yahoo provides a client for the Yahoo Finance chart API.
package yahoo

import (
	"fmt"
	"time"
)

// ChartResponse is the v8 chart endpoint payload.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartResult holds one symbol's series.
type ChartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		GMTOffset          int64   `json:"gmtoffset"`
		ExchangeTimezone   string  `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// ChartError is the error object Yahoo embeds in chart responses.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Bar is one daily close.
type Bar struct {
	Date  time.Time
	Close float64
}

// APIError represents an error from the Yahoo Finance API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Yahoo Finance API error: %s: %s (status: %d, endpoint: %s)", e.Code, e.Message, e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("Yahoo Finance API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Yahoo Finance rate limit exceeded, retry after %v", e.RetryAfter)
}
