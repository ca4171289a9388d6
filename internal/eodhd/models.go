package eodhd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one trading day from the /eod endpoint. Only the fields the brief needs are kept.
// Close is decoded straight into a decimal so the published price text is not rounded
// through float64.
type Bar struct {
	Date  time.Time
	Close decimal.NullDecimal // Invalid when the API reports null
}

// UnmarshalJSON decodes {"date":"2006-01-02","close":123.45,...}
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date  string              `json:"date"`
		Close decimal.NullDecimal `json:"close"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		return fmt.Errorf("invalid bar date %q: %w", raw.Date, err)
	}
	b.Date = date
	b.Close = raw.Close
	return nil
}
