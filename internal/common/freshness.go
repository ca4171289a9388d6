package common

import (
	"fmt"
	"time"
)

// DefaultWorkingDays returns Monday to Friday.
func DefaultWorkingDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// FreshnessResult contains the result of a quote freshness check.
type FreshnessResult struct {
	// IsStale is true when the quote predates the oldest trading day it could reasonably be for.
	IsStale bool
	// ExpectedDay is the oldest trading day a fresh quote may carry.
	ExpectedDay time.Time
	// Reason is a human-readable explanation.
	Reason string
}

// CheckQuoteFreshness reports whether a closing price dated asOf is stale at now.
// Closes for the current session may not be published yet, so a quote is only stale
// when it is older than the last trading day before today.
func CheckQuoteFreshness(asOf time.Time, now time.Time) FreshnessResult {
	if asOf.IsZero() {
		return FreshnessResult{
			IsStale: true,
			Reason:  "quote has no date",
		}
	}

	asOfDate := dateOnly(asOf)
	expected := GetLastTradingDay(dateOnly(now).AddDate(0, 0, -1), DefaultWorkingDays(), nil)

	if asOfDate.Before(expected) {
		return FreshnessResult{
			IsStale:     true,
			ExpectedDay: expected,
			Reason: fmt.Sprintf(
				"close dated %s is older than last trading day %s",
				asOfDate.Format("2006-01-02"),
				expected.Format("2006-01-02"),
			),
		}
	}

	return FreshnessResult{
		IsStale:     false,
		ExpectedDay: expected,
		Reason:      fmt.Sprintf("close dated %s is current", asOfDate.Format("2006-01-02")),
	}
}

// IsWorkingDay checks if a given date is a working day.
// It accounts for both weekends (based on workingDays) and holidays.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	dayOfWeek := t.Weekday()
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == dayOfWeek {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	tDate := dateOnly(t)
	for _, h := range holidays {
		if tDate.Equal(dateOnly(h)) {
			return false
		}
	}

	return true
}

// GetLastTradingDay returns the most recent trading day on or before the given time.
func GetLastTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := dateOnly(t)

	// Walk backwards up to 10 days (long holiday periods like Christmas/New Year)
	for i := 0; i < 10; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}

	return dateOnly(t)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
