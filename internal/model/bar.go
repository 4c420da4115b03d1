package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date format used by every input and output table.
const DateLayout = "2006-01-02"

// DailyBar is one company's close, volume and dividend for a single calendar day.
// A zero Date marks a row whose date could not be parsed; such rows are dropped
// before aggregation.
type DailyBar struct {
	CompanyID string    `json:"company_id"`
	Date      time.Time `json:"date"` // midnight UTC, no time component
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Dividend  float64   `json:"dividend"` // 0 when none paid
}

// HasDate reports whether the bar carries a usable calendar date.
func (b *DailyBar) HasDate() bool {
	return !b.Date.IsZero()
}

// Key returns "company:YYYY-MM-DD".
func (b *DailyBar) Key() string {
	return b.CompanyID + ":" + b.Date.Format(DateLayout)
}

// JSON returns the JSON-encoded bar.
func (b *DailyBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// ParseDate parses a date string using its first ten characters, so both
// "2024-03-31" and "2024-03-31 00:00:00-04:00" are accepted. The second return
// is false for anything unparseable.
func ParseDate(s string) (time.Time, bool) {
	if len(s) < len(DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd is one fiscal period-end date reported for a company.
type PeriodEnd struct {
	CompanyID string    `json:"company_id"`
	Date      time.Time `json:"date"`
}
