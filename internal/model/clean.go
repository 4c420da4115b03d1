package model

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CleanNumeric converts a scraped financial field to a number. Dollar signs and
// thousands separators are stripped, "-" and "" mean zero, and anything else that
// does not parse yields NaN and false.
func CleanNumeric(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "-" || s == "" {
		return 0, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.NaN(), false
	}
	f, _ := d.Float64()
	return f, true
}
