// Package csvfile reads daily bars and period ends from CSV files and writes
// window records back out.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"quarterfeat/internal/model"
)

// Column aliases, matched case-insensitively against the header.
var (
	companyAliases   = []string{"company", "ticker", "symbol"}
	dateAliases      = []string{"date"}
	closeAliases     = []string{"close", "close_price"}
	volumeAliases    = []string{"volume"}
	dividendAliases  = []string{"dividends", "dividend"}
	periodEndAliases = []string{"period_end", "period ending", "period_ending", "date"}
)

// ReadStats counts rows that needed repair while reading.
type ReadStats struct {
	Rows       int
	BadDates   int // kept with a zero date
	BadNumbers int // kept as NaN
}

// ReadBarsFile reads a daily-bars CSV file.
func ReadBarsFile(path string) ([]model.DailyBar, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, err
	}
	defer f.Close()
	bars, stats, err := ReadBars(f)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return bars, stats, nil
}

// ReadBars reads daily bars. The header must name company, date and close
// columns; volume and dividend are optional and default to 0. Dates are taken
// from the first ten characters. Numbers go through model.CleanNumeric.
func ReadBars(r io.Reader) ([]model.DailyBar, ReadStats, error) {
	var stats ReadStats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	company, err := idx.require(companyAliases)
	if err != nil {
		return nil, stats, err
	}
	date, err := idx.require(dateAliases)
	if err != nil {
		return nil, stats, err
	}
	closeCol, err := idx.require(closeAliases)
	if err != nil {
		return nil, stats, err
	}
	volume := idx.find(volumeAliases)
	dividend := idx.find(dividendAliases)

	var bars []model.DailyBar
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		b := model.DailyBar{CompanyID: strings.TrimSpace(field(rec, company))}
		if d, ok := model.ParseDate(strings.TrimSpace(field(rec, date))); ok {
			b.Date = d
		} else {
			stats.BadDates++
		}
		var okC, okV, okD bool
		b.Close, okC = model.CleanNumeric(field(rec, closeCol))
		b.Volume, okV = model.CleanNumeric(field(rec, volume))
		b.Dividend, okD = model.CleanNumeric(field(rec, dividend))
		if !okC || !okV || !okD {
			stats.BadNumbers++
		}
		bars = append(bars, b)
	}
	return bars, stats, nil
}

// ReadPeriodEndsFile reads a period-end CSV file.
func ReadPeriodEndsFile(path string) ([]model.PeriodEnd, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ends, err := ReadPeriodEnds(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ends, nil
}

// ReadPeriodEnds reads fiscal period-end dates. The company column is optional.
// Unparseable dates are skipped.
func ReadPeriodEnds(r io.Reader) ([]model.PeriodEnd, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	date, err := idx.require(periodEndAliases)
	if err != nil {
		return nil, err
	}
	company := idx.find(companyAliases)

	var out []model.PeriodEnd
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, ok := model.ParseDate(strings.TrimSpace(field(rec, date)))
		if !ok {
			continue
		}
		out = append(out, model.PeriodEnd{CompanyID: strings.TrimSpace(field(rec, company)), Date: d})
	}
	return out, nil
}

type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// find returns the first alias present, or -1.
func (h headerIndex) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}

func (h headerIndex) require(aliases []string) (int, error) {
	i := h.find(aliases)
	if i < 0 {
		return -1, fmt.Errorf("missing %q column", aliases[0])
	}
	return i, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
