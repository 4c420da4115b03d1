// Package quarteragg computes trailing-window price, volume and dividend
// statistics for every company at every occurrence of an anchor month-day.
//
// Window sums come from running totals built once per company, so each window
// costs a binary search plus a slice pass for min/max/median instead of a rescan
// of the full history.
package quarteragg

import (
	"errors"
	"fmt"
	"math"
	"time"

	"quarterfeat/internal/indicator"
	"quarterfeat/internal/model"
)

// ErrUnsorted is returned when a company's dates go backwards.
var ErrUnsorted = errors.New("bars not sorted by date")

// CompanyResult is the outcome of aggregating one company.
type CompanyResult struct {
	CompanyID string
	Records   []model.WindowRecord

	Rows        int // dated rows used
	NullDates   int // rows dropped for a missing date
	Duplicates  int // rows sharing a date with the following row
	Occurrences int // distinct anchor dates found
	Skipped     int // occurrences without a valid window
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPartialHistory keeps occurrences whose window starts before the first
// row of the company's history, computing them over the truncated window. By
// default such occurrences are skipped; see Aggregator.Aggregate.
func WithPartialHistory(allow bool) Option {
	return func(a *Aggregator) { a.partial = allow }
}

// Aggregator computes WindowRecords for one company at a time. It holds no
// per-company state and is safe for concurrent use.
type Aggregator struct {
	provider indicator.Provider
	variance Variance
	partial  bool
}

// New creates an Aggregator. Nil arguments select the standard indicator
// provider and the prefix-sum variance.
func New(provider indicator.Provider, variance Variance, opts ...Option) *Aggregator {
	if provider == nil {
		provider = indicator.NewStandard()
	}
	if variance == nil {
		variance = PrefixVariance{}
	}
	a := &Aggregator{provider: provider, variance: variance}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the indicator provider in use.
func (a *Aggregator) Provider() indicator.Provider { return a.provider }

// Variance returns the variance method in use.
func (a *Aggregator) Variance() Variance { return a.variance }

// Aggregate computes one record per distinct date in bars whose month-day is in
// anchors. bars must be one company's rows in ascending date order; rows with a
// zero date are dropped. Repeated dates are allowed and the last row for a date
// is its target occurrence. A date earlier than its predecessor returns
// ErrUnsorted. Empty input yields an empty result.
//
// An occurrence whose window starts before the company's first row is skipped
// as insufficient history, so the first record of a company never averages a
// truncated window. This is stricter than a plain "rows in [start, end]"
// selection, which would keep such windows with fewer rows. Build the
// Aggregator WithPartialHistory(true) to keep truncated windows instead.
//
// A NaN close, volume or dividend only affects the windows that contain it.
func (a *Aggregator) Aggregate(companyID string, bars []model.DailyBar, anchors model.AnchorSet) (CompanyResult, error) {
	res := CompanyResult{CompanyID: companyID}

	// 1. Dense, index-aligned arrays.
	n := 0
	for i := range bars {
		if bars[i].HasDate() {
			n++
		}
	}
	res.NullDates = len(bars) - n
	res.Rows = n
	if n == 0 {
		return res, nil
	}

	dates := make([]time.Time, 0, n)
	closes := make([]float64, 0, n)
	volumes := make([]float64, 0, n)
	dividends := make([]float64, 0, n)
	for i := range bars {
		b := &bars[i]
		if !b.HasDate() {
			continue
		}
		d := model.Day(b.Date)
		if k := len(dates); k > 0 {
			if d.Before(dates[k-1]) {
				return res, fmt.Errorf("%w: company %s row %d (%s after %s)",
					ErrUnsorted, companyID, i, d.Format(model.DateLayout), dates[k-1].Format(model.DateLayout))
			}
			if d.Equal(dates[k-1]) {
				res.Duplicates++
			}
		}
		dates = append(dates, d)
		closes = append(closes, b.Close)
		volumes = append(volumes, b.Volume)
		dividends = append(dividends, b.Dividend)
	}

	// 3. Target occurrences: last index of each distinct matching date.
	var targets []int
	for i, d := range dates {
		if i+1 < n && dates[i+1].Equal(d) {
			continue
		}
		if anchors.Match(d) {
			targets = append(targets, i)
		}
	}
	res.Occurrences = len(targets)
	if len(targets) == 0 {
		return res, nil
	}

	// 2. Running sums over the entire series, and indicators once per company.
	closeCol := NewColumn(closes)
	volCol := NewColumn(volumes)
	divCol := NewColumn(dividends)
	divPaying := NewNonZeroCounter(dividends)
	series := a.provider.Compute(closes)

	// 4. One window per occurrence.
	res.Records = make([]model.WindowRecord, 0, len(targets))
	for _, ei := range targets {
		end := dates[ei]
		start := WindowStart(end)
		si := firstOnOrAfter(dates, start)
		if si > ei || (!a.partial && si == 0 && dates[0].After(start)) {
			res.Skipped++
			continue
		}
		rec := model.WindowRecord{
			CompanyID:  companyID,
			EndDate:    end,
			ClosePrice: closes[ei],
		}

		rec.MeanPrice = closeCol.RangeMean(si, ei)
		rec.StdPrice = StdDev(a.variance.SampleVariance(closeCol, si, ei))
		rec.MinPrice, rec.MaxPrice, rec.MedianPrice = sliceStats(closeCol.Window(si, ei))

		rec.MeanVolume = volCol.RangeMean(si, ei)
		rec.StdVolume = StdDev(a.variance.SampleVariance(volCol, si, ei))
		minVol, maxVol, medVol := sliceStats(volCol.Window(si, ei))
		rec.MinVolume, rec.MaxVolume, rec.MedianVolume = truncInt(minVol), truncInt(maxVol), medVol

		rec.SumDividends = divCol.RangeSum(si, ei)
		rec.CountDividends = divPaying.RangeCount(si, ei)
		switch {
		case math.IsNaN(rec.SumDividends):
			rec.MeanDividends = math.NaN()
		case rec.CountDividends > 0:
			rec.MeanDividends = rec.SumDividends / float64(rec.CountDividends)
		}

		rec.MACD, rec.MACDSignal, rec.MACDHist, rec.RSI = series.At(ei)

		res.Records = append(res.Records, rec)
	}
	return res, nil
}
