// Package features derives lagged features from quarterly window records.
package features

import (
	"math"
	"sort"
	"strconv"
	"time"

	"quarterfeat/internal/model"
	"quarterfeat/internal/ringbuf"
)

// DefaultLags compares each occurrence with the previous one and with the one
// a year earlier for quarterly anchors.
var DefaultLags = []int{1, 4}

// PctChange is the relative change of one metric against the record lag
// occurrences earlier for the same company.
type PctChange struct {
	CompanyID string
	EndDate   time.Time
	Metric    string
	Lag       int
	Value     float64 // NaN for the first lag records of a company
}

// Column returns the wide-format column name, e.g. "ClosePrice_pct_diff_4".
func (p PctChange) Column() string {
	return p.Metric + "_pct_diff_" + strconv.Itoa(p.Lag)
}

// Compute returns the percent change (cur - prev) / prev for every metric and
// lag. Records are grouped by company and ordered by end date; the input is not
// modified. Within a company, a NaN metric is replaced by the last defined value
// before differencing. A zero previous value gives ±Inf, or NaN when both are zero.
// Output is ordered by company, end date, metric and lag.
func Compute(records []model.WindowRecord, lags []int) []PctChange {
	if len(lags) == 0 {
		lags = DefaultLags
	}
	sorted := make([]model.WindowRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CompanyID != sorted[j].CompanyID {
			return sorted[i].CompanyID < sorted[j].CompanyID
		}
		return sorted[i].EndDate.Before(sorted[j].EndDate)
	})

	out := make([]PctChange, 0, len(sorted)*len(model.MetricNames)*len(lags))
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].CompanyID == sorted[start].CompanyID {
			continue
		}
		out = appendCompany(out, sorted[start:i], lags)
		start = i
	}
	return out
}

func appendCompany(out []PctChange, recs []model.WindowRecord, lags []int) []PctChange {
	maxLag := 0
	for _, lag := range lags {
		maxLag = max(maxLag, lag)
	}
	// hist holds the NaN-padded metric rows of the last maxLag+1 records.
	hist := ringbuf.New[[]float64](maxLag + 1)

	for i := range recs {
		cur := recs[i].Values()
		if prev, ok := hist.Back(0); ok {
			for m, v := range cur {
				if math.IsNaN(v) {
					cur[m] = prev[m]
				}
			}
		}
		hist.Push(cur)

		for m, name := range model.MetricNames {
			for _, lag := range lags {
				v := math.NaN()
				if past, ok := hist.Back(lag); ok {
					v = (cur[m] - past[m]) / past[m]
				}
				out = append(out, PctChange{
					CompanyID: recs[i].CompanyID,
					EndDate:   recs[i].EndDate,
					Metric:    name,
					Lag:       lag,
					Value:     v,
				})
			}
		}
	}
	return out
}

// Lookup indexes changes by company, end date, metric and lag.
type Lookup map[string]float64

// Index builds a Lookup over changes.
func Index(changes []PctChange) Lookup {
	l := make(Lookup, len(changes))
	for _, c := range changes {
		l[lookupKey(c.CompanyID, c.EndDate, c.Column())] = c.Value
	}
	return l
}

// Get returns the change for a company, end date and wide column name.
func (l Lookup) Get(companyID string, end time.Time, column string) (float64, bool) {
	v, ok := l[lookupKey(companyID, end, column)]
	return v, ok
}

func lookupKey(companyID string, end time.Time, column string) string {
	return companyID + "|" + end.Format(model.DateLayout) + "|" + column
}
