package quarteragg

import (
	"math"
	"sort"
	"time"
)

// WindowStart returns the first calendar day of the window ending at end: the
// first of end's month, minus two calendar months. A March 31 anchor starts on
// January 1.
func WindowStart(end time.Time) time.Time {
	y, m, _ := end.Date()
	return time.Date(y, m-2, 1, 0, 0, 0, 0, time.UTC)
}

// firstOnOrAfter returns the first index whose date is >= target, or len(dates).
func firstOnOrAfter(dates []time.Time, target time.Time) int {
	return sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(target)
	})
}

// sliceStats returns min, max and median of w. Any NaN in the window makes all
// three NaN. w must be non-empty and is not modified.
func sliceStats(w []float64) (lo, hi, median float64) {
	lo, hi = w[0], w[0]
	for _, v := range w {
		if math.IsNaN(v) {
			nan := math.NaN()
			return nan, nan, nan
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	sorted := make([]float64, len(w))
	copy(sorted, w)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return lo, hi, median
}

// truncInt converts a volume extreme to an integer, truncating toward zero.
// NaN has no integer form and reports 0.
func truncInt(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(v)
}
