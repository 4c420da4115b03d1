package quarteragg

import "math"

// Column is one numeric input series with running sums over the whole company
// history. Range sums over any inclusive window [si, ei] are O(1):
// prefix[ei] - prefix[si-1].
//
// The sums are taken over x - shift, where shift is the first finite value of
// the series. Variance is invariant under the shift, and keeping the summed
// terms near zero stops late windows of a long, high-priced history from
// differencing two huge totals. NaN rows add nothing to the sums and are
// counted separately, so a NaN only poisons the windows that contain it.
type Column struct {
	Values []float64
	shift  float64
	sum    []float64
	sumSq  []float64
	nan    []int
}

// NewColumn builds the running sums once.
func NewColumn(values []float64) *Column {
	c := &Column{
		Values: values,
		sum:    make([]float64, len(values)),
		sumSq:  make([]float64, len(values)),
		nan:    make([]int, len(values)),
	}
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			c.shift = v
			break
		}
	}
	var s, s2 float64
	nan := 0
	for i, v := range values {
		if math.IsNaN(v) {
			nan++
		} else {
			d := v - c.shift
			s += d
			s2 += d * d
		}
		c.sum[i] = s
		c.sumSq[i] = s2
		c.nan[i] = nan
	}
	return c
}

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.Values) }

// HasNaN reports whether Values[si..ei] contains a NaN.
func (c *Column) HasNaN(si, ei int) bool {
	n := c.nan[ei]
	if si > 0 {
		n -= c.nan[si-1]
	}
	return n > 0
}

// RangeSum returns the sum of Values[si..ei], or NaN if the window has a NaN.
func (c *Column) RangeSum(si, ei int) float64 {
	if c.HasNaN(si, ei) {
		return math.NaN()
	}
	return rangeOf(c.sum, si, ei) + c.shift*float64(ei-si+1)
}

// RangeMean returns the mean of Values[si..ei], or NaN if the window has a NaN.
func (c *Column) RangeMean(si, ei int) float64 {
	if c.HasNaN(si, ei) {
		return math.NaN()
	}
	return c.shift + rangeOf(c.sum, si, ei)/float64(ei-si+1)
}

// shiftedSums returns Σ(x-shift) and Σ(x-shift)² over [si, ei]. Callers must
// check HasNaN first.
func (c *Column) shiftedSums(si, ei int) (s, s2 float64) {
	return rangeOf(c.sum, si, ei), rangeOf(c.sumSq, si, ei)
}

// Window returns the materialized slice Values[si..ei].
func (c *Column) Window(si, ei int) []float64 {
	return c.Values[si : ei+1]
}

// Counter is a running count of rows matching a predicate.
type Counter struct {
	prefix []int
}

// NewNonZeroCounter counts rows with a non-zero, non-NaN value.
func NewNonZeroCounter(values []float64) *Counter {
	c := &Counter{prefix: make([]int, len(values))}
	n := 0
	for i, v := range values {
		if v != 0 && !math.IsNaN(v) {
			n++
		}
		c.prefix[i] = n
	}
	return c
}

// RangeCount returns the count over [si, ei].
func (c *Counter) RangeCount(si, ei int) int {
	n := c.prefix[ei]
	if si > 0 {
		n -= c.prefix[si-1]
	}
	return n
}

func rangeOf(prefix []float64, si, ei int) float64 {
	s := prefix[ei]
	if si > 0 {
		s -= prefix[si-1]
	}
	return s
}
