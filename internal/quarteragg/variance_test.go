package quarteragg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnRangeSums(t *testing.T) {
	c := NewColumn([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 15.0, c.RangeSum(0, 4))
	assert.Equal(t, 9.0, c.RangeSum(1, 3))
	assert.Equal(t, 3.0, c.RangeSum(2, 2))
	assert.Equal(t, 3.0, c.RangeMean(1, 3))
	assert.Equal(t, []float64{2, 3, 4}, c.Window(1, 3))

	// Sums are kept relative to the first value.
	s, s2 := c.shiftedSums(1, 3)
	assert.Equal(t, 1.0+2+3, s)
	assert.Equal(t, 1.0+4+9, s2)
}

func TestColumnNaNStaysLocal(t *testing.T) {
	nan := math.NaN()
	c := NewColumn([]float64{nan, 2, 4, nan, 6, 8})

	assert.True(t, c.HasNaN(0, 2))
	assert.True(t, math.IsNaN(c.RangeSum(0, 2)))
	assert.True(t, math.IsNaN(c.RangeMean(2, 4)))
	assert.True(t, math.IsNaN(PrefixVariance{}.SampleVariance(c, 2, 4)))

	assert.False(t, c.HasNaN(1, 2))
	assert.Equal(t, 6.0, c.RangeSum(1, 2))
	assert.Equal(t, 3.0, c.RangeMean(1, 2))
	assert.Equal(t, 7.0, c.RangeMean(4, 5))
	assert.Equal(t, 2.0, PrefixVariance{}.SampleVariance(c, 4, 5))
}

func TestColumnFlatSeriesHasZeroVariance(t *testing.T) {
	values := make([]float64, 20000)
	for i := range values {
		values[i] = 2999.99
	}
	c := NewColumn(values)
	for _, w := range []struct{ si, ei int }{{0, 89}, {10000, 10091}, {19908, 19999}} {
		assert.Equal(t, 0.0, PrefixVariance{}.SampleVariance(c, w.si, w.ei))
		assert.Equal(t, 2999.99, c.RangeMean(w.si, w.ei))
	}
}

func TestNonZeroCounter(t *testing.T) {
	c := NewNonZeroCounter([]float64{0, 0.5, 0, 0, 1.2, 0})
	assert.Equal(t, 2, c.RangeCount(0, 5))
	assert.Equal(t, 1, c.RangeCount(2, 4))
	assert.Equal(t, 0, c.RangeCount(2, 3))

	c = NewNonZeroCounter([]float64{math.NaN(), 0.5})
	assert.Equal(t, 1, c.RangeCount(0, 1))
}

func TestClampVariance(t *testing.T) {
	assert.Equal(t, 2.5, clampVariance(2.5, 1e-12))
	assert.Equal(t, 0.0, clampVariance(-5e-13, 1e-12))
	assert.True(t, math.IsNaN(clampVariance(-1e-3, 1e-12)))
	assert.True(t, math.IsNaN(clampVariance(math.NaN(), 1e-12)))
}

func TestVarianceImplementationsAgree(t *testing.T) {
	values := []float64{1e3 + 1, 1e3 + 3, 1e3 + 2, 1e3 + 7, 1e3 + 4, 1e3 + 4}
	c := NewColumn(values)

	for _, tc := range []struct{ si, ei int }{{0, 5}, {1, 4}, {2, 5}} {
		p := PrefixVariance{}.SampleVariance(c, tc.si, tc.ei)
		r := TwoPassVariance{}.SampleVariance(c, tc.si, tc.ei)
		assert.InEpsilon(t, r, p, 1e-9)
	}

	// Hand check: 1,3,2 around a large offset has variance 1.
	assert.Equal(t, 1.0, PrefixVariance{}.SampleVariance(c, 0, 2))
	assert.InDelta(t, 1.0, TwoPassVariance{}.SampleVariance(c, 0, 2), 1e-9)
}

func TestVarianceSingleRowIsNaN(t *testing.T) {
	c := NewColumn([]float64{4, 5})
	assert.True(t, math.IsNaN(PrefixVariance{}.SampleVariance(c, 1, 1)))
	assert.True(t, math.IsNaN(TwoPassVariance{}.SampleVariance(c, 1, 1)))
	assert.True(t, math.IsNaN(StdDev(math.NaN())))
	assert.Equal(t, 3.0, StdDev(9))
}

func TestNewVariance(t *testing.T) {
	v, err := NewVariance("")
	require.NoError(t, err)
	assert.Equal(t, "prefix", v.Name())

	v, err = NewVariance("twopass")
	require.NoError(t, err)
	assert.Equal(t, "twopass", v.Name())

	_, err = NewVariance("welford")
	assert.Error(t, err)
}

func TestSliceStats(t *testing.T) {
	w := []float64{5, 1, 4, 2}
	lo, hi, med := sliceStats(w)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 5.0, hi)
	assert.Equal(t, 3.0, med)
	assert.Equal(t, []float64{5, 1, 4, 2}, w, "window must not be reordered")

	lo, hi, med = sliceStats([]float64{3, 9, 1})
	assert.Equal(t, []float64{1, 9, 3}, []float64{lo, hi, med})

	lo, hi, med = sliceStats([]float64{3, math.NaN(), 1})
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))
	assert.True(t, math.IsNaN(med))
}

func TestTruncInt(t *testing.T) {
	assert.Equal(t, int64(1234), truncInt(1234.9))
	assert.Equal(t, int64(0), truncInt(math.NaN()))
	assert.Equal(t, int64(0), truncInt(math.Inf(1)))
}
