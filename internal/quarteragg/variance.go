package quarteragg

import (
	"fmt"
	"math"
)

// negativeVarianceTolerance bounds how far below zero a prefix-sum variance may
// land from rounding and still be read as zero, relative to the window's own
// mean squared deviation from the column shift.
const negativeVarianceTolerance = 1e-12

// Variance computes the sample variance of an inclusive window of a Column.
// Results are NaN when the window has fewer than two rows or the value is
// numerically undefined.
type Variance interface {
	Name() string
	SampleVariance(c *Column, si, ei int) float64
}

// PrefixVariance derives the variance from shifted range sums in O(1):
// (Σd² - (Σd)²/n) / (n-1) with d = x - shift.
type PrefixVariance struct{}

func (PrefixVariance) Name() string { return "prefix" }

func (PrefixVariance) SampleVariance(c *Column, si, ei int) float64 {
	cnt := ei - si + 1
	if cnt <= 1 {
		return math.NaN()
	}
	if c.HasNaN(si, ei) {
		return math.NaN()
	}
	n := float64(cnt)
	s, s2 := c.shiftedSums(si, ei)
	v := (s2 - s*s/n) / (n - 1)
	return clampVariance(v, negativeVarianceTolerance*s2/(n-1))
}

// TwoPassVariance is the reference implementation: mean first, then the sum of
// squared deviations over the materialized window.
type TwoPassVariance struct{}

func (TwoPassVariance) Name() string { return "twopass" }

func (TwoPassVariance) SampleVariance(c *Column, si, ei int) float64 {
	return twoPassVariance(c.Window(si, ei))
}

func twoPassVariance(w []float64) float64 {
	if len(w) <= 1 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range w {
		mean += v
	}
	mean /= float64(len(w))
	ss := 0.0
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(w)-1)
}

// clampVariance maps small negative rounding residue to zero and anything more
// negative than tol to NaN.
func clampVariance(v, tol float64) float64 {
	switch {
	case math.IsNaN(v) || v >= 0:
		return v
	case v > -tol:
		return 0
	default:
		return math.NaN()
	}
}

// StdDev converts a variance to a standard deviation, keeping NaN.
func StdDev(variance float64) float64 {
	if math.IsNaN(variance) {
		return variance
	}
	return math.Sqrt(variance)
}

// NewVariance returns the implementation registered under name.
func NewVariance(name string) (Variance, error) {
	switch name {
	case "", "prefix":
		return PrefixVariance{}, nil
	case "twopass":
		return TwoPassVariance{}, nil
	default:
		return nil, fmt.Errorf("unknown variance method %q", name)
	}
}
