package indicator

import (
	"math"
	"strconv"
)

// SMMA calculates a Smoothed Moving Average (Wilder-style smoothing):
// SMMA = (prev*(period-1) + v) / period, seeded by the first observation.
type SMMA struct {
	period  int
	count   int
	current float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{period: period}
}

func (s *SMMA) Name() string { return "SMMA_" + strconv.Itoa(s.period) }

// Update feeds one value. NaN inputs are skipped.
func (s *SMMA) Update(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.count++
	if s.count == 1 {
		s.current = v
		return
	}
	p := float64(s.period)
	s.current = (s.current*(p-1) + v) / p
}

func (s *SMMA) Value() float64 {
	if !s.Ready() {
		return math.NaN()
	}
	return s.current
}

func (s *SMMA) Ready() bool { return s.count >= s.period }

// Reset clears the SMMA state for reuse.
func (s *SMMA) Reset() {
	s.count = 0
	s.current = 0
}
