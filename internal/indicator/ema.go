package indicator

import (
	"math"
	"strconv"
)

// EMA calculates an Exponential Moving Average with span-style multiplier
// 2/(period+1). The recursion is seeded by the first observation and the value
// is reported once period observations have been seen.
// O(1) per update, no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + strconv.Itoa(e.period) }

// Update feeds one value. NaN inputs are skipped.
func (e *EMA) Update(v float64) {
	if math.IsNaN(v) {
		return
	}
	e.count++
	if e.count == 1 {
		e.current = v
		return
	}

	// EMA = (v * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return math.NaN()
	}
	return e.current
}

func (e *EMA) Ready() bool { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}
