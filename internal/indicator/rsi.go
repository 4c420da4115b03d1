package indicator

import (
	"math"
	"strconv"
)

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// The first close contributes a zero gain and zero loss, so the first value is
// available after period closes.
// Update is O(1) per close, no history scans.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   *SMMA
	avgLoss   *SMMA
}

// NewRSI creates a new RSI indicator with the given period.
func NewRSI(period int) *RSI {
	return &RSI{
		period:  period,
		avgGain: NewSMMA(period),
		avgLoss: NewSMMA(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(price float64) {
	r.count++

	delta := 0.0
	if r.count > 1 {
		delta = price - r.prevClose
	}
	r.prevClose = price
	if math.IsNaN(delta) {
		delta = 0
	}

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.avgGain.Update(gain)
	r.avgLoss.Update(loss)
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return math.NaN()
	}
	al := r.avgLoss.Value()
	if al == 0 {
		return 100.0
	}
	rs := r.avgGain.Value() / al
	return 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Ready() bool { return r.avgLoss.Ready() }

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	r.count = 0
	r.prevClose = 0
	r.avgGain.Reset()
	r.avgLoss.Reset()
}
