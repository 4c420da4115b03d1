package indicator

import (
	"math"
	"strconv"
)

// MACD tracks the MACD line (fast EMA minus slow EMA), its signal EMA and the
// histogram. The signal EMA starts at the first defined MACD line value.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

// NewMACD creates a MACD with the given fast, slow and signal periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
		line:   math.NaN(),
	}
}

func (m *MACD) Name() string {
	return "MACD_" + strconv.Itoa(m.fast.period) + "_" + strconv.Itoa(m.slow.period) + "_" + strconv.Itoa(m.signal.period)
}

func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.fast.Ready() || !m.slow.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }

// Signal returns the signal line, NaN until it has warmed up.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Hist returns line minus signal.
func (m *MACD) Hist() float64 { return m.line - m.signal.Value() }

func (m *MACD) Ready() bool { return m.signal.Ready() }

// Reset clears the MACD state for reuse.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.line = math.NaN()
}
