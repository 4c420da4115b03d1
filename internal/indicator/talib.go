package indicator

import (
	talib "github.com/markcheno/go-talib"
)

// Talib computes MACD and RSI with TA-Lib's algorithms. TA-Lib seeds its EMAs
// with a simple average, so early values differ slightly from Standard.
type Talib struct {
	Fast      int
	Slow      int
	SignalLen int
	RSIWindow int
}

// NewTalib returns a Talib provider using the default windows.
func NewTalib() Talib {
	return Talib{
		Fast:      DefaultMACDFast,
		Slow:      DefaultMACDSlow,
		SignalLen: DefaultMACDSignal,
		RSIWindow: DefaultRSIWindow,
	}
}

func (p Talib) Name() string { return "talib" }

// Compute maps TA-Lib's zero-filled lookback positions to NaN.
func (p Talib) Compute(closes []float64) Series {
	n := len(closes)
	s := newSeries(n)

	slow := p.Slow
	if p.Fast > slow {
		slow = p.Fast
	}
	macdLookback := slow - 1 + p.SignalLen - 1
	if n > macdLookback {
		line, signal, hist := talib.Macd(closes, p.Fast, p.Slow, p.SignalLen)
		copy(s.MACD, line)
		copy(s.Signal, signal)
		copy(s.Hist, hist)
		fillNaN(s.MACD[:macdLookback])
		fillNaN(s.Signal[:macdLookback])
		fillNaN(s.Hist[:macdLookback])
	} else {
		fillNaN(s.MACD)
		fillNaN(s.Signal)
		fillNaN(s.Hist)
	}

	if n > p.RSIWindow {
		copy(s.RSI, talib.Rsi(closes, p.RSIWindow))
		fillNaN(s.RSI[:p.RSIWindow])
	} else {
		fillNaN(s.RSI)
	}
	return s
}
