package indicator

import (
	"fmt"
	"math"
)

// Default windows used for the quarterly feature table.
const (
	DefaultMACDFast   = 30
	DefaultMACDSlow   = 60
	DefaultMACDSignal = 30
	DefaultRSIWindow  = 60
)

// Series holds per-close indicator values aligned with the input closes.
// Positions whose lookback is not yet satisfied hold NaN.
type Series struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
	RSI    []float64
}

// Len returns the number of aligned positions.
func (s Series) Len() int { return len(s.MACD) }

// At returns the four indicator values at position i.
func (s Series) At(i int) (macd, signal, hist, rsi float64) {
	return s.MACD[i], s.Signal[i], s.Hist[i], s.RSI[i]
}

// Provider computes indicator series over one company's ordered closes.
// Implementations are pure functions of their input.
type Provider interface {
	Name() string
	Compute(closes []float64) Series
}

// Standard computes MACD and RSI with the package's own streaming indicators.
type Standard struct {
	Fast      int
	Slow      int
	SignalLen int
	RSIWindow int
}

// NewStandard returns a Standard provider using the default windows.
func NewStandard() Standard {
	return Standard{
		Fast:      DefaultMACDFast,
		Slow:      DefaultMACDSlow,
		SignalLen: DefaultMACDSignal,
		RSIWindow: DefaultRSIWindow,
	}
}

func (p Standard) Name() string { return "standard" }

// Compute runs one pass over closes.
func (p Standard) Compute(closes []float64) Series {
	s := newSeries(len(closes))
	macd := NewMACD(p.Fast, p.Slow, p.SignalLen)
	rsi := NewRSI(p.RSIWindow)
	for i, c := range closes {
		macd.Update(c)
		rsi.Update(c)
		s.MACD[i] = macd.Value()
		s.Signal[i] = macd.Signal()
		s.Hist[i] = macd.Hist()
		s.RSI[i] = rsi.Value()
	}
	return s
}

// NewProvider returns the provider registered under name ("standard" or "talib").
func NewProvider(name string) (Provider, error) {
	switch name {
	case "", "standard":
		return NewStandard(), nil
	case "talib":
		return NewTalib(), nil
	default:
		return nil, fmt.Errorf("unknown indicator provider %q", name)
	}
}

func newSeries(n int) Series {
	return Series{
		MACD:   make([]float64, n),
		Signal: make([]float64, n),
		Hist:   make([]float64, n),
		RSI:    make([]float64, n),
	}
}

func fillNaN(v []float64) {
	for i := range v {
		v[i] = math.NaN()
	}
}
