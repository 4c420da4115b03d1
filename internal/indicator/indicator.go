// Package indicator provides technical indicator calculations over daily closes.
//
// Streaming indicators implement the Indicator interface: they receive one value
// at a time and expose the current result. Provider turns a full close series into
// the aligned MACD/RSI series sampled by the quarter aggregator.
package indicator

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_30", "RSI_60").
	Name() string

	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current calculated value, NaN until Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all state for reuse.
	Reset()
}
