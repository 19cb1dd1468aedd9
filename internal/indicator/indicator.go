// Package indicator provides technical indicator calculations over price data.
//
// Batch functions (SMA, EMA, RSI, ATR, Bollinger, MACD) transform a sequence
// into an index-aligned series of the same length. Entries that are still in
// warm-up hold the invalid marker (NaN); check them with IsValid.
//
// The recurrences are implemented once, as O(1) streaming indicators that
// satisfy the Stream interface. The batch functions drive those streams, so
// an incremental consumer and a windowed recomputation produce identical values.
package indicator

import (
	"math"

	"trading-botcore/internal/model"
)

// Stream is the interface for all incremental indicators.
type Stream interface {
	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current value, or Invalid() while not ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if v were fed next, WITHOUT
	// mutating internal state.
	Peek(v float64) float64
}

// Invalid returns the warm-up marker used in series.
func Invalid() float64 { return math.NaN() }

// IsValid reports whether v is a usable number (not the warm-up marker, not infinite).
func IsValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Last returns the last element of a series, or Invalid() for an empty one.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return Invalid()
	}
	return series[len(series)-1]
}

// Closes extracts closing prices from candles.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

func invalidSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// drive feeds values through s and records Value() wherever s is ready.
func drive(s Stream, values []float64) []float64 {
	out := invalidSeries(len(values))
	for i, v := range values {
		s.Update(v)
		if s.Ready() {
			out[i] = s.Value()
		}
	}
	return out
}
