package indicator

import (
	"math"

	"trading-botcore/internal/model"
)

// TrueRange returns the true range of each candle. The first candle has no
// previous close and uses high-low.
func TrueRange(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		tr := c.High - c.Low
		if i > 0 {
			prev := candles[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR returns the Average True Range series: the first value (index period-1)
// is the mean of the first period true ranges, then Wilder smoothing
// ATR[i] = (ATR[i-1]*(period-1) + TR[i]) / period.
func ATR(candles []model.Candle, period int) []float64 {
	if period <= 0 || period > len(candles) {
		return invalidSeries(len(candles))
	}
	return drive(NewWilderStream(period), TrueRange(candles))
}
