package indicator

import "math"

// Bands holds Bollinger band series, index-aligned with the input.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns bands of k population standard deviations around SMA(period).
func Bollinger(values []float64, period int, k float64) Bands {
	n := len(values)
	b := Bands{
		Upper:  invalidSeries(n),
		Middle: SMA(values, period),
		Lower:  invalidSeries(n),
	}
	for i := range values {
		mean := b.Middle[i]
		if !IsValid(mean) {
			continue
		}
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period))
		b.Upper[i] = mean + k*sd
		b.Lower[i] = mean - k*sd
	}
	return b
}
