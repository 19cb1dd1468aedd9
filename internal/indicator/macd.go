package indicator

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow) where both are valid. The signal line is
// EMA(signal) over the compacted sequence of valid MACD values, re-expanded to
// the original positions.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{
		MACD:      invalidSeries(n),
		Signal:    invalidSeries(n),
		Histogram: invalidSeries(n),
	}

	fastE := EMA(values, fast)
	slowE := EMA(values, slow)

	compact := make([]float64, 0, n)
	positions := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if IsValid(fastE[i]) && IsValid(slowE[i]) {
			res.MACD[i] = fastE[i] - slowE[i]
			compact = append(compact, res.MACD[i])
			positions = append(positions, i)
		}
	}

	sig := EMA(compact, signal)
	for k, i := range positions {
		if !IsValid(sig[k]) {
			continue
		}
		res.Signal[i] = sig[k]
		res.Histogram[i] = res.MACD[i] - sig[k]
	}
	return res
}
