package indicator

// EMAStream calculates an Exponential Moving Average incrementally.
// The first value is the SMA of the first period samples; afterwards
// EMA = (x - EMA_prev) * alpha + EMA_prev with alpha = 2/(period+1).
type EMAStream struct {
	period int
	alpha  float64
	count  int
	sum    float64
	value  float64
}

// NewEMAStream creates an EMA stream with the given period.
func NewEMAStream(period int) *EMAStream {
	return &EMAStream{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMAStream) Update(v float64) {
	e.count++
	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.value = e.sum / float64(e.period)
		}
		return
	}
	e.value = (v-e.value)*e.alpha + e.value
}

func (e *EMAStream) Value() float64 {
	if !e.Ready() {
		return Invalid()
	}
	return e.value
}

func (e *EMAStream) Ready() bool { return e.period > 0 && e.count >= e.period }

// Peek computes what Value() would be with v fed next, without mutating state.
func (e *EMAStream) Peek(v float64) float64 {
	switch {
	case e.period <= 0:
		return Invalid()
	case e.count+1 < e.period:
		return Invalid()
	case e.count+1 == e.period:
		return (e.sum + v) / float64(e.period)
	}
	return (v-e.value)*e.alpha + e.value
}

// EMA returns the exponential moving average series of values.
// Entries before index period-1 are invalid.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || period > len(values) {
		return invalidSeries(len(values))
	}
	return drive(NewEMAStream(period), values)
}
