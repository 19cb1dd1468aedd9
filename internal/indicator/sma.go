package indicator

// SMAStream calculates a Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMAStream struct {
	period int
	buf    []float64 // circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
}

// NewSMAStream creates an SMA stream with the given period.
func NewSMAStream(period int) *SMAStream {
	if period < 0 {
		period = 0
	}
	return &SMAStream{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMAStream) Update(v float64) {
	if s.period == 0 {
		return
	}
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMAStream) Value() float64 {
	if !s.Ready() {
		return Invalid()
	}
	return s.sum / float64(s.period)
}

func (s *SMAStream) Ready() bool { return s.period > 0 && s.count >= s.period }

// Peek computes what Value() would be with v fed next, without mutating state.
func (s *SMAStream) Peek(v float64) float64 {
	if s.period == 0 || s.count+1 < s.period {
		return Invalid()
	}
	if s.count < s.period {
		return (s.sum + v) / float64(s.period)
	}
	// Replace the oldest value (at idx) with v
	return (s.sum - s.buf[s.idx] + v) / float64(s.period)
}

// SMA returns the simple moving average series of values.
// Entries before index period-1 are invalid.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || period > len(values) {
		return invalidSeries(len(values))
	}
	return drive(NewSMAStream(period), values)
}
