package indicator

// WilderStream calculates Wilder's smoothed moving average.
// The first value is SMA(period), then SMMA = (prev*(period-1) + v) / period.
type WilderStream struct {
	period int
	count  int
	sum    float64
	value  float64
}

// NewWilderStream creates a Wilder smoothing stream with the given period.
func NewWilderStream(period int) *WilderStream {
	return &WilderStream{period: period}
}

func (s *WilderStream) Update(v float64) {
	s.count++
	if s.count <= s.period {
		s.sum += v
		if s.count == s.period {
			s.value = s.sum / float64(s.period)
		}
		return
	}
	s.value = (s.value*float64(s.period-1) + v) / float64(s.period)
}

func (s *WilderStream) Value() float64 {
	if !s.Ready() {
		return Invalid()
	}
	return s.value
}

func (s *WilderStream) Ready() bool { return s.period > 0 && s.count >= s.period }

// Peek computes what Value() would be with v fed next, without mutating state.
func (s *WilderStream) Peek(v float64) float64 {
	switch {
	case s.period <= 0, s.count+1 < s.period:
		return Invalid()
	case s.count+1 == s.period:
		return (s.sum + v) / float64(s.period)
	}
	return (s.value*float64(s.period-1) + v) / float64(s.period)
}
