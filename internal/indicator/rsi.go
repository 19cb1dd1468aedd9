package indicator

// RSI returns the simple trailing-window Relative Strength Index.
//
// For each index i >= period-1 the window [i-period+1, i] is scanned: positive
// deltas between consecutive samples add to gains, negative ones to losses.
// avgGain = gains/period, avgLoss = losses/period. A window with no losses is
// defined as 100. This is the variant used for rule evaluation.
func RSI(values []float64, period int) []float64 {
	out := invalidSeries(len(values))
	if period <= 0 || period > len(values) {
		return out
	}
	p := float64(period)
	for i := period - 1; i < len(values); i++ {
		var gains, losses float64
		for j := i - period + 2; j <= i; j++ {
			d := values[j] - values[j-1]
			if d > 0 {
				gains += d
			} else {
				losses -= d
			}
		}
		out[i] = rsiFrom(gains/p, losses/p)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RSIStream calculates the Relative Strength Index using Wilder's smoothing.
// Update is O(1) per sample; no history scans.
type RSIStream struct {
	period int
	count  int
	prev   float64
	gain   *WilderStream
	loss   *WilderStream
}

// NewRSIStream creates a Wilder RSI stream with the given period (typically 14).
func NewRSIStream(period int) *RSIStream {
	return &RSIStream{
		period: period,
		gain:   NewWilderStream(period),
		loss:   NewWilderStream(period),
	}
}

func (r *RSIStream) Update(v float64) {
	r.count++
	if r.count == 1 {
		// First sample: record it, no delta yet
		r.prev = v
		return
	}
	g, l := split(v - r.prev)
	r.prev = v
	r.gain.Update(g)
	r.loss.Update(l)
}

func (r *RSIStream) Value() float64 {
	if !r.Ready() {
		return Invalid()
	}
	return rsiFrom(r.gain.Value(), r.loss.Value())
}

func (r *RSIStream) Ready() bool { return r.period > 0 && r.gain.Ready() }

// Peek computes what RSI would be with v fed next, without mutating state.
func (r *RSIStream) Peek(v float64) float64 {
	if r.count == 0 {
		return Invalid()
	}
	g, l := split(v - r.prev)
	ag, al := r.gain.Peek(g), r.loss.Peek(l)
	if !IsValid(ag) || !IsValid(al) {
		return Invalid()
	}
	return rsiFrom(ag, al)
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// RSIWilder returns the Wilder-smoothed RSI series. It is a library utility
// and is not used by rule evaluation. Entries before index period are invalid,
// since the seed needs period deltas.
func RSIWilder(values []float64, period int) []float64 {
	if period <= 0 || period >= len(values) {
		return invalidSeries(len(values))
	}
	return drive(NewRSIStream(period), values)
}
