package indicator

import (
	"math"
	"testing"
	"time"

	"trading-botcore/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertInvalid(t *testing.T, label string, got float64) {
	t.Helper()
	if IsValid(got) {
		t.Errorf("%s: expected invalid marker, got %.6f", label, got)
	}
}

func bar(h, l, c float64) model.Candle {
	return model.Candle{Symbol: "TEST", Timeframe: "1m", High: h, Low: l, Close: c, Open: c}
}

// noisy returns a deterministic zig-zag series with drift.
func noisy(n int) []float64 {
	out := make([]float64, n)
	v := 100.0
	for i := range out {
		switch i % 5 {
		case 0, 2:
			v += 1.7
		case 1:
			v -= 2.3
		case 3:
			v += 0.4
		default:
			v -= 0.9
		}
		out[i] = v
	}
	return out
}

func candlesFrom(closes []float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol: "TEST", Timeframe: "1m", Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA / EMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// (100+102+104)/3 = 102, (102+104+103)/3 = 103, (104+103+105)/3 = 104
	got := SMA([]float64{100, 102, 104, 103, 105}, 3)
	assertInvalid(t, "SMA[0]", got[0])
	assertInvalid(t, "SMA[1]", got[1])
	for i, want := range map[int]float64{2: 102, 3: 103, 4: 104} {
		assertClose(t, "SMA(3)", got[i], want, 1e-9)
	}
}

func TestEMA_Correctness_Period3(t *testing.T) {
	// alpha = 2/(3+1) = 0.5
	// seed: (100+102+104)/3 = 102
	// (103-102)*0.5+102 = 102.5
	// (105-102.5)*0.5+102.5 = 103.75
	got := EMA([]float64{100, 102, 104, 103, 105}, 3)
	assertInvalid(t, "EMA[1]", got[1])
	assertClose(t, "EMA[2]", got[2], 102, 1e-9)
	assertClose(t, "EMA[3]", got[3], 102.5, 1e-9)
	assertClose(t, "EMA[4]", got[4], 103.75, 1e-9)
}

func TestEMA_PeriodOneIsIdentity(t *testing.T) {
	data := noisy(50)
	got := EMA(data, 1)
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("EMA(data,1)[%d] = %v, want %v", i, got[i], data[i])
		}
	}
}

func TestEMAStream_PeekMatchesUpdate(t *testing.T) {
	data := noisy(30)
	e := NewEMAStream(5)
	for _, v := range data {
		peek := e.Peek(v)
		e.Update(v)
		if e.Ready() {
			assertClose(t, "EMA peek", peek, e.Value(), 1e-12)
		} else {
			assertInvalid(t, "EMA peek during warm-up", peek)
		}
	}
}

func TestSMAStream_Peek_DoesNotMutate(t *testing.T) {
	s := NewSMAStream(3)
	for _, v := range []float64{100, 102, 104} {
		s.Update(v)
	}
	before := s.Value()
	// (102+104+106)/3 = 104
	assertClose(t, "SMA peek", s.Peek(106), 104, 1e-9)
	assertClose(t, "SMA after peek", s.Value(), before, 1e-12)
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Simple_HandCalculated(t *testing.T) {
	// window [1,2,1]: gains 1, losses 1 → RS 1 → 50
	// window [2,1,2]: gains 1, losses 1 → 50
	// window [1,2,3]: no losses → 100
	got := RSI([]float64{1, 2, 1, 2, 3}, 3)
	assertInvalid(t, "RSI[1]", got[1])
	assertClose(t, "RSI[2]", got[2], 50, 1e-9)
	assertClose(t, "RSI[3]", got[3], 50, 1e-9)
	assertClose(t, "RSI[4]", got[4], 100, 1e-9)
}

func TestRSI_StrictlyIncreasingIs100(t *testing.T) {
	data := make([]float64, 60)
	for i := range data {
		data[i] = 10 + float64(i)*0.5
	}
	got := RSI(data, 14)
	for i := 13; i < len(got); i++ {
		if got[i] != 100 {
			t.Fatalf("RSI[%d] = %v, want 100", i, got[i])
		}
	}
}

func TestRSI_FlatSeriesIsFinite(t *testing.T) {
	data := []float64{5, 5, 5, 5, 5, 5}
	for i, v := range RSI(data, 3) {
		if i < 2 {
			continue
		}
		if v != 100 {
			t.Errorf("RSI[%d] = %v, want 100 for zero losses", i, v)
		}
	}
}

func TestRSIWilder_WarmUpAndMonotonic(t *testing.T) {
	data := make([]float64, 30)
	for i := range data {
		data[i] = float64(i + 1)
	}
	got := RSIWilder(data, 14)
	for i := 0; i < 14; i++ {
		assertInvalid(t, "RSIWilder warm-up", got[i])
	}
	for i := 14; i < len(got); i++ {
		assertClose(t, "RSIWilder", got[i], 100, 1e-9)
	}
}

func TestRSIWilder_MatchesReference(t *testing.T) {
	data := noisy(80)
	const period = 14
	got := RSIWilder(data, period)

	var avgGain, avgLoss float64
	for j := 1; j <= period; j++ {
		g, l := split(data[j] - data[j-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= period
	avgLoss /= period
	assertClose(t, "RSIWilder seed", got[period], rsiFrom(avgGain, avgLoss), 1e-9)

	for i := period + 1; i < len(data); i++ {
		g, l := split(data[i] - data[i-1])
		avgGain = (avgGain*(period-1) + g) / period
		avgLoss = (avgLoss*(period-1) + l) / period
		assertClose(t, "RSIWilder", got[i], rsiFrom(avgGain, avgLoss), 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	tr := TrueRange([]model.Candle{bar(10, 9, 9.5), bar(15, 14, 14.5)})
	assertClose(t, "TR[0]", tr[0], 1, 1e-9)
	// gap up: |15-9.5| = 5.5 dominates high-low = 1
	assertClose(t, "TR[1]", tr[1], 5.5, 1e-9)
}

func TestATR_Correctness_Period3(t *testing.T) {
	// TR: 2, 2, 3, 3
	// ATR[2] = (2+2+3)/3 = 7/3
	// ATR[3] = (7/3*2 + 3)/3 = 23/9
	candles := []model.Candle{bar(10, 8, 9), bar(11, 9, 10), bar(12, 9, 11), bar(13, 10, 12)}
	got := ATR(candles, 3)
	assertInvalid(t, "ATR[1]", got[1])
	assertClose(t, "ATR[2]", got[2], 7.0/3.0, 1e-9)
	assertClose(t, "ATR[3]", got[3], 23.0/9.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Bollinger / MACD
// ────────────────────────────────────────────────────────────

func TestBollinger_PopulationStdDev(t *testing.T) {
	b := Bollinger([]float64{1, 2, 3}, 3, 2)
	sd := math.Sqrt(2.0 / 3.0)
	assertClose(t, "middle", b.Middle[2], 2, 1e-9)
	assertClose(t, "upper", b.Upper[2], 2+2*sd, 1e-9)
	assertClose(t, "lower", b.Lower[2], 2-2*sd, 1e-9)
	assertInvalid(t, "upper warm-up", b.Upper[1])
}

func TestMACD_LinearSeries(t *testing.T) {
	// On a linear series an SMA-seeded EMA lags by (p-1)/2 forever:
	// EMA(3) lags 1, EMA(5) lags 2 → MACD is constant 1 and the histogram 0.
	data := make([]float64, 40)
	for i := range data {
		data[i] = float64(i + 1)
	}
	m := MACD(data, 3, 5, 2)
	for i := 0; i < 4; i++ {
		assertInvalid(t, "macd warm-up", m.MACD[i])
		assertInvalid(t, "signal warm-up", m.Signal[i])
	}
	assertInvalid(t, "signal needs two macd values", m.Signal[4])
	for i := 4; i < len(data); i++ {
		assertClose(t, "macd", m.MACD[i], 1, 1e-9)
	}
	for i := 5; i < len(data); i++ {
		assertClose(t, "signal", m.Signal[i], 1, 1e-9)
		assertClose(t, "histogram", m.Histogram[i], 0, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// Series properties
// ────────────────────────────────────────────────────────────

func TestSeries_WarmUpThenFinite(t *testing.T) {
	closes := noisy(120)
	candles := candlesFrom(closes)
	for _, period := range []int{1, 2, 5, 14, 50} {
		series := map[string][]float64{
			"SMA":       SMA(closes, period),
			"EMA":       EMA(closes, period),
			"RSI":       RSI(closes, period),
			"ATR":       ATR(candles, period),
			"Bollinger": Bollinger(closes, period, 2).Upper,
		}
		for name, s := range series {
			if len(s) != len(closes) {
				t.Fatalf("%s(%d): len=%d, want %d", name, period, len(s), len(closes))
			}
			for i, v := range s {
				if i < period-1 && IsValid(v) {
					t.Errorf("%s(%d)[%d] = %v, want invalid", name, period, i, v)
				}
				if i >= period-1 && !IsValid(v) {
					t.Errorf("%s(%d)[%d] is not finite", name, period, i)
				}
			}
		}
	}
}

func TestSeries_PeriodLongerThanData(t *testing.T) {
	data := noisy(10)
	for name, s := range map[string][]float64{
		"SMA":       SMA(data, 11),
		"EMA":       EMA(data, 11),
		"RSI":       RSI(data, 11),
		"RSIWilder": RSIWilder(data, 10),
		"ATR":       ATR(candlesFrom(data), 11),
		"MACD":      MACD(data, 12, 26, 9).MACD,
		"zero":      EMA(data, 0),
	} {
		if len(s) != len(data) {
			t.Fatalf("%s: len=%d, want %d", name, len(s), len(data))
		}
		for i, v := range s {
			if IsValid(v) {
				t.Errorf("%s[%d] = %v, want invalid", name, i, v)
			}
		}
	}
}
