package critic

import (
	"math"
	"testing"
	"time"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/model"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *botconfig.Config {
	cfg := botconfig.Default()
	cfg.BotID = "bot-1"
	cfg.Symbol = "BTC"
	return cfg
}

func newCritic(cfg *botconfig.Config) *Critic {
	return New(cfg,
		WithIDGenerator(func() string { return "rep-1" }),
		WithClock(func() time.Time { return t0 }))
}

// longTrade closes a long entered at 100 with stop 95 and target 110,
// exiting at 100+pnl after hold.
func longTrade(id string, pnl float64, hold time.Duration) model.Trade {
	entry := t0.Add(time.Duration(len(id)) * time.Minute)
	return model.Trade{
		ID:         id,
		Side:       model.SideLong,
		EntryPrice: 100,
		ExitPrice:  model.Float(100 + pnl),
		EntryTime:  entry,
		ExitTime:   model.Time(entry.Add(hold)),
		Quantity:   1,
		StopLoss:   model.Float(95),
		TakeProfit: model.Float(110),
		PnL:        model.Float(pnl),
		Status:     model.TradeClosed,
	}
}

func seq(pnls ...float64) []model.Trade {
	out := make([]model.Trade, len(pnls))
	for i, p := range pnls {
		out[i] = longTrade(string(rune('a'+i)), p, 2*time.Hour)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}

func TestGenerateReport_Empty(t *testing.T) {
	r := newCritic(testConfig()).GenerateReport(nil)
	if r.Metrics.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d", r.Metrics.TotalTrades)
	}
	if len(r.WhatDidntWork) != 1 || r.WhatDidntWork[0] != NotEnoughTrades {
		t.Errorf("WhatDidntWork = %v", r.WhatDidntWork)
	}
	if r.Recommendations == nil || len(r.Recommendations) != 0 {
		t.Errorf("Recommendations = %#v, want empty", r.Recommendations)
	}
	if r.ID != "rep-1" || r.BotID != "bot-1" || !r.CreatedAt.Equal(t0) {
		t.Errorf("identity = %s/%s/%v", r.ID, r.BotID, r.CreatedAt)
	}
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	r := newCritic(nil).GenerateReport(seq(-1, -1, -1, -1, -1))
	if r.BotID != "" || r.Metrics.ClosedTrades != 5 {
		t.Errorf("report = %s, %+v", r.BotID, r.Metrics)
	}
	for _, rec := range r.Recommendations {
		if err := botconfig.DefaultWhitelist().Validate(rec.Parameter, rec.PreviousValue, rec.NewValue); err != nil {
			t.Errorf("recommendation %+v: %v", rec, err)
		}
	}
}

func TestGenerateReport_OnlyOpenTrades(t *testing.T) {
	open := model.Trade{ID: "o", Side: model.SideLong, EntryPrice: 100, Quantity: 1, Status: model.TradeOpen}
	r := newCritic(testConfig()).GenerateReport([]model.Trade{open})
	if r.Metrics.TotalTrades != 1 || r.Metrics.ClosedTrades != 0 {
		t.Errorf("metrics = %+v", r.Metrics)
	}
	if len(r.WhatDidntWork) != 1 || r.WhatDidntWork[0] != NotEnoughTrades {
		t.Errorf("WhatDidntWork = %v", r.WhatDidntWork)
	}
	if len(r.TradeIDs) != 1 || r.TradeIDs[0] != "o" {
		t.Errorf("TradeIDs = %v", r.TradeIDs)
	}
}

func TestGenerateReport_AlternatingWinsAndLosses(t *testing.T) {
	trades := seq(100, -50, 100, -50, 100, -50, 100, -50, 100, -50)
	r := newCritic(testConfig()).GenerateReport(trades)
	m := r.Metrics

	assertClose(t, "WinRate", m.WinRate, 50)
	assertClose(t, "AvgWin", m.AvgWin, 100)
	assertClose(t, "AvgLoss", m.AvgLoss, 50)
	assertClose(t, "Expectancy", m.Expectancy, 25)
	assertClose(t, "TotalPnL", m.TotalPnL, 250)
	// risk is 5 per trade: +20R and -10R alternate
	assertClose(t, "AvgRMultiple", m.AvgRMultiple, 5)
	assertClose(t, "AvgHoldingTimeMs", m.AvgHoldingTimeMs, float64(2*time.Hour/time.Millisecond))
	assertClose(t, "StopHitRate", m.StopHitRate, 50)
	assertClose(t, "TakeProfitHitRate", m.TakeProfitHitRate, 50)
	// peak 100 then cum 50
	assertClose(t, "MaxDrawdown", m.MaxDrawdown, 50)
	if m.MaxConsecutiveLosses != 1 || m.Wins != 5 || m.Losses != 5 || m.TotalTrades != 10 {
		t.Errorf("counts = %+v", m)
	}

	if len(r.WhatWorked) != 3 {
		t.Errorf("WhatWorked = %v, want win rate, R-multiple and expectancy", r.WhatWorked)
	}
	if len(r.FailurePatterns) != 0 || len(r.Recommendations) != 0 {
		t.Errorf("unexpected patterns %v / recommendations %v", r.FailurePatterns, r.Recommendations)
	}
	if len(r.TradeIDs) != 10 {
		t.Errorf("TradeIDs = %v", r.TradeIDs)
	}
}

func TestMaxDrawdown_MonotonicAsLossesAppend(t *testing.T) {
	trades := seq(100, 50, -30)
	prev, _ := ComputeMetrics(trades)
	for i := 0; i < 8; i++ {
		trades = append(trades, longTrade("loss", -20, time.Hour))
		m, _ := ComputeMetrics(trades)
		if m.MaxDrawdown < prev.MaxDrawdown {
			t.Fatalf("drawdown decreased from %v to %v after %d losses", prev.MaxDrawdown, m.MaxDrawdown, i+1)
		}
		prev = m
	}
	// peak 150, cum 150-30-160 = -40 → (150+40)/150
	assertClose(t, "MaxDrawdown", prev.MaxDrawdown, 190.0/150.0*100)
}

func TestMaxDrawdown_NoPositivePeakIsZero(t *testing.T) {
	m, _ := ComputeMetrics(seq(-10, -20, -5))
	if m.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0 without a positive peak", m.MaxDrawdown)
	}
	if m.MaxConsecutiveLosses != 3 {
		t.Errorf("MaxConsecutiveLosses = %d", m.MaxConsecutiveLosses)
	}
}

func TestGenerateReport_TightStopsAndLosingStreak(t *testing.T) {
	// four stop-outs then one large winner
	trades := seq(-5, -5, -5, -5, 50)
	cfg := testConfig()
	r := newCritic(cfg).GenerateReport(trades)

	assertClose(t, "StopHitRate", r.Metrics.StopHitRate, 80)
	assertClose(t, "WinRate", r.Metrics.WinRate, 20)
	// (-1 -1 -1 -1 +10) / 5
	assertClose(t, "AvgRMultiple", r.Metrics.AvgRMultiple, 1.2)

	want := map[botconfig.Param][2]float64{
		botconfig.ATRStopMultiplier: {2, 2.25},
		botconfig.CooldownMinutes:   {0, 15},
		botconfig.RSIOverbought:     {70, 72},
	}
	if len(r.Recommendations) != len(want) {
		t.Fatalf("recommendations = %+v", r.Recommendations)
	}
	for _, rc := range r.Recommendations {
		w, ok := want[rc.Parameter]
		if !ok {
			t.Errorf("unexpected recommendation %s", rc.Parameter)
			continue
		}
		if rc.PreviousValue != w[0] || rc.NewValue != w[1] || rc.Applied || rc.Reason == "" {
			t.Errorf("%s = %+v, want %v -> %v unapplied", rc.Parameter, rc, w[0], w[1])
		}
		if err := cfg.Tuning.Whitelist.Validate(rc.Parameter, rc.PreviousValue, rc.NewValue); err != nil {
			t.Errorf("recommendation escapes whitelist: %v", err)
		}
	}
	if len(r.FailurePatterns) != 2 {
		t.Errorf("FailurePatterns = %v", r.FailurePatterns)
	}
}

func TestGenerateReport_RespectsWhitelistAndBounds(t *testing.T) {
	trades := seq(-5, -5, -5, -5, 50)

	cfg := testConfig()
	cfg.Tuning.Whitelist = botconfig.Whitelist{botconfig.CooldownMinutes: botconfig.CooldownMinutes.HardBounds()}
	r := newCritic(cfg).GenerateReport(trades)
	if len(r.Recommendations) != 1 || r.Recommendations[0].Parameter != botconfig.CooldownMinutes {
		t.Errorf("recommendations = %+v, want cooldown only", r.Recommendations)
	}

	cfg = testConfig()
	cfg.Risk.ATRStopMultiplier = 4
	cfg.Risk.CooldownMinutes = 240
	cfg.Thresholds.RSIOverbought = 85
	r = newCritic(cfg).GenerateReport(trades)
	if len(r.Recommendations) != 0 {
		t.Errorf("recommendations at bounds = %+v", r.Recommendations)
	}
	// findings are still reported
	if len(r.FailurePatterns) != 2 {
		t.Errorf("FailurePatterns = %v", r.FailurePatterns)
	}
}

func TestGenerateReport_OvertradingAndEarlyExit(t *testing.T) {
	// winners exit at +3, below the 110 target, after 10 minutes
	var trades []model.Trade
	for i, pnl := range []float64{3, 3, -2, 3, -2} {
		trades = append(trades, longTrade(string(rune('a'+i)), pnl, 10*time.Minute))
	}
	r := newCritic(testConfig()).GenerateReport(trades)

	got := map[botconfig.Param]ParameterChange{}
	for _, rc := range r.Recommendations {
		got[rc.Parameter] = rc
	}
	if rc, ok := got[botconfig.TakeProfitRR]; !ok || rc.NewValue != 1.75 {
		t.Errorf("take profit recommendation = %+v", rc)
	}
	if rc, ok := got[botconfig.MinConfidence]; !ok || rc.NewValue != 5 {
		t.Errorf("min confidence recommendation = %+v", rc)
	}
	if len(r.FailurePatterns) != 2 {
		t.Errorf("FailurePatterns = %v", r.FailurePatterns)
	}
}

func TestStopAndTargetHits_ShortSide(t *testing.T) {
	short := model.Trade{
		ID: "s", Side: model.SideShort, EntryPrice: 100, Quantity: 2,
		StopLoss: model.Float(105), TakeProfit: model.Float(90),
		ExitPrice: model.Float(106), PnL: model.Float(-12), Status: model.TradeClosed,
	}
	m, holding := ComputeMetrics([]model.Trade{short})
	assertClose(t, "StopHitRate", m.StopHitRate, 100)
	assertClose(t, "TakeProfitHitRate", m.TakeProfitHitRate, 0)
	// risk = 5 * 2
	assertClose(t, "AvgRMultiple", m.AvgRMultiple, -1.2)
	if holding != 0 || m.AvgHoldingTimeMs != 0 {
		t.Errorf("holding = %d/%v without timestamps", holding, m.AvgHoldingTimeMs)
	}

	short.StopLoss = nil
	m, _ = ComputeMetrics([]model.Trade{short})
	if m.AvgRMultiple != 0 || m.StopHitRate != 0 {
		t.Errorf("missing stop: %+v", m)
	}
}

func TestMetrics_AggregatesIgnoreOrder(t *testing.T) {
	// reordering only changes order-sensitive metrics
	a := newCritic(testConfig()).GenerateReport(seq(-5, -5, -5, 50, 50))
	b := newCritic(testConfig()).GenerateReport(seq(-5, 50, -5, 50, -5))
	if a.Metrics.WinRate != b.Metrics.WinRate || a.Metrics.Expectancy != b.Metrics.Expectancy {
		t.Error("order changed aggregate metrics")
	}
	if a.Metrics.MaxConsecutiveLosses != 3 || b.Metrics.MaxConsecutiveLosses != 1 {
		t.Errorf("streaks = %d/%d", a.Metrics.MaxConsecutiveLosses, b.Metrics.MaxConsecutiveLosses)
	}
}
