package execution

import (
	"math"
	"strconv"
	"testing"
	"time"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *botconfig.Config {
	cfg := botconfig.Default()
	cfg.BotID = "bot"
	cfg.Symbol = "BTC"
	cfg.Risk.ATRStopMultiplier = 2
	cfg.Risk.TakeProfitRR = 2
	cfg.Risk.CooldownMinutes = 60
	cfg.Risk.Quantity = 1
	return cfg
}

func signal(a model.Action, price, atr float64, at time.Time) *model.Signal {
	return &model.Signal{Action: a, Symbol: "BTC", Price: price, Timestamp: at, Indicators: model.Snapshot{Price: price, ATR: atr}}
}

func bar(at time.Time, high, low float64) model.Candle {
	return model.Candle{Symbol: "BTC", Timestamp: at, Open: (high + low) / 2, High: high, Low: low, Close: (high + low) / 2}
}

func newBroker() *PaperBroker {
	n := 0
	return NewPaperBroker("bot", WithIDGenerator(func() string {
		n++
		return "t-" + strconv.Itoa(n)
	}))
}

func TestPaperBroker_OpenLongLevels(t *testing.T) {
	b := newBroker()
	res := b.OnSignal(signal(model.ActionLong, 100, 5, t0), testConfig())
	if res.Opened == nil {
		t.Fatalf("no trade opened: %+v", res)
	}
	tr := res.Opened
	if tr.Side != model.SideLong || tr.EntryPrice != 100 || *tr.StopLoss != 90 || *tr.TakeProfit != 120 {
		t.Errorf("trade = %+v stop=%v tp=%v", tr, *tr.StopLoss, *tr.TakeProfit)
	}
	if tr.Status != model.TradeOpen || tr.PnL != nil || tr.BotID != "bot" {
		t.Errorf("trade = %+v", tr)
	}
}

func TestPaperBroker_OpenShortLevels(t *testing.T) {
	b := newBroker()
	res := b.OnSignal(signal(model.ActionShort, 100, 5, t0), testConfig())
	if res.Opened == nil || *res.Opened.StopLoss != 110 || *res.Opened.TakeProfit != 80 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPaperBroker_Exits(t *testing.T) {
	tests := []struct {
		name    string
		entry   model.Action
		candle  model.Candle
		wantPnL float64
	}{
		{"long stop", model.ActionLong, bar(t0.Add(time.Hour), 101, 89), -10},
		{"long target", model.ActionLong, bar(t0.Add(time.Hour), 121, 99), 20},
		{"long both takes stop", model.ActionLong, bar(t0.Add(time.Hour), 125, 85), -10},
		{"short stop", model.ActionShort, bar(t0.Add(time.Hour), 111, 99), -10},
		{"short target", model.ActionShort, bar(t0.Add(time.Hour), 101, 79), 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBroker()
			b.OnSignal(signal(tt.entry, 100, 5, t0), testConfig())
			res := b.OnCandle(tt.candle)
			if res.Closed == nil {
				t.Fatal("position not closed")
			}
			c := res.Closed
			if !c.IsClosed() || *c.PnL != tt.wantPnL || !c.ExitTime.Equal(tt.candle.Timestamp) {
				t.Errorf("closed = %+v pnl=%v", c, *c.PnL)
			}
			if _, ok := b.Position(); ok {
				t.Error("position still open")
			}
		})
	}
}

func TestPaperBroker_EntryCandleDoesNotExit(t *testing.T) {
	b := newBroker()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), testConfig())
	if res := b.OnCandle(bar(t0, 130, 70)); res.Closed != nil {
		t.Fatal("closed on the entry candle")
	}
	if res := b.OnCandle(bar(t0.Add(time.Hour), 105, 95)); res.Closed != nil {
		t.Fatal("closed without touching a level")
	}
}

func TestPaperBroker_CloseSignals(t *testing.T) {
	b := newBroker()
	cfg := testConfig()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), cfg)

	if res := b.OnSignal(signal(model.ActionCloseShort, 104, 5, t0.Add(time.Hour)), cfg); res.Closed != nil {
		t.Fatal("close_short closed a long")
	}
	res := b.OnSignal(signal(model.ActionCloseLong, 104, 5, t0.Add(2*time.Hour)), cfg)
	if res.Closed == nil || *res.Closed.PnL != 4 || *res.Closed.ExitPrice != 104 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPaperBroker_SkipsEntries(t *testing.T) {
	cfg := testConfig()

	b := newBroker()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), cfg)
	if res := b.OnSignal(signal(model.ActionShort, 100, 5, t0.Add(time.Hour)), cfg); res.Skipped != SkipPositionOpen {
		t.Errorf("second entry: %+v", res)
	}

	b = newBroker()
	for _, atr := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if res := b.OnSignal(signal(model.ActionLong, 100, atr, t0), cfg); res.Skipped != SkipNoATR {
			t.Errorf("atr %v: %+v", atr, res)
		}
	}
}

func TestPaperBroker_CooldownAfterLoss(t *testing.T) {
	cfg := testConfig()
	b := newBroker()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), cfg)
	exit := t0.Add(time.Hour)
	b.OnCandle(bar(exit, 100, 80))

	if res := b.OnSignal(signal(model.ActionLong, 100, 5, exit.Add(30*time.Minute)), cfg); res.Skipped != SkipCooldown {
		t.Errorf("entry during cooldown: %+v", res)
	}
	if res := b.OnSignal(signal(model.ActionLong, 100, 5, exit.Add(time.Hour)), cfg); res.Opened == nil {
		t.Errorf("entry after cooldown: %+v", res)
	}
}

func TestPaperBroker_NoCooldownAfterWin(t *testing.T) {
	cfg := testConfig()
	b := newBroker()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), cfg)
	exit := t0.Add(time.Hour)
	b.OnCandle(bar(exit, 125, 100))
	if res := b.OnSignal(signal(model.ActionLong, 100, 5, exit), cfg); res.Opened == nil {
		t.Errorf("entry after win: %+v", res)
	}
}

func TestPaperBroker_Slippage(t *testing.T) {
	cfg := testConfig()
	b := NewPaperBroker("bot", WithSlippage(100)) // 1%
	res := b.OnSignal(signal(model.ActionLong, 100, 5, t0), cfg)
	if res.Opened.EntryPrice != 101 {
		t.Errorf("long entry = %v, want 101", res.Opened.EntryPrice)
	}
	res = b.OnSignal(signal(model.ActionCloseLong, 200, 5, t0.Add(time.Hour)), cfg)
	if *res.Closed.ExitPrice != 198 {
		t.Errorf("long exit = %v, want 198", *res.Closed.ExitPrice)
	}
}

func TestPaperBroker_PositionIsCopy(t *testing.T) {
	b := newBroker()
	b.OnSignal(signal(model.ActionLong, 100, 5, t0), testConfig())
	pos, _ := b.Position()
	*pos.StopLoss = 0
	pos2, _ := b.Position()
	if *pos2.StopLoss != 90 {
		t.Error("Position aliases the open trade")
	}
}
