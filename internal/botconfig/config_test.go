package botconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trading-botcore/internal/model"
)

const sampleYAML = `
bot_id: btc-trend
symbol: BTC
timeframe: 4h
indicators:
  - {name: ema_fast, period: 12}
  - {name: ema_slow, period: 0}
  - {name: ema_trend, period: 100, enabled: false}
  - {name: vwap, period: 30}
  - {name: atr, period: 21}
rules: [long, close_long]
thresholds:
  rsi_overbought: 72
risk:
  atr_stop_multiplier: 1.5
  cooldown_minutes: 30
tuning:
  auto_apply: true
  whitelist:
    atr_stop_multiplier: {min: 0.5, max: 3, step: 1}
    cooldown_minutes: {max: 60}
`

func TestParse_AppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.BotID != "btc-trend" || cfg.Timeframe != "4h" {
		t.Errorf("identity = %s/%s", cfg.BotID, cfg.Timeframe)
	}
	if cfg.Thresholds.RSIOverbought != 72 || cfg.Thresholds.RSIOversold != 30 {
		t.Errorf("thresholds = %+v, want overbought 72 and default oversold 30", cfg.Thresholds)
	}
	if cfg.Risk.TakeProfitRR != 2 || cfg.Risk.Quantity != 1 {
		t.Errorf("risk defaults lost: %+v", cfg.Risk)
	}
	if !cfg.Tuning.AutoApply {
		t.Error("auto_apply not decoded")
	}
}

func TestIndicators_FallBackToDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := cfg.Indicators()
	want := Periods{EMAFast: 12, EMASlow: DefaultEMASlow, EMATrend: DefaultEMATrend, RSI: DefaultRSI, ATR: 21}
	if got != want {
		t.Errorf("Indicators() = %+v, want %+v", got, want)
	}
	if cfg.WarmUp() != 200 {
		t.Errorf("WarmUp() = %d, want 200", cfg.WarmUp())
	}
}

func TestWarmUp_FollowsLongestPeriod(t *testing.T) {
	cfg := Default()
	cfg.IndicatorSpecs = []IndicatorSpec{{Name: IndicatorEMATrend, Period: 100}}
	if cfg.WarmUp() != 100 {
		t.Errorf("WarmUp() = %d, want 100", cfg.WarmUp())
	}
}

func TestWhitelist_NarrowedToHardBounds(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wl := cfg.Tuning.Whitelist
	if len(wl) != 2 {
		t.Fatalf("whitelist has %d entries, want 2", len(wl))
	}
	atr := wl[ATRStopMultiplier]
	if atr.Min != 1 || atr.Max != 3 || atr.Step != 0.25 {
		t.Errorf("atr bounds = %+v, want {1 3 0.25}", atr)
	}
	cd := wl[CooldownMinutes]
	if cd.Min != 0 || cd.Max != 60 || cd.Step != 15 {
		t.Errorf("cooldown bounds = %+v, want {0 60 15}", cd)
	}
	if wl.Allows(RSIOverbought) {
		t.Error("rsi_overbought should not be whitelisted")
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing bot id", "symbol: BTC", "bot_id"},
		{"missing symbol", "bot_id: a", "symbol"},
		{"unknown rule", "bot_id: a\nsymbol: BTC\nrules: [buy]", "unknown rule"},
		{"unknown whitelist param", "bot_id: a\nsymbol: BTC\ntuning: {whitelist: {leverage: {max: 10}}}", "unknown parameter"},
		{"empty whitelist range", "bot_id: a\nsymbol: BTC\ntuning: {whitelist: {rsi_overbought: {min: 90, max: 95}}}", "empty range"},
		{"inverted thresholds", "bot_id: a\nsymbol: BTC\nthresholds: {rsi_oversold: 80}", "rsi_oversold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRuleEnabled(t *testing.T) {
	cfg := Default()
	if !cfg.RuleEnabled(model.ActionShort) {
		t.Error("empty rule list should enable every rule")
	}
	cfg.Rules = []model.Action{model.ActionLong}
	if cfg.RuleEnabled(model.ActionShort) || !cfg.RuleEnabled(model.ActionLong) {
		t.Error("rule list not honoured")
	}
}

func TestValueSet_CoverEveryParam(t *testing.T) {
	cfg := Default()
	for i, p := range Params() {
		v := float64(10 + i)
		if err := cfg.Set(p, v); err != nil {
			t.Fatalf("Set(%s): %v", p, err)
		}
		if got := cfg.Value(p); got != v {
			t.Errorf("Value(%s) = %v, want %v", p, got, v)
		}
	}
	if err := cfg.Set(Param(99), 1); err == nil {
		t.Error("Set on unknown param should fail")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cp := cfg.Clone()
	cp.Rules[0] = model.ActionShort
	cp.IndicatorSpecs[0].Period = 99
	cp.Tuning.Whitelist[MinConfidence] = MinConfidence.HardBounds()
	_ = cp.Set(ATRStopMultiplier, 3)

	if cfg.Rules[0] != model.ActionLong || cfg.IndicatorSpecs[0].Period != 12 {
		t.Error("clone shares slices with the original")
	}
	if cfg.Tuning.Whitelist.Allows(MinConfidence) {
		t.Error("clone shares the whitelist map")
	}
	if cfg.Risk.ATRStopMultiplier != 1.5 {
		t.Error("clone shares risk values")
	}
}

func TestLoadAll_RejectsDuplicateBots(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.yaml", "bot_id: one\nsymbol: BTC\n")
	write("b.yaml", "bot_id: two\nsymbol: ETH\n")

	cfgs, err := LoadAll(filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(cfgs) != 2 || cfgs[0].BotID != "one" || cfgs[1].BotID != "two" {
		t.Fatalf("LoadAll returned %d configs", len(cfgs))
	}

	write("c.yaml", "bot_id: one\nsymbol: SOL\n")
	if _, err := LoadAll(filepath.Join(dir, "*.yaml")); err == nil {
		t.Error("duplicate bot id should fail")
	}
}
