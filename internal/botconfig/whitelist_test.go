package botconfig

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNudge(t *testing.T) {
	wl := DefaultWhitelist()
	tests := []struct {
		name    string
		param   Param
		current float64
		dir     int
		want    float64
		ok      bool
	}{
		{"atr up one step", ATRStopMultiplier, 2, +1, 2.25, true},
		{"atr clamps to max", ATRStopMultiplier, 3.9, +1, 4, true},
		{"atr at max is a no-op", ATRStopMultiplier, 4, +1, 4, false},
		{"rsi overbought up", RSIOverbought, 70, +1, 72, true},
		{"cooldown from zero", CooldownMinutes, 0, +1, 15, true},
		{"take profit down", TakeProfitRR, 2, -1, 1.75, true},
		{"take profit at min", TakeProfitRR, 1, -1, 1, false},
		{"outside bounds", MinConfidence, 95, -1, 95, false},
		{"no direction", MinConfidence, 10, 0, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := wl.Nudge(tt.param, tt.current, tt.dir)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Nudge(%s, %v, %d) = (%v, %v), want (%v, %v)",
					tt.param, tt.current, tt.dir, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNudge_NotWhitelisted(t *testing.T) {
	wl := Whitelist{RSIOversold: RSIOversold.HardBounds()}
	if _, ok := wl.Nudge(ATRStopMultiplier, 2, 1); ok {
		t.Error("nudge of non-whitelisted param must be refused")
	}
}

func TestNudge_NeverExceedsStep(t *testing.T) {
	wl := DefaultWhitelist()
	for _, p := range Params() {
		b := wl[p]
		for v := b.Min; v <= b.Max; v += b.Step / 3 {
			for _, dir := range []int{-1, 1} {
				next, ok := wl.Nudge(p, v, dir)
				if !ok {
					continue
				}
				if err := wl.Validate(p, v, next); err != nil {
					t.Fatalf("Nudge(%s, %v, %d) = %v: %v", p, v, dir, next, err)
				}
			}
		}
	}
}

func TestNudge_OffGridValueStaysWithinStep(t *testing.T) {
	wl := DefaultWhitelist()
	b := wl[ATRStopMultiplier]
	for _, cur := range []float64{7.0 / 6, 1.2345678901, 2.0000004} {
		for _, dir := range []int{-1, 1} {
			next, ok := wl.Nudge(ATRStopMultiplier, cur, dir)
			if !ok {
				t.Fatalf("Nudge(%v, %d) refused", cur, dir)
			}
			if d := math.Abs(next - cur); d > b.Step+1e-9 {
				t.Errorf("Nudge(%v, %d) = %v: moved %v", cur, dir, next, d)
			}
			if err := wl.Validate(ATRStopMultiplier, cur, next); err != nil {
				t.Errorf("Validate: %v", err)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	wl := DefaultWhitelist()
	if err := wl.Validate(ATRStopMultiplier, 2, 2.25); err != nil {
		t.Errorf("single step rejected: %v", err)
	}
	if err := wl.Validate(ATRStopMultiplier, 2, 2.5); err == nil {
		t.Error("double step accepted")
	}
	if err := wl.Validate(RSIOverbought, 84, 86); err == nil {
		t.Error("value above max accepted")
	}
	delete(wl, RSIOverbought)
	if err := wl.Validate(RSIOverbought, 70, 72); err == nil {
		t.Error("non-whitelisted param accepted")
	}
}

func TestParam_TextRoundTrip(t *testing.T) {
	b, err := json.Marshal(map[string]Param{"p": CooldownMinutes})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"p":"cooldown_minutes"}` {
		t.Errorf("marshal = %s", b)
	}
	var out map[string]Param
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out["p"] != CooldownMinutes {
		t.Errorf("unmarshal = %v", out["p"])
	}
	if _, err := ParseParam("leverage"); err == nil {
		t.Error("unknown param parsed")
	}
}
