package botconfig

import (
	"fmt"
	"math"
)

// Param identifies a configuration value that automation may adjust.
// The set is closed: anything outside it can never be recommended or applied.
type Param int

const (
	ATRStopMultiplier Param = iota + 1
	RSIOverbought
	RSIOversold
	CooldownMinutes
	TakeProfitRR
	MinConfidence
)

var paramNames = map[Param]string{
	ATRStopMultiplier: "atr_stop_multiplier",
	RSIOverbought:     "rsi_overbought",
	RSIOversold:       "rsi_oversold",
	CooldownMinutes:   "cooldown_minutes",
	TakeProfitRR:      "take_profit_rr",
	MinConfidence:     "min_confidence",
}

// hardBounds are the outer limits of every parameter. A bot's whitelist may
// narrow them but never widen them.
var hardBounds = map[Param]Bounds{
	ATRStopMultiplier: {Min: 1, Max: 4, Step: 0.25},
	RSIOverbought:     {Min: 60, Max: 85, Step: 2},
	RSIOversold:       {Min: 15, Max: 40, Step: 2},
	CooldownMinutes:   {Min: 0, Max: 240, Step: 15},
	TakeProfitRR:      {Min: 1, Max: 5, Step: 0.25},
	MinConfidence:     {Min: 0, Max: 90, Step: 5},
}

// Params returns every parameter in declaration order.
func Params() []Param {
	return []Param{ATRStopMultiplier, RSIOverbought, RSIOversold, CooldownMinutes, TakeProfitRR, MinConfidence}
}

func (p Param) String() string {
	if n, ok := paramNames[p]; ok {
		return n
	}
	return fmt.Sprintf("param(%d)", int(p))
}

// Valid reports whether p is a member of the enumeration.
func (p Param) Valid() bool {
	_, ok := paramNames[p]
	return ok
}

// HardBounds returns the outer limits of p.
func (p Param) HardBounds() Bounds {
	return hardBounds[p]
}

// ParseParam resolves a parameter by its configuration name.
func ParseParam(name string) (Param, error) {
	for p, n := range paramNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter %q", name)
}

// MarshalText encodes the parameter by name (JSON/YAML keys and values).
func (p Param) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid parameter %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a parameter name.
func (p *Param) UnmarshalText(b []byte) error {
	v, err := ParseParam(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Bounds is the allowed closed range of a parameter and the size of one adjustment.
type Bounds struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Contains reports whether v lies inside [Min, Max].
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min-epsilon && v <= b.Max+epsilon
}

// narrow intersects b with the hard bounds of p.
func (b Bounds) narrow(p Param) (Bounds, error) {
	hard := p.HardBounds()
	out := Bounds{
		Min:  math.Max(b.Min, hard.Min),
		Max:  math.Min(b.Max, hard.Max),
		Step: b.Step,
	}
	if out.Step <= 0 || out.Step > hard.Step {
		out.Step = hard.Step
	}
	if out.Min > out.Max {
		return Bounds{}, fmt.Errorf("%s: empty range [%g, %g] after applying limits [%g, %g]",
			p, b.Min, b.Max, hard.Min, hard.Max)
	}
	return out, nil
}

const epsilon = 1e-9

// round trims float drift accumulated by repeated step additions.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
