// Package botconfig holds the per-bot configuration consumed by the strategy
// engine, the paper broker and the critic, and the closed set of parameters
// that automation is allowed to adjust.
package botconfig

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"trading-botcore/internal/model"
)

// Default indicator periods, used when a bot omits or misconfigures one.
const (
	DefaultEMAFast  = 20
	DefaultEMASlow  = 50
	DefaultEMATrend = 200
	DefaultRSI      = 14
	DefaultATR      = 14
)

// Indicator names accepted in the indicators list.
const (
	IndicatorEMAFast  = "ema_fast"
	IndicatorEMASlow  = "ema_slow"
	IndicatorEMATrend = "ema_trend"
	IndicatorRSI      = "rsi"
	IndicatorATR      = "atr"
)

// Config is one bot's configuration.
type Config struct {
	BotID          string          `yaml:"bot_id"`
	Symbol         string          `yaml:"symbol"`
	Timeframe      string          `yaml:"timeframe"`
	IndicatorSpecs []IndicatorSpec `yaml:"indicators"`
	Rules          []model.Action  `yaml:"rules"` // empty = all rules enabled
	Thresholds     Thresholds      `yaml:"thresholds"`
	Risk           Risk            `yaml:"risk"`
	Tuning         Tuning          `yaml:"tuning"`
}

// IndicatorSpec overrides the period of one snapshot indicator.
type IndicatorSpec struct {
	Name    string `yaml:"name"`
	Period  int    `yaml:"period"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type Thresholds struct {
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type Risk struct {
	ATRStopMultiplier float64 `yaml:"atr_stop_multiplier"`
	TakeProfitRR      float64 `yaml:"take_profit_rr"`
	CooldownMinutes   int     `yaml:"cooldown_minutes"`
	Quantity          float64 `yaml:"quantity"`
}

type Tuning struct {
	AutoApply bool      `yaml:"auto_apply"`
	Whitelist Whitelist `yaml:"whitelist"`
}

// Periods are the resolved lookbacks of the indicator snapshot.
type Periods struct {
	EMAFast  int
	EMASlow  int
	EMATrend int
	RSI      int
	ATR      int
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Timeframe: "1h",
		Thresholds: Thresholds{
			RSIOverbought: 70,
			RSIOversold:   30,
		},
		Risk: Risk{
			ATRStopMultiplier: 2,
			TakeProfitRR:      2,
			Quantity:          1,
		},
		Tuning: Tuning{Whitelist: DefaultWhitelist()},
	}
}

// Parse decodes a YAML bot configuration on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("botconfig: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses one bot configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("botconfig: read %s: %w", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadAll loads every file matching a glob pattern, sorted by path.
// Duplicate bot ids are rejected.
func LoadAll(pattern string) ([]*Config, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("botconfig: %w", err)
	}
	sort.Strings(paths)
	seen := make(map[string]string, len(paths))
	out := make([]*Config, 0, len(paths))
	for _, p := range paths {
		cfg, err := Load(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[cfg.BotID]; dup {
			return nil, fmt.Errorf("botconfig: bot %q defined in both %s and %s", cfg.BotID, prev, p)
		}
		seen[cfg.BotID] = p
		out = append(out, cfg)
	}
	return out, nil
}

// Validate checks identity fields and rule names. Bad indicator entries are
// not errors; Indicators falls back to defaults for them.
func (c *Config) Validate() error {
	if c.BotID == "" {
		return fmt.Errorf("botconfig: bot_id is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("botconfig: %s: symbol is required", c.BotID)
	}
	for _, r := range c.Rules {
		switch r {
		case model.ActionLong, model.ActionShort, model.ActionCloseLong, model.ActionCloseShort:
		default:
			return fmt.Errorf("botconfig: %s: unknown rule %q", c.BotID, r)
		}
	}
	if c.Thresholds.RSIOversold >= c.Thresholds.RSIOverbought {
		return fmt.Errorf("botconfig: %s: rsi_oversold %g must be below rsi_overbought %g",
			c.BotID, c.Thresholds.RSIOversold, c.Thresholds.RSIOverbought)
	}
	if c.Risk.Quantity <= 0 {
		return fmt.Errorf("botconfig: %s: risk.quantity must be positive", c.BotID)
	}
	return nil
}

// Indicators resolves the snapshot periods. Unknown names, non-positive
// periods and disabled entries leave the default in place.
func (c *Config) Indicators() Periods {
	p := Periods{
		EMAFast:  DefaultEMAFast,
		EMASlow:  DefaultEMASlow,
		EMATrend: DefaultEMATrend,
		RSI:      DefaultRSI,
		ATR:      DefaultATR,
	}
	for _, spec := range c.IndicatorSpecs {
		if spec.Period <= 0 || (spec.Enabled != nil && !*spec.Enabled) {
			continue
		}
		switch spec.Name {
		case IndicatorEMAFast:
			p.EMAFast = spec.Period
		case IndicatorEMASlow:
			p.EMASlow = spec.Period
		case IndicatorEMATrend:
			p.EMATrend = spec.Period
		case IndicatorRSI:
			p.RSI = spec.Period
		case IndicatorATR:
			p.ATR = spec.Period
		}
	}
	return p
}

// WarmUp is the number of candles the engine needs before any rule can fire.
func (c *Config) WarmUp() int {
	return c.Indicators().WarmUp()
}

// WarmUp returns the longest period.
func (p Periods) WarmUp() int {
	n := p.EMAFast
	for _, v := range []int{p.EMASlow, p.EMATrend, p.RSI, p.ATR} {
		if v > n {
			n = v
		}
	}
	return n
}

// RuleEnabled reports whether the rule producing action a is active.
func (c *Config) RuleEnabled(a model.Action) bool {
	if len(c.Rules) == 0 {
		return true
	}
	for _, r := range c.Rules {
		if r == a {
			return true
		}
	}
	return false
}

// Value returns the current value of p.
func (c *Config) Value(p Param) float64 {
	switch p {
	case ATRStopMultiplier:
		return c.Risk.ATRStopMultiplier
	case RSIOverbought:
		return c.Thresholds.RSIOverbought
	case RSIOversold:
		return c.Thresholds.RSIOversold
	case CooldownMinutes:
		return float64(c.Risk.CooldownMinutes)
	case TakeProfitRR:
		return c.Risk.TakeProfitRR
	case MinConfidence:
		return c.Thresholds.MinConfidence
	}
	return math.NaN()
}

// Set assigns v to p. It does not consult the whitelist.
func (c *Config) Set(p Param, v float64) error {
	switch p {
	case ATRStopMultiplier:
		c.Risk.ATRStopMultiplier = v
	case RSIOverbought:
		c.Thresholds.RSIOverbought = v
	case RSIOversold:
		c.Thresholds.RSIOversold = v
	case CooldownMinutes:
		c.Risk.CooldownMinutes = int(math.Round(v))
	case TakeProfitRR:
		c.Risk.TakeProfitRR = v
	case MinConfidence:
		c.Thresholds.MinConfidence = v
	default:
		return fmt.Errorf("botconfig: unknown parameter %s", p)
	}
	return nil
}

// Clone returns a deep copy, used for copy-on-write updates.
func (c *Config) Clone() *Config {
	out := *c
	out.IndicatorSpecs = make([]IndicatorSpec, len(c.IndicatorSpecs))
	for i, s := range c.IndicatorSpecs {
		out.IndicatorSpecs[i] = s
		if s.Enabled != nil {
			v := *s.Enabled
			out.IndicatorSpecs[i].Enabled = &v
		}
	}
	out.Rules = append([]model.Action(nil), c.Rules...)
	out.Tuning.Whitelist = c.Tuning.Whitelist.Clone()
	return &out
}
