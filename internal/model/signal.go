package model

import "time"

// Action is the trading action carried by a Signal.
// "hold" is never materialised: no signal means hold.
type Action string

const (
	ActionLong       Action = "long"
	ActionShort      Action = "short"
	ActionCloseLong  Action = "close_long"
	ActionCloseShort Action = "close_short"
)

// IsEntry reports whether the action opens a position.
func (a Action) IsEntry() bool {
	return a == ActionLong || a == ActionShort
}

// Snapshot holds the indicator values the engine evaluated at the signal candle.
type Snapshot struct {
	Price    float64 `json:"price"`
	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	EMATrend float64 `json:"ema_trend"`
	RSI      float64 `json:"rsi"`
	ATR      float64 `json:"atr"`
}

// Signal is emitted by the strategy engine at most once per evaluation.
// It is immutable once produced.
type Signal struct {
	ID         string    `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // 0..100
	Price      float64   `json:"price"`
	Indicators Snapshot  `json:"indicators"`
	Reasons    []string  `json:"reasons"`
	Timestamp  time.Time `json:"timestamp"`
}

// Clone returns a copy that shares no slices with s.
func (s Signal) Clone() Signal {
	out := s
	out.Reasons = append([]string(nil), s.Reasons...)
	return out
}
