package critic

import (
	"fmt"
	"strings"
	"time"

	"trading-botcore/internal/botconfig"
)

// ParameterChange is one bounded adjustment proposed by a critique.
type ParameterChange struct {
	Parameter     botconfig.Param `json:"parameter"`
	PreviousValue float64         `json:"previous_value"`
	NewValue      float64         `json:"new_value"`
	Reason        string          `json:"reason"`
	Applied       bool            `json:"applied"`
}

// Metrics summarises the closed trades of one critique batch.
type Metrics struct {
	TotalTrades          int     `json:"total_trades"`
	ClosedTrades         int     `json:"closed_trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"` // percent
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"` // absolute
	Expectancy           float64 `json:"expectancy"`
	TotalPnL             float64 `json:"total_pnl"`
	AvgRMultiple         float64 `json:"avg_r_multiple"`
	AvgHoldingTimeMs     float64 `json:"avg_holding_time_ms"`
	StopHitRate          float64 `json:"stop_hit_rate"`        // percent
	TakeProfitHitRate    float64 `json:"take_profit_hit_rate"` // percent
	MaxDrawdown          float64 `json:"max_drawdown"`         // percent of peak cumulative pnl
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// Report is the outcome of one critique cycle. Only the recommendation
// Applied flags and AppliedChanges change after creation.
type Report struct {
	ID              string            `json:"id"`
	BotID           string            `json:"bot_id"`
	TradeIDs        []string          `json:"trade_ids"`
	Metrics         Metrics           `json:"metrics"`
	WhatWorked      []string          `json:"what_worked"`
	WhatDidntWork   []string          `json:"what_didnt_work"`
	FailurePatterns []string          `json:"failure_patterns"`
	Recommendations []ParameterChange `json:"recommendations"`
	AppliedChanges  []ParameterChange `json:"applied_changes"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	out := *r
	out.TradeIDs = append([]string{}, r.TradeIDs...)
	out.WhatWorked = append([]string{}, r.WhatWorked...)
	out.WhatDidntWork = append([]string{}, r.WhatDidntWork...)
	out.FailurePatterns = append([]string{}, r.FailurePatterns...)
	out.Recommendations = append([]ParameterChange{}, r.Recommendations...)
	out.AppliedChanges = append([]ParameterChange{}, r.AppliedChanges...)
	return &out
}

// Recommendation returns the pending or applied recommendation for p.
func (r *Report) Recommendation(p botconfig.Param) (ParameterChange, bool) {
	for _, rc := range r.Recommendations {
		if rc.Parameter == p {
			return rc, true
		}
	}
	return ParameterChange{}, false
}

// Summary renders a short multi-line text for notifications.
func (r *Report) Summary() string {
	var b strings.Builder
	m := r.Metrics
	fmt.Fprintf(&b, "Critique %s for %s: %d trades, win rate %.1f%%, expectancy %.2f, max drawdown %.1f%%\n",
		r.ID, r.BotID, m.TotalTrades, m.WinRate, m.Expectancy, m.MaxDrawdown)
	for _, s := range r.WhatWorked {
		fmt.Fprintf(&b, "+ %s\n", s)
	}
	for _, s := range r.WhatDidntWork {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	for _, s := range r.FailurePatterns {
		fmt.Fprintf(&b, "! %s\n", s)
	}
	for _, rc := range r.Recommendations {
		fmt.Fprintf(&b, "> %s %g -> %g (%s)\n", rc.Parameter, rc.PreviousValue, rc.NewValue, rc.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
