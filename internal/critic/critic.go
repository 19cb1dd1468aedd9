// Package critic turns a batch of closed trades into a performance critique
// and a small set of whitelisted, single-step parameter recommendations.
package critic

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/model"
)

// NotEnoughTrades is the only finding of a report without closed trades.
const NotEnoughTrades = "Not enough trades to analyze"

// Finding thresholds.
const (
	goodWinRate        = 50.0
	goodRMultiple      = 1.0
	poorRMultiple      = 0.5
	tightStopHitRate   = 60.0
	earlyExitTPRate    = 20.0
	earlyExitWinRate   = 40.0
	lowWinRate         = 40.0
	lowWinRateRFloor   = 0.8
	overtradingHolding = float64(time.Hour / time.Millisecond)
	lossStreak         = 3
)

// Critic generates reports against one bot configuration, which supplies the
// current parameter values and the whitelist.
type Critic struct {
	cfg   *botconfig.Config
	newID func() string
	now   func() time.Time
}

// Option configures a Critic.
type Option func(*Critic)

func WithIDGenerator(f func() string) Option { return func(c *Critic) { c.newID = f } }

func WithClock(now func() time.Time) Option { return func(c *Critic) { c.now = now } }

// New creates a critic for cfg. The config is not retained beyond reads.
// A nil cfg critiques against the default configuration.
func New(cfg *botconfig.Config, opts ...Option) *Critic {
	if cfg == nil {
		cfg = botconfig.Default()
	}
	c := &Critic{cfg: cfg, newID: uuid.NewString, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateReport critiques trades in the order given. It never fails: input
// without closed trades yields a report carrying only NotEnoughTrades.
func (c *Critic) GenerateReport(trades []model.Trade) *Report {
	r := &Report{
		ID:              c.newID(),
		BotID:           c.cfg.BotID,
		TradeIDs:        make([]string, 0, len(trades)),
		WhatWorked:      []string{},
		WhatDidntWork:   []string{},
		FailurePatterns: []string{},
		Recommendations: []ParameterChange{},
		AppliedChanges:  []ParameterChange{},
		CreatedAt:       c.now().UTC(),
	}
	for _, t := range trades {
		r.TradeIDs = append(r.TradeIDs, t.ID)
	}

	m, holdingSamples := ComputeMetrics(trades)
	r.Metrics = m
	if m.ClosedTrades == 0 {
		r.WhatDidntWork = append(r.WhatDidntWork, NotEnoughTrades)
		return r
	}

	if m.WinRate >= goodWinRate {
		r.WhatWorked = append(r.WhatWorked, fmt.Sprintf("Win rate %.1f%% is at least %.0f%%", m.WinRate, goodWinRate))
	} else {
		r.WhatDidntWork = append(r.WhatDidntWork, fmt.Sprintf("Win rate %.1f%% is below %.0f%%", m.WinRate, goodWinRate))
	}

	switch {
	case m.AvgRMultiple >= goodRMultiple:
		r.WhatWorked = append(r.WhatWorked, fmt.Sprintf("Average R-multiple %.2f is at least %.1f", m.AvgRMultiple, goodRMultiple))
	case m.AvgRMultiple < poorRMultiple:
		r.WhatDidntWork = append(r.WhatDidntWork, fmt.Sprintf("Average R-multiple %.2f is below %.1f", m.AvgRMultiple, poorRMultiple))
	}

	switch {
	case m.Expectancy > 0:
		r.WhatWorked = append(r.WhatWorked, fmt.Sprintf("Positive expectancy %.2f per trade", m.Expectancy))
	case m.Expectancy < 0:
		r.WhatDidntWork = append(r.WhatDidntWork, fmt.Sprintf("Negative expectancy %.2f per trade", m.Expectancy))
	}

	if m.StopHitRate > tightStopHitRate {
		r.FailurePatterns = append(r.FailurePatterns,
			fmt.Sprintf("Stops too tight: %.0f%% of trades hit the stop loss", m.StopHitRate))
		c.recommend(r, botconfig.ATRStopMultiplier, +1,
			"stop loss hit too often; widen the ATR stop")
	}

	if m.TakeProfitHitRate < earlyExitTPRate && m.WinRate > earlyExitWinRate {
		r.FailurePatterns = append(r.FailurePatterns,
			fmt.Sprintf("Exiting too early: only %.0f%% of trades reached take profit", m.TakeProfitHitRate))
		c.recommend(r, botconfig.TakeProfitRR, -1,
			"take profit rarely reached; bring the target closer")
	}

	if holdingSamples > 0 && m.AvgHoldingTimeMs < overtradingHolding {
		r.FailurePatterns = append(r.FailurePatterns,
			fmt.Sprintf("Overtrading: average holding time %s is under 1h",
				(time.Duration(m.AvgHoldingTimeMs) * time.Millisecond).Round(time.Second)))
		c.recommend(r, botconfig.MinConfidence, +1,
			"positions are short-lived; require more confidence before entering")
	}

	if m.MaxConsecutiveLosses >= lossStreak {
		r.FailurePatterns = append(r.FailurePatterns,
			fmt.Sprintf("%d consecutive losing trades", m.MaxConsecutiveLosses))
		c.recommend(r, botconfig.CooldownMinutes, +1,
			"losing streak; pause longer after a loss")
	}

	if m.WinRate < lowWinRate && m.AvgRMultiple > lowWinRateRFloor {
		c.recommend(r, botconfig.RSIOverbought, +1,
			"few but large winners; raise the overbought exit to let winners run")
	}

	return r
}

// recommend adds a one-step change of p when p is whitelisted and not
// already at its bound.
func (c *Critic) recommend(r *Report, p botconfig.Param, dir int, reason string) {
	prev := c.cfg.Value(p)
	next, ok := c.cfg.Tuning.Whitelist.Nudge(p, prev, dir)
	if !ok {
		return
	}
	r.Recommendations = append(r.Recommendations, ParameterChange{
		Parameter:     p,
		PreviousValue: prev,
		NewValue:      next,
		Reason:        reason,
	})
}

// ComputeMetrics computes batch metrics over the closed trades in trades,
// in the given order. holdingSamples is the number of trades with both
// entry and exit times.
func ComputeMetrics(trades []model.Trade) (m Metrics, holdingSamples int) {
	m.TotalTrades = len(trades)

	var (
		sumWin, sumLoss, sumR, sumHoldMs float64
		stopHits, tpHits                 int
		cum, peak                        float64
		streak                           int
	)
	for i := range trades {
		t := &trades[i]
		if !t.IsClosed() {
			continue
		}
		m.ClosedTrades++
		pnl := *t.PnL
		m.TotalPnL += pnl

		switch {
		case pnl > 0:
			m.Wins++
			sumWin += pnl
			streak = 0
		case pnl < 0:
			m.Losses++
			sumLoss += -pnl
			streak++
			if streak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = streak
			}
		default:
			streak = 0
		}

		sumR += rMultiple(t)

		if t.ExitTime != nil && !t.EntryTime.IsZero() {
			holdingSamples++
			sumHoldMs += float64(t.ExitTime.Sub(t.EntryTime).Milliseconds())
		}

		if stopHit(t) {
			stopHits++
		}
		if takeProfitHit(t) {
			tpHits++
		}

		cum += pnl
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			if dd := (peak - cum) / peak * 100; dd > m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	if m.ClosedTrades == 0 {
		return m, 0
	}
	n := float64(m.ClosedTrades)
	m.WinRate = float64(m.Wins) / n * 100
	if m.Wins > 0 {
		m.AvgWin = sumWin / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = sumLoss / float64(m.Losses)
	}
	m.Expectancy = m.WinRate/100*m.AvgWin - (100-m.WinRate)/100*m.AvgLoss
	m.AvgRMultiple = sumR / n
	if holdingSamples > 0 {
		m.AvgHoldingTimeMs = sumHoldMs / float64(holdingSamples)
	}
	m.StopHitRate = float64(stopHits) / n * 100
	m.TakeProfitHitRate = float64(tpHits) / n * 100
	return m, holdingSamples
}

// rMultiple is pnl over the dollar risk implied by the stop, or 0 when the
// risk is undefined.
func rMultiple(t *model.Trade) float64 {
	if t.StopLoss == nil || t.EntryPrice == 0 {
		return 0
	}
	risk := math.Abs(t.EntryPrice-*t.StopLoss) * t.Quantity
	if risk == 0 {
		return 0
	}
	return *t.PnL / risk
}

func stopHit(t *model.Trade) bool {
	if t.StopLoss == nil || t.ExitPrice == nil {
		return false
	}
	if t.Side == model.SideShort {
		return *t.ExitPrice >= *t.StopLoss
	}
	return *t.ExitPrice <= *t.StopLoss
}

func takeProfitHit(t *model.Trade) bool {
	if t.TakeProfit == nil || t.ExitPrice == nil {
		return false
	}
	if t.Side == model.SideShort {
		return *t.ExitPrice <= *t.TakeProfit
	}
	return *t.ExitPrice >= *t.TakeProfit
}
