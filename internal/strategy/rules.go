package strategy

import (
	"fmt"
	"math"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/indicator"
	"trading-botcore/internal/model"
)

// rsiMidline separates bullish from bearish momentum for entry rules.
const rsiMidline = 50.0

// Confidence scoring.
const (
	baseConfidence  = 50.0
	trendBonus      = 15.0
	stackBonus      = 15.0
	rsiConfirmBonus = 10.0
	rsiExtremeMalus = 10.0
)

// evaluate applies the enabled rules in order; the first match wins.
//
//	long:        price > trend EMA, fast crosses above slow, RSI > 50
//	short:       price < trend EMA, fast crosses below slow, RSI < 50
//	close_long:  fast crosses below slow, or RSI > overbought
//	close_short: fast crosses above slow, or RSI < oversold
func evaluate(cur, prev model.Snapshot, cfg *botconfig.Config, p botconfig.Periods) (model.Action, []string, bool) {
	up := crossedAbove(cur, prev)
	down := crossedBelow(cur, prev)
	rsiOK := indicator.IsValid(cur.RSI)
	trendOK := valid(cur.Price, cur.EMATrend)

	crossUp := fmt.Sprintf("EMA%d crossed above EMA%d", p.EMAFast, p.EMASlow)
	crossDown := fmt.Sprintf("EMA%d crossed below EMA%d", p.EMAFast, p.EMASlow)

	if cfg.RuleEnabled(model.ActionLong) && trendOK && rsiOK &&
		cur.Price > cur.EMATrend && up && cur.RSI > rsiMidline {
		return model.ActionLong, []string{
			crossUp,
			fmt.Sprintf("price %.2f above EMA%d %.2f", cur.Price, p.EMATrend, cur.EMATrend),
			fmt.Sprintf("RSI %.1f above %g", cur.RSI, rsiMidline),
		}, true
	}

	if cfg.RuleEnabled(model.ActionShort) && trendOK && rsiOK &&
		cur.Price < cur.EMATrend && down && cur.RSI < rsiMidline {
		return model.ActionShort, []string{
			crossDown,
			fmt.Sprintf("price %.2f below EMA%d %.2f", cur.Price, p.EMATrend, cur.EMATrend),
			fmt.Sprintf("RSI %.1f below %g", cur.RSI, rsiMidline),
		}, true
	}

	overbought, oversold := cfg.Thresholds.RSIOverbought, cfg.Thresholds.RSIOversold

	if cfg.RuleEnabled(model.ActionCloseLong) {
		var reasons []string
		if down {
			reasons = append(reasons, crossDown)
		}
		if rsiOK && cur.RSI > overbought {
			reasons = append(reasons, fmt.Sprintf("RSI %.1f overbought (> %g)", cur.RSI, overbought))
		}
		if len(reasons) > 0 {
			return model.ActionCloseLong, reasons, true
		}
	}

	if cfg.RuleEnabled(model.ActionCloseShort) {
		var reasons []string
		if up {
			reasons = append(reasons, crossUp)
		}
		if rsiOK && cur.RSI < oversold {
			reasons = append(reasons, fmt.Sprintf("RSI %.1f oversold (< %g)", cur.RSI, oversold))
		}
		if len(reasons) > 0 {
			return model.ActionCloseShort, reasons, true
		}
	}

	return "", nil, false
}

// direction is +1 for bullish actions and -1 for bearish ones.
// Closing a long is bearish, closing a short is bullish.
func direction(a model.Action) int {
	switch a {
	case model.ActionLong, model.ActionCloseShort:
		return 1
	default:
		return -1
	}
}

// confidence scores an action against the snapshot, clamped to [0, 100].
func confidence(a model.Action, s model.Snapshot, cfg *botconfig.Config) (float64, []string) {
	dir := direction(a)
	score := baseConfidence
	var reasons []string

	if valid(s.Price, s.EMATrend) {
		if (dir > 0 && s.Price > s.EMATrend) || (dir < 0 && s.Price < s.EMATrend) {
			score += trendBonus
			reasons = append(reasons, "trend filter agrees")
		}
	}

	if valid(s.EMAFast, s.EMASlow, s.EMATrend) {
		if (dir > 0 && s.EMAFast > s.EMASlow && s.EMASlow > s.EMATrend) ||
			(dir < 0 && s.EMAFast < s.EMASlow && s.EMASlow < s.EMATrend) {
			score += stackBonus
			reasons = append(reasons, "EMA stack aligned")
		}
	}

	if indicator.IsValid(s.RSI) {
		overbought, oversold := cfg.Thresholds.RSIOverbought, cfg.Thresholds.RSIOversold
		switch {
		case dir > 0 && s.RSI > rsiMidline && s.RSI <= overbought,
			dir < 0 && s.RSI < rsiMidline && s.RSI >= oversold:
			score += rsiConfirmBonus
			reasons = append(reasons, "RSI confirms momentum")
		case dir > 0 && s.RSI > overbought:
			score -= rsiExtremeMalus
			reasons = append(reasons, "RSI overbought")
		case dir < 0 && s.RSI < oversold:
			score -= rsiExtremeMalus
			reasons = append(reasons, "RSI oversold")
		}
	}

	return math.Max(0, math.Min(100, score)), reasons
}
