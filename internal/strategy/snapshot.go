package strategy

import (
	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/indicator"
	"trading-botcore/internal/model"
)

// computeSnapshot returns the latest value of every snapshot indicator over
// the window. Values still in warm-up are the invalid marker.
func computeSnapshot(candles []model.Candle, p botconfig.Periods) model.Snapshot {
	closes := indicator.Closes(candles)
	return model.Snapshot{
		Price:    indicator.Last(closes),
		EMAFast:  indicator.Last(indicator.EMA(closes, p.EMAFast)),
		EMASlow:  indicator.Last(indicator.EMA(closes, p.EMASlow)),
		EMATrend: indicator.Last(indicator.EMA(closes, p.EMATrend)),
		RSI:      indicator.Last(indicator.RSI(closes, p.RSI)),
		ATR:      indicator.Last(indicator.ATR(candles, p.ATR)),
	}
}

func valid(vs ...float64) bool {
	for _, v := range vs {
		if !indicator.IsValid(v) {
			return false
		}
	}
	return true
}

// crossedAbove reports a fast/slow flip from <= to >.
func crossedAbove(cur, prev model.Snapshot) bool {
	if !valid(cur.EMAFast, cur.EMASlow, prev.EMAFast, prev.EMASlow) {
		return false
	}
	return prev.EMAFast <= prev.EMASlow && cur.EMAFast > cur.EMASlow
}

// crossedBelow reports a fast/slow flip from >= to <.
func crossedBelow(cur, prev model.Snapshot) bool {
	if !valid(cur.EMAFast, cur.EMASlow, prev.EMAFast, prev.EMASlow) {
		return false
	}
	return prev.EMAFast >= prev.EMASlow && cur.EMAFast < cur.EMASlow
}
