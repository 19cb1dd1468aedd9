package model

import "time"

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is opened and closed by the execution layer. PnL is set iff Status is closed.
type Trade struct {
	ID         string      `json:"id"`
	BotID      string      `json:"bot_id"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  *float64    `json:"exit_price,omitempty"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   *time.Time  `json:"exit_time,omitempty"`
	Quantity   float64     `json:"quantity"`
	StopLoss   *float64    `json:"stop_loss,omitempty"`
	TakeProfit *float64    `json:"take_profit,omitempty"`
	PnL        *float64    `json:"pnl,omitempty"`
	Status     TradeStatus `json:"status"`
}

// IsClosed reports whether the trade is closed with a realised pnl.
func (t *Trade) IsClosed() bool {
	return t.Status == TradeClosed && t.PnL != nil
}

// Float returns a pointer to v, for the optional price fields.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to v, for the optional time fields.
func Time(v time.Time) *time.Time { return &v }

// Clone returns a copy that shares no pointers with t.
func (t Trade) Clone() Trade {
	out := t
	out.ExitPrice = clonePtr(t.ExitPrice)
	out.ExitTime = clonePtr(t.ExitTime)
	out.StopLoss = clonePtr(t.StopLoss)
	out.TakeProfit = clonePtr(t.TakeProfit)
	out.PnL = clonePtr(t.PnL)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
