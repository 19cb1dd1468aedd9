package execution

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
)

// Reasons an entry signal is not taken.
const (
	SkipPositionOpen = "position already open"
	SkipCooldown     = "cooling down after a loss"
	SkipNoATR        = "atr unavailable for stop"
)

// PaperBroker simulates execution for one bot. It holds at most one
// position. Entries get an ATR stop and a take profit at a multiple of the
// risk; positions close on the matching close signal or when a later candle
// touches the stop or the target.
type PaperBroker struct {
	mu            sync.Mutex
	botID         string
	open          *model.Trade
	cooldown      time.Duration // post-loss pause of the open trade
	cooldownUntil time.Time

	slippageBps float64
	newID       func() string
	log         *zap.Logger
	metrics     *metrics.Metrics
}

var _ Broker = (*PaperBroker)(nil)

// PaperOption configures a PaperBroker.
type PaperOption func(*PaperBroker)

// WithSlippage worsens every fill by bps basis points.
func WithSlippage(bps float64) PaperOption { return func(p *PaperBroker) { p.slippageBps = bps } }

func WithLogger(l *zap.Logger) PaperOption { return func(p *PaperBroker) { p.log = l } }

func WithMetrics(m *metrics.Metrics) PaperOption { return func(p *PaperBroker) { p.metrics = m } }

func WithIDGenerator(f func() string) PaperOption { return func(p *PaperBroker) { p.newID = f } }

// NewPaperBroker creates a flat broker for botID.
func NewPaperBroker(botID string, opts ...PaperOption) *PaperBroker {
	p := &PaperBroker{
		botID: botID,
		newID: uuid.NewString,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Discard()
	}
	return p
}

// Position returns a copy of the open trade.
func (p *PaperBroker) Position() (model.Trade, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open == nil {
		return model.Trade{}, false
	}
	return p.open.Clone(), true
}

// OnSignal executes sig at its price with the risk settings of cfg.
func (p *PaperBroker) OnSignal(sig *model.Signal, cfg *botconfig.Config) Result {
	if sig == nil {
		return Result{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch sig.Action {
	case model.ActionCloseLong, model.ActionCloseShort:
		want := model.SideLong
		if sig.Action == model.ActionCloseShort {
			want = model.SideShort
		}
		if p.open == nil || p.open.Side != want {
			return Result{}
		}
		return Result{Closed: p.closePosition(p.fill(sig.Price, want, false), sig.Timestamp, string(sig.Action))}
	}

	switch {
	case p.open != nil:
		return Result{Skipped: SkipPositionOpen}
	case sig.Timestamp.Before(p.cooldownUntil):
		return Result{Skipped: SkipCooldown}
	case !(sig.Indicators.ATR > 0) || math.IsInf(sig.Indicators.ATR, 0):
		return Result{Skipped: SkipNoATR}
	}

	side := model.SideLong
	if sig.Action == model.ActionShort {
		side = model.SideShort
	}
	entry := p.fill(sig.Price, side, true)
	risk := sig.Indicators.ATR * cfg.Risk.ATRStopMultiplier
	stop, target := entry-risk, entry+risk*cfg.Risk.TakeProfitRR
	if side == model.SideShort {
		stop, target = entry+risk, entry-risk*cfg.Risk.TakeProfitRR
	}

	p.open = &model.Trade{
		ID:         p.newID(),
		BotID:      p.botID,
		Symbol:     sig.Symbol,
		Side:       side,
		EntryPrice: entry,
		EntryTime:  sig.Timestamp,
		Quantity:   cfg.Risk.Quantity,
		StopLoss:   model.Float(stop),
		TakeProfit: model.Float(target),
		Status:     model.TradeOpen,
	}
	p.cooldown = time.Duration(cfg.Risk.CooldownMinutes) * time.Minute
	p.log.Info("position opened",
		zap.String("bot", p.botID),
		zap.String("trade", p.open.ID),
		zap.String("side", string(side)),
		zap.Float64("entry", entry),
		zap.Float64("stop", stop),
		zap.Float64("target", target))
	opened := p.open.Clone()
	return Result{Opened: &opened}
}

// OnCandle closes the open position when c, a candle after the entry,
// touches the stop or the target. A candle touching both is taken as a stop.
func (p *PaperBroker) OnCandle(c model.Candle) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.open
	if t == nil || !c.Timestamp.After(t.EntryTime) {
		return Result{}
	}
	stop, target := *t.StopLoss, *t.TakeProfit

	var stopTouched, targetTouched bool
	if t.Side == model.SideLong {
		stopTouched, targetTouched = c.Low <= stop, c.High >= target
	} else {
		stopTouched, targetTouched = c.High >= stop, c.Low <= target
	}

	switch {
	case stopTouched:
		return Result{Closed: p.closePosition(stop, c.Timestamp, "stop_loss")}
	case targetTouched:
		return Result{Closed: p.closePosition(target, c.Timestamp, "take_profit")}
	}
	return Result{}
}

// closePosition exits the open position at exit. A loss starts the cooldown
// configured when the position was opened.
func (p *PaperBroker) closePosition(exit float64, at time.Time, reason string) *model.Trade {
	t := p.open
	p.open = nil

	pnl := (exit - t.EntryPrice) * t.Quantity
	if t.Side == model.SideShort {
		pnl = -pnl
	}
	t.ExitPrice = model.Float(exit)
	t.ExitTime = model.Time(at)
	t.PnL = model.Float(pnl)
	t.Status = model.TradeClosed

	outcome := "win"
	if pnl < 0 {
		outcome = "loss"
		p.cooldownUntil = at.Add(p.cooldown)
	}
	p.metrics.TradesClosed.WithLabelValues(p.botID, outcome).Inc()
	p.log.Info("position closed",
		zap.String("bot", p.botID),
		zap.String("trade", t.ID),
		zap.String("reason", reason),
		zap.Float64("exit", exit),
		zap.Float64("pnl", pnl))
	return t
}

// fill applies slippage against the trader: entries of a long and exits of
// a short pay more.
func (p *PaperBroker) fill(price float64, side model.Side, entry bool) float64 {
	if p.slippageBps == 0 {
		return price
	}
	slip := price * p.slippageBps / 10000
	if (side == model.SideLong) == entry {
		return price + slip
	}
	return price - slip
}
