// Package strategy maps a candle window and a bot configuration to at most
// one trading signal.
//
// The engine holds no indicator state between calls. Crossovers are detected
// by computing one snapshot over the full window and a second over the window
// without its last candle, so replaying a window always yields the same result.
package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
)

// Engine evaluates candle windows for one bot.
// ProcessCandles is safe for concurrent use; UpdateConfig is the single writer.
type Engine struct {
	mu  sync.RWMutex
	cfg *botconfig.Config

	log     *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator overrides signal id generation.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine creates an engine over a private copy of cfg.
func NewEngine(cfg *botconfig.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.Clone(),
		log:   zap.NewNop(),
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Discard()
	}
	return e
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *botconfig.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// UpdateConfig swaps the configuration. Calls already in flight finish with
// the configuration they started with.
func (e *Engine) UpdateConfig(cfg *botconfig.Config) {
	next := cfg.Clone()
	e.mu.Lock()
	e.cfg = next
	e.mu.Unlock()
	e.log.Info("config updated",
		zap.String("bot", next.BotID),
		zap.Float64("atr_stop_multiplier", next.Risk.ATRStopMultiplier),
		zap.Float64("rsi_overbought", next.Thresholds.RSIOverbought),
		zap.Int("cooldown_minutes", next.Risk.CooldownMinutes))
}

// current returns the configuration pointer for one evaluation. Configs are
// never mutated after publication, so the pointer is safe to use unlocked.
func (e *Engine) current() *botconfig.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// ProcessCandles evaluates the window and returns a signal, or nil for hold.
// Windows shorter than the configured warm-up return nil.
func (e *Engine) ProcessCandles(candles []model.Candle, timeframe string) *model.Signal {
	start := time.Now()
	cfg := e.current()
	defer func() { e.metrics.EvalDur.Observe(time.Since(start).Seconds()) }()
	e.metrics.Evaluations.WithLabelValues(cfg.BotID).Inc()

	if len(candles) < cfg.WarmUp() || len(candles) < 2 {
		return nil
	}

	periods := cfg.Indicators()
	cur := computeSnapshot(candles, periods)
	prev := computeSnapshot(candles[:len(candles)-1], periods)

	action, reasons, ok := evaluate(cur, prev, cfg, periods)
	if !ok {
		return nil
	}
	conf, confReasons := confidence(action, cur, cfg)
	if action.IsEntry() && conf < cfg.Thresholds.MinConfidence {
		e.log.Debug("entry suppressed below min confidence",
			zap.String("bot", cfg.BotID),
			zap.String("action", string(action)),
			zap.Float64("confidence", conf),
			zap.Float64("min_confidence", cfg.Thresholds.MinConfidence))
		return nil
	}

	last := candles[len(candles)-1]
	symbol := last.Symbol
	if symbol == "" {
		symbol = cfg.Symbol
	}
	sig := &model.Signal{
		ID:         e.newID(),
		BotID:      cfg.BotID,
		Symbol:     symbol,
		Timeframe:  timeframe,
		Action:     action,
		Confidence: conf,
		Price:      cur.Price,
		Indicators: cur,
		Reasons:    append(reasons, confReasons...),
		Timestamp:  last.Timestamp,
	}

	e.metrics.SignalsTotal.WithLabelValues(cfg.BotID, string(action)).Inc()
	e.log.Debug("signal",
		zap.String("bot", cfg.BotID),
		zap.String("action", string(action)),
		zap.Float64("confidence", conf),
		zap.Float64("price", cur.Price),
		zap.Strings("reasons", sig.Reasons))
	return sig
}
