// Package runner drives bots: it feeds closed candles through the strategy
// engine and the paper broker, journals what happens, and runs a critique
// cycle every few closed trades.
package runner

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/critic"
	"trading-botcore/internal/execution"
	"trading-botcore/internal/journal"
	"trading-botcore/internal/logger"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
	"trading-botcore/internal/notification"
	"trading-botcore/internal/ringbuf"
	"trading-botcore/internal/strategy"
	"trading-botcore/internal/trace"
	"trading-botcore/internal/tuning"
)

// Journal event kinds written by the runner.
const (
	EventCritiqueReport = "critique_report"
	EventAutoApplyError = "auto_apply_error"
)

// DefaultCritiqueEvery is the number of newly closed trades that triggers a critique.
const DefaultCritiqueEvery = journal.DefaultCritiqueBatch

// SignalPublisher makes emitted signals visible outside the process.
type SignalPublisher interface {
	Publish(ctx context.Context, botID string, sig *model.Signal) error
}

// Publishers publishes to each publisher in turn and returns the first error.
type Publishers []SignalPublisher

func (ps Publishers) Publish(ctx context.Context, botID string, sig *model.Signal) error {
	var first error
	for _, p := range ps {
		if err := p.Publish(ctx, botID, sig); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Deps are the collaborators shared by every bot.
type Deps struct {
	Journal   *journal.Journal
	Reports   *critic.ReportStore
	Applier   *tuning.Applier
	Notifier  notification.Notifier
	Publisher SignalPublisher // optional
	Tracer    *trace.Tracer
	Health    *metrics.HealthStatus // optional
	Log       *zap.Logger
	Metrics   *metrics.Metrics

	CritiqueEvery int
	WindowSize    int
	// Lossless makes the feed wait for slow bots instead of dropping
	// candles. Backtests set it.
	Lossless bool
	// NewBroker overrides the paper broker, mainly for tests.
	NewBroker func(botID string) execution.Broker
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Discard()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLogNotifier(d.Log)
	}
	if d.Reports == nil {
		d.Reports = critic.NewReportStore()
	}
	if d.Applier == nil {
		d.Applier = tuning.New(d.Reports, d.Journal, tuning.WithLogger(d.Log), tuning.WithMetrics(d.Metrics))
	}
	if d.CritiqueEvery <= 0 {
		d.CritiqueEvery = DefaultCritiqueEvery
	}
	if d.NewBroker == nil {
		d.NewBroker = func(botID string) execution.Broker {
			return execution.NewPaperBroker(botID,
				execution.WithLogger(d.Log.Named("paper")),
				execution.WithMetrics(d.Metrics))
		}
	}
}

// Bot is one configured strategy instance. OnCandle must be called from a
// single goroutine.
type Bot struct {
	id     string
	engine *strategy.Engine
	window *ringbuf.Window
	broker execution.Broker
	deps   Deps
	log    *zap.Logger

	closedSince int
}

// NewBot creates a bot for cfg and registers it for tuning.
func NewBot(cfg *botconfig.Config, deps Deps) *Bot {
	deps.defaults()
	log := deps.Log.With(zap.String("bot", cfg.BotID))

	size := deps.WindowSize
	if w := cfg.WarmUp() + 1; size < w {
		size = w
	}
	b := &Bot{
		id: cfg.BotID,
		engine: strategy.NewEngine(cfg,
			strategy.WithLogger(log.Named("strategy")),
			strategy.WithMetrics(deps.Metrics)),
		window: ringbuf.New(size),
		broker: deps.NewBroker(cfg.BotID),
		deps:   deps,
		log:    log,
	}
	deps.Applier.Register(cfg.BotID, b.engine)
	return b
}

func (b *Bot) ID() string { return b.id }

// Engine returns the bot's strategy engine.
func (b *Bot) Engine() *strategy.Engine { return b.engine }

// Broker returns the bot's broker.
func (b *Bot) Broker() execution.Broker { return b.broker }

// Warm loads historical candles into the window without evaluating them.
func (b *Bot) Warm(candles []model.Candle) {
	for _, c := range candles {
		b.window.Push(c)
	}
	b.log.Info("window warmed", zap.Int("candles", b.window.Len()), zap.Int("warm_up", b.engine.Config().WarmUp()))
}

// OnCandle runs one cycle for a newly closed candle: exits on stop or
// target, strategy evaluation, execution of the signal, and a critique when
// enough trades have closed since the last one.
func (b *Bot) OnCandle(ctx context.Context, c model.Candle) error {
	if !b.window.Push(c) {
		b.log.Debug("out-of-order candle ignored", zap.Time("ts", c.Timestamp))
		return nil
	}
	if b.deps.Health != nil {
		b.deps.Health.SetLastCandle(b.id, c.Timestamp)
	}
	if !b.deps.Tracer.Enabled() {
		// span ids take over when tracing is on
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(b.id, c.Timestamp))
	}

	if res := b.broker.OnCandle(c); res.Closed != nil {
		if err := b.recordClosed(ctx, res.Closed); err != nil {
			return err
		}
	}

	cfg := b.engine.Config()
	sig := b.evaluate(ctx, cfg)
	if sig != nil {
		if _, err := b.deps.Journal.RecordSignal(ctx, b.id, *sig); err != nil {
			return err
		}
		if b.deps.Publisher != nil {
			if err := b.deps.Publisher.Publish(ctx, b.id, sig); err != nil {
				b.log.Warn("publish signal", append(logger.LogWithTrace(ctx), zap.Error(err))...)
			}
		}
		res := b.broker.OnSignal(sig, cfg)
		if res.Skipped != "" {
			b.log.Debug("entry skipped", zap.String("reason", res.Skipped), zap.String("action", string(sig.Action)))
		}
		if res.Closed != nil {
			if err := b.recordClosed(ctx, res.Closed); err != nil {
				return err
			}
		}
	}

	if b.closedSince >= b.deps.CritiqueEvery {
		if _, err := b.Critique(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) evaluate(ctx context.Context, cfg *botconfig.Config) *model.Signal {
	_, span := b.deps.Tracer.Start(ctx, "strategy.evaluate", attribute.String("bot", b.id))
	defer span.End()

	sig := b.engine.ProcessCandles(b.window.Window(), cfg.Timeframe)
	if sig != nil {
		span.SetAttributes(
			attribute.String("action", string(sig.Action)),
			attribute.Float64("confidence", sig.Confidence))
	}
	return sig
}

func (b *Bot) recordClosed(ctx context.Context, t *model.Trade) error {
	if _, err := b.deps.Journal.RecordTrade(ctx, b.id, *t); err != nil {
		return err
	}
	b.closedSince++
	return nil
}

// Critique analyses the most recent closed trades, stores and announces the
// report, and applies its recommendations when the bot has auto_apply set.
func (b *Bot) Critique(ctx context.Context) (*critic.Report, error) {
	ctx, span := b.deps.Tracer.Start(ctx, "critic.report", attribute.String("bot", b.id))
	defer span.End()
	b.closedSince = 0

	trades, err := b.deps.Journal.GetTradesForCritique(ctx, b.id, b.deps.CritiqueEvery)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	cfg := b.engine.Config()
	report := critic.New(cfg).GenerateReport(trades)
	b.deps.Reports.Add(report)

	b.deps.Metrics.CritiqueRuns.WithLabelValues(b.id).Inc()
	for _, rc := range report.Recommendations {
		b.deps.Metrics.Recommendations.WithLabelValues(rc.Parameter.String()).Inc()
	}
	span.SetAttributes(
		attribute.Int("trades", report.Metrics.ClosedTrades),
		attribute.Int("recommendations", len(report.Recommendations)))

	fields := map[string]any{
		"report_id":       report.ID,
		"trades":          report.Metrics.ClosedTrades,
		"win_rate":        report.Metrics.WinRate,
		"expectancy":      report.Metrics.Expectancy,
		"recommendations": len(report.Recommendations),
	}
	if _, err := b.deps.Journal.RecordEvent(ctx, b.id, model.Event{
		ID:      report.ID,
		Kind:    EventCritiqueReport,
		Message: report.Summary(),
		Fields:  fields,
	}); err != nil {
		return report, err
	}

	if err := b.deps.Notifier.Send(ctx, notification.Alert{
		Level:   notification.AlertInfo,
		BotID:   b.id,
		Title:   "Critique report " + report.ID,
		Message: report.Summary(),
	}); err != nil {
		b.log.Warn("notify critique", zap.Error(err))
	}
	b.log.Info("critique completed", append(logger.LogWithTrace(ctx),
		zap.String("report", report.ID),
		zap.Int("trades", report.Metrics.ClosedTrades),
		zap.Float64("win_rate", report.Metrics.WinRate),
		zap.Int("recommendations", len(report.Recommendations)))...)

	if cfg.Tuning.AutoApply && len(report.Recommendations) > 0 {
		b.autoApply(ctx, report)
	}
	return report, nil
}

func (b *Bot) autoApply(ctx context.Context, report *critic.Report) {
	changes, err := b.deps.Applier.ApplyReport(ctx, report)
	for _, ch := range changes {
		if nerr := b.deps.Notifier.Send(ctx, notification.Alert{
			Level: notification.AlertInfo,
			BotID: b.id,
			Title: "Parameter changed",
			Message: ch.Parameter.String() + ": " +
				strconv.FormatFloat(ch.PreviousValue, 'g', -1, 64) + " -> " +
				strconv.FormatFloat(ch.NewValue, 'g', -1, 64) + " (" + ch.Reason + ")",
		}); nerr != nil {
			b.log.Warn("notify parameter change", zap.Error(nerr))
		}
	}
	if err == nil {
		return
	}
	b.log.Error("auto-apply failed", zap.String("report", report.ID), zap.Error(err))
	if _, jerr := b.deps.Journal.RecordEvent(ctx, b.id, model.Event{
		ID:      report.ID + ":auto_apply",
		Kind:    EventAutoApplyError,
		Message: err.Error(),
		Fields:  map[string]any{"report_id": report.ID},
	}); jerr != nil {
		b.log.Error("journal auto-apply failure", zap.Error(jerr))
	}
}
