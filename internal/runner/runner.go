package runner

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/marketdata"
	"trading-botcore/internal/marketdata/bus"
	"trading-botcore/internal/model"
)

const (
	// fanoutBuffer is the per-bot candle backlog before candles are dropped.
	fanoutBuffer = 64
	// backlogInterval is how often subscriber backlogs are sampled.
	backlogInterval = 5 * time.Second
)

// Runner owns every bot and the market data subscriptions feeding them.
// Bots on the same symbol and timeframe share one subscription.
type Runner struct {
	source marketdata.Source
	deps   Deps
	bots   []*Bot
	byID   map[string]*Bot
	log    *zap.Logger
}

// New creates a bot per config. Bot ids must be unique.
func New(source marketdata.Source, cfgs []*botconfig.Config, deps Deps) (*Runner, error) {
	if deps.Journal == nil {
		return nil, errors.New("runner: journal is required")
	}
	deps.defaults()
	r := &Runner{
		source: source,
		deps:   deps,
		byID:   make(map[string]*Bot, len(cfgs)),
		log:    deps.Log.Named("runner"),
	}
	for _, cfg := range cfgs {
		if _, dup := r.byID[cfg.BotID]; dup {
			return nil, errors.Errorf("runner: duplicate bot id %q", cfg.BotID)
		}
		b := NewBot(cfg, deps)
		r.bots = append(r.bots, b)
		r.byID[cfg.BotID] = b
	}
	return r, nil
}

// Deps returns the resolved shared collaborators.
func (r *Runner) Deps() Deps { return r.deps }

// Bots returns the bots in configuration order.
func (r *Runner) Bots() []*Bot { return r.bots }

// Bot looks up a bot by id.
func (r *Runner) Bot(id string) (*Bot, bool) {
	b, ok := r.byID[id]
	return b, ok
}

type stream struct {
	symbol, timeframe string
	bots              []*Bot
}

func (r *Runner) streams() []*stream {
	var (
		out   []*stream
		index = make(map[string]*stream)
	)
	for _, b := range r.bots {
		cfg := b.engine.Config()
		key := model.StreamKey(cfg.Symbol, cfg.Timeframe)
		s, ok := index[key]
		if !ok {
			s = &stream{symbol: cfg.Symbol, timeframe: cfg.Timeframe}
			index[key] = s
			out = append(out, s)
		}
		s.bots = append(s.bots, b)
	}
	return out
}

// Run warms every bot and processes live candles until ctx is done or every
// subscription has ended. It returns the first failure other than
// cancellation.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, s := range r.streams() {
		if err := r.warm(ctx, s); err != nil {
			return err
		}

		fo := bus.New(fanoutBuffer, r.log)
		fo.Block = r.deps.Lossless
		fo.OnDrop = func(name string) { r.deps.Metrics.FanoutDropsTotal.WithLabelValues(name).Inc() }
		for _, b := range s.bots {
			ch := fo.Subscribe(b.id)
			wg.Add(1)
			go func(b *Bot, ch <-chan model.Candle) {
				defer wg.Done()
				for c := range ch {
					if err := b.OnCandle(ctx, c); err != nil {
						b.log.Error("cycle failed", zap.Error(err))
						fail(errors.Wrapf(err, "bot %s", b.id))
					}
				}
			}(b, ch)
		}

		input := make(chan model.Candle, fanoutBuffer)
		wg.Add(2)
		go func(s *stream) {
			defer wg.Done()
			defer close(input)
			r.log.Info("subscribing", zap.String("symbol", s.symbol), zap.String("timeframe", s.timeframe),
				zap.Int("bots", len(s.bots)))
			fail(r.source.Subscribe(ctx, s.symbol, s.timeframe, input))
		}(s)
		fanDone := make(chan struct{})
		go func() {
			defer wg.Done()
			defer close(fanDone)
			fo.Run(ctx, input)
		}()
		wg.Add(1)
		go func(fo *bus.FanOut) {
			defer wg.Done()
			t := time.NewTicker(backlogInterval)
			defer t.Stop()
			for {
				select {
				case <-fanDone:
					return
				case <-t.C:
					r.recordBacklog(fo)
				}
			}
		}(fo)
	}

	wg.Wait()
	return firstErr
}

// recordBacklog publishes how many candles each subscriber has queued.
func (r *Runner) recordBacklog(fo *bus.FanOut) {
	for _, st := range fo.ChannelStats() {
		r.deps.Metrics.FanoutBacklog.WithLabelValues(st.Name).Set(float64(st.Len))
	}
}

func (r *Runner) warm(ctx context.Context, s *stream) error {
	need := 0
	for _, b := range s.bots {
		if w := b.engine.Config().WarmUp(); w > need {
			need = w
		}
	}
	candles, err := r.source.Candles(ctx, s.symbol, s.timeframe, need)
	if err != nil {
		return errors.Wrapf(err, "runner: warm-up %s", model.StreamKey(s.symbol, s.timeframe))
	}
	for _, b := range s.bots {
		b.Warm(candles)
	}
	return nil
}
