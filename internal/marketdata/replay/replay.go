// Package replay provides a Source that replays stored candles for
// backtesting, at a configurable speed.
package replay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-botcore/internal/marketdata"
	"trading-botcore/internal/model"
)

// CandleReader reads stored candles in ascending time order.
// *sqlite.DB implements it.
type CandleReader interface {
	ReadCandles(ctx context.Context, symbol, timeframe string, from, to time.Time, limit int) ([]model.Candle, error)
}

// Config bounds the replay.
type Config struct {
	From time.Time // zero for the first stored candle
	To   time.Time // zero for the last stored candle
	// Speed is the playback rate: 1 = real time, 10 = 10x, 0 = as fast as possible.
	Speed float64
	// MaxGap caps one sleep between candles. Default: 5s.
	MaxGap time.Duration
}

// Source replays the candles of [From, To]. Candles returns the head of the
// range as the warm-up window and Subscribe streams the remainder.
type Source struct {
	reader CandleReader
	cfg    Config
	log    *zap.Logger

	mu     sync.Mutex
	warmed map[string]time.Time // stream key → last warm-up candle
}

var _ marketdata.Source = (*Source)(nil)

// New creates a replay Source.
func New(reader CandleReader, cfg Config, log *zap.Logger) *Source {
	if cfg.MaxGap == 0 {
		cfg.MaxGap = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{reader: reader, cfg: cfg, log: log, warmed: make(map[string]time.Time)}
}

func (s *Source) Name() string { return "replay" }

// Candles returns the first limit candles of the range.
func (s *Source) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	all, err := s.reader.ReadCandles(ctx, symbol, timeframe, s.cfg.From, s.cfg.To, 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	if len(all) > 0 {
		s.mu.Lock()
		s.warmed[model.StreamKey(symbol, timeframe)] = all[len(all)-1].Timestamp
		s.mu.Unlock()
	}
	return all, nil
}

// Subscribe emits every candle after the warm-up window, then returns nil.
func (s *Source) Subscribe(ctx context.Context, symbol, timeframe string, out chan<- model.Candle) error {
	s.mu.Lock()
	after := s.warmed[model.StreamKey(symbol, timeframe)]
	s.mu.Unlock()

	all, err := s.reader.ReadCandles(ctx, symbol, timeframe, s.cfg.From, s.cfg.To, 0)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		s.log.Warn("no candles to replay", zap.String("symbol", symbol), zap.String("timeframe", timeframe))
		return nil
	}

	var prev time.Time
	emitted := 0
	for _, c := range all {
		if !after.IsZero() && !c.Timestamp.After(after) {
			continue
		}
		if s.cfg.Speed > 0 && !prev.IsZero() {
			if gap := time.Duration(float64(c.Timestamp.Sub(prev)) / s.cfg.Speed); gap > 0 {
				if gap > s.cfg.MaxGap {
					gap = s.cfg.MaxGap
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prev = c.Timestamp

		select {
		case out <- c:
			emitted++
		case <-ctx.Done():
			s.log.Info("replay cancelled", zap.Int("emitted", emitted))
			return ctx.Err()
		}
	}
	s.log.Info("replay completed",
		zap.String("symbol", symbol), zap.String("timeframe", timeframe), zap.Int("emitted", emitted))
	return nil
}
