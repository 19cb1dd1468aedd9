// Package bus fans one candle stream out to every bot subscribed to it.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"trading-botcore/internal/model"
)

// FanOut broadcasts candles from a single input channel to named output
// channels. If an output channel is full, the candle is dropped for that
// subscriber so a slow bot cannot block the others.
type FanOut struct {
	mu      sync.RWMutex
	outputs []output
	bufSize int
	log     *zap.Logger

	// OnDrop is called when a candle is dropped for a subscriber.
	OnDrop func(subscriber string)
	// Block makes Run wait for slow subscribers instead of dropping.
	Block bool
}

type output struct {
	name string
	ch   chan model.Candle
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int, log *zap.Logger) *FanOut {
	if log == nil {
		log = zap.NewNop()
	}
	return &FanOut{bufSize: outputBufferSize, log: log}
}

// Subscribe creates and returns a new output channel for name. It is
// closed when Run returns.
func (f *FanOut) Subscribe(name string) <-chan model.Candle {
	ch := make(chan model.Candle, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, output{name: name, ch: ch})
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Candle) {
	defer func() {
		f.mu.RLock()
		for _, o := range f.outputs {
			close(o.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for _, o := range f.outputs {
				if f.Block {
					select {
					case o.ch <- candle:
					case <-ctx.Done():
						f.mu.RUnlock()
						return
					}
					continue
				}
				select {
				case o.ch <- candle:
				default:
					if f.OnDrop != nil {
						f.OnDrop(o.name)
					}
					f.log.Warn("subscriber full, dropping candle",
						zap.String("subscriber", o.name), zap.String("stream", candle.Key()))
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat is the saturation of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns the saturation of every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, o := range f.outputs {
		stats[i] = ChannelStat{Name: o.name, Len: len(o.ch), Cap: cap(o.ch)}
	}
	return stats
}
