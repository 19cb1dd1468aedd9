package redis

import (
	"context"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"trading-botcore/internal/model"
)

// signalsMaxLen bounds each signal stream; trimming is approximate.
const signalsMaxLen = 10000

// SignalsKey is the stream of signals emitted by a bot.
func SignalsKey(botID string) string { return "signals:" + botID }

// SignalsChannel is the pub/sub channel carrying live signals of a bot.
func SignalsChannel(botID string) string { return "pub:signals:" + botID }

// SignalPublisher makes emitted signals visible to downstream consumers:
// a trimmed stream for late readers and a pub/sub channel for live ones.
type SignalPublisher struct {
	c *Client
}

// Signals returns a publisher over c.
func (c *Client) Signals() *SignalPublisher { return &SignalPublisher{c: c} }

// Publish writes sig to the bot's stream and channel in one pipeline.
func (p *SignalPublisher) Publish(ctx context.Context, botID string, sig *model.Signal) error {
	data, err := sonic.Marshal(sig)
	if err != nil {
		return errors.Wrap(err, "redis: encode signal")
	}
	err = p.c.do(ctx, func(ctx context.Context) error {
		pipe := p.c.rdb.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: SignalsKey(botID),
			MaxLen: signalsMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"action": string(sig.Action),
				"data":   string(data),
			},
		})
		pipe.Publish(ctx, SignalsChannel(botID), string(data))
		_, err := pipe.Exec(ctx)
		return err
	})
	return errors.Wrap(err, "redis: publish signal")
}

// Recent returns up to n of the newest signals of a bot, oldest first.
func (p *SignalPublisher) Recent(ctx context.Context, botID string, n int64) ([]model.Signal, error) {
	var msgs []goredis.XMessage
	err := p.c.do(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = p.c.rdb.XRevRangeN(ctx, SignalsKey(botID), "+", "-", n).Result()
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "redis: read signals")
	}
	out := make([]model.Signal, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, _ := msgs[i].Values["data"].(string)
		var s model.Signal
		if err := sonic.UnmarshalString(raw, &s); err != nil {
			return nil, errors.Wrap(err, "redis: decode signal")
		}
		out = append(out, s)
	}
	return out, nil
}
