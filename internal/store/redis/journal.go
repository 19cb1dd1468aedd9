package redis

import (
	"context"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"trading-botcore/internal/journal"
	"trading-botcore/internal/model"
)

const journalKeyPrefix = "journal:"

// JournalKey is the stream holding the journal of a bot.
func JournalKey(botID string) string { return journalKeyPrefix + botID }

// JournalStore is a journal.Store over one Redis stream per bot. Stream ids
// are assigned by the server and keep insertion order.
type JournalStore struct {
	mu sync.Mutex
	c  *Client
}

// Journal returns the journal store of c.
func (c *Client) Journal() *JournalStore { return &JournalStore{c: c} }

func (s *JournalStore) Name() string { return "redis" }

func (s *JournalStore) Ping(ctx context.Context) error { return s.c.Ping(ctx) }

func (s *JournalStore) Append(ctx context.Context, e model.JournalEntry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "redis: encode entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.c.do(ctx, func(ctx context.Context) error {
		return s.c.rdb.XAdd(ctx, &goredis.XAddArgs{
			Stream: JournalKey(e.BotID),
			Values: map[string]interface{}{
				"id":      e.ID,
				"type":    string(e.Type),
				"ts":      strconv.FormatInt(e.Timestamp.UnixNano(), 10),
				"payload": string(payload),
			},
		}).Err()
	})
	return errors.Wrap(err, "redis: xadd entry")
}

func (s *JournalStore) Query(ctx context.Context, botID string, f journal.Filter) ([]model.JournalEntry, error) {
	var msgs []goredis.XMessage
	err := s.c.do(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = s.c.rdb.XRange(ctx, JournalKey(botID), "-", "+").Result()
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "redis: xrange journal")
	}

	out := make([]model.JournalEntry, 0, len(msgs))
	for _, msg := range msgs {
		if f.Type != "" && msg.Values["type"] != string(f.Type) {
			continue
		}
		raw, _ := msg.Values["payload"].(string)
		var e model.JournalEntry
		if err := sonic.UnmarshalString(raw, &e); err != nil {
			return nil, errors.Wrapf(err, "redis: decode entry %s", msg.ID)
		}
		if !f.Match(&e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *JournalStore) Clear(ctx context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.c.do(ctx, func(ctx context.Context) error {
		return s.c.rdb.Del(ctx, JournalKey(botID)).Err()
	})
	return errors.Wrap(err, "redis: clear journal")
}
