// Package journal is the append-only, per-bot record of trades, signals and
// events, with filtered read projections over a pluggable Store.
package journal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
)

// DefaultCritiqueBatch is the number of closed trades one critique cycle consumes.
const DefaultCritiqueBatch = 5

// Filter selects entries of one bot. Zero values are unbounded; From and To
// are inclusive.
type Filter struct {
	Type model.EntryType
	From time.Time
	To   time.Time
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *model.JournalEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Store persists journal entries. Implementations must return entries of a
// bot in insertion order and serialise concurrent appends.
type Store interface {
	Append(ctx context.Context, e model.JournalEntry) error
	Query(ctx context.Context, botID string, f Filter) ([]model.JournalEntry, error)
	Clear(ctx context.Context, botID string) error
}

// Journal records and projects bot history.
type Journal struct {
	store   Store
	name    string
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

func WithLogger(l *zap.Logger) Option { return func(j *Journal) { j.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(j *Journal) { j.metrics = m } }

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option { return func(j *Journal) { j.now = now } }

// New creates a journal backed by store.
func New(store Store, opts ...Option) *Journal {
	j := &Journal{
		store: store,
		name:  storeName(store),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(j)
	}
	if j.metrics == nil {
		j.metrics = metrics.Discard()
	}
	return j
}

func storeName(s Store) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}

// Store returns the underlying store.
func (j *Journal) Store() Store { return j.store }

// RecordTrade appends one trade entry.
func (j *Journal) RecordTrade(ctx context.Context, botID string, t model.Trade) (model.JournalEntry, error) {
	t = t.Clone()
	if t.BotID == "" {
		t.BotID = botID
	}
	return j.append(ctx, model.JournalEntry{
		ID:    model.EntryID(model.EntryTrade, t.ID),
		BotID: botID,
		Type:  model.EntryTrade,
		Trade: &t,
	})
}

// RecordSignal appends one signal entry.
func (j *Journal) RecordSignal(ctx context.Context, botID string, s model.Signal) (model.JournalEntry, error) {
	s = s.Clone()
	return j.append(ctx, model.JournalEntry{
		ID:     model.EntryID(model.EntrySignal, s.ID),
		BotID:  botID,
		Type:   model.EntrySignal,
		Signal: &s,
	})
}

// RecordEvent appends one event entry. A zero event timestamp is set to the
// entry timestamp.
func (j *Journal) RecordEvent(ctx context.Context, botID string, ev model.Event) (model.JournalEntry, error) {
	return j.append(ctx, model.JournalEntry{
		ID:    model.EntryID(model.EntryEvent, ev.ID),
		BotID: botID,
		Type:  model.EntryEvent,
		Event: &ev,
	})
}

func (j *Journal) append(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error) {
	e.Timestamp = j.now().UTC()
	if e.Event != nil && e.Event.Timestamp.IsZero() {
		e.Event.Timestamp = e.Timestamp
	}

	start := time.Now()
	err := j.store.Append(ctx, e)
	j.metrics.JournalAppendDur.WithLabelValues(j.name).Observe(time.Since(start).Seconds())
	if err != nil {
		j.metrics.JournalErrors.WithLabelValues(j.name, "append").Inc()
		j.log.Error("journal append failed",
			zap.String("bot", e.BotID), zap.String("id", e.ID), zap.Error(err))
		return model.JournalEntry{}, errors.Wrapf(err, "journal: append %s", e.ID)
	}
	return e, nil
}

// GetByBotID returns the entries of botID matching f, in insertion order.
func (j *Journal) GetByBotID(ctx context.Context, botID string, f Filter) ([]model.JournalEntry, error) {
	entries, err := j.store.Query(ctx, botID, f)
	if err != nil {
		j.metrics.JournalErrors.WithLabelValues(j.name, "query").Inc()
		return nil, errors.Wrapf(err, "journal: query %s", botID)
	}
	return entries, nil
}

// GetTrades returns the most recent limit trades (limit <= 0 for all), oldest first.
func (j *Journal) GetTrades(ctx context.Context, botID string, limit int) ([]model.Trade, error) {
	return j.trades(ctx, botID, limit, func(*model.Trade) bool { return true })
}

// GetClosedTrades is GetTrades restricted to closed trades with a pnl.
func (j *Journal) GetClosedTrades(ctx context.Context, botID string, limit int) ([]model.Trade, error) {
	return j.trades(ctx, botID, limit, (*model.Trade).IsClosed)
}

// GetTradesForCritique returns the last count closed trades (DefaultCritiqueBatch when count <= 0).
func (j *Journal) GetTradesForCritique(ctx context.Context, botID string, count int) ([]model.Trade, error) {
	if count <= 0 {
		count = DefaultCritiqueBatch
	}
	return j.GetClosedTrades(ctx, botID, count)
}

// GetSignals returns the most recent limit signals (limit <= 0 for all), oldest first.
func (j *Journal) GetSignals(ctx context.Context, botID string, limit int) ([]model.Signal, error) {
	entries, err := j.GetByBotID(ctx, botID, Filter{Type: model.EntrySignal})
	if err != nil {
		return nil, err
	}
	out := make([]model.Signal, 0, len(entries))
	for i := range entries {
		if entries[i].Signal != nil {
			out = append(out, *entries[i].Signal)
		}
	}
	return tail(out, limit), nil
}

// GetEvents returns the most recent limit events of a kind ("" for all kinds).
func (j *Journal) GetEvents(ctx context.Context, botID, kind string, limit int) ([]model.Event, error) {
	entries, err := j.GetByBotID(ctx, botID, Filter{Type: model.EntryEvent})
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(entries))
	for i := range entries {
		if ev := entries[i].Event; ev != nil && (kind == "" || ev.Kind == kind) {
			out = append(out, *ev)
		}
	}
	return tail(out, limit), nil
}

// Clear removes every entry of botID. Intended for tests.
func (j *Journal) Clear(ctx context.Context, botID string) error {
	if err := j.store.Clear(ctx, botID); err != nil {
		return errors.Wrapf(err, "journal: clear %s", botID)
	}
	return nil
}

func (j *Journal) trades(ctx context.Context, botID string, limit int, keep func(*model.Trade) bool) ([]model.Trade, error) {
	entries, err := j.GetByBotID(ctx, botID, Filter{Type: model.EntryTrade})
	if err != nil {
		return nil, err
	}
	out := make([]model.Trade, 0, len(entries))
	for i := range entries {
		if t := entries[i].Trade; t != nil && keep(t) {
			out = append(out, *t)
		}
	}
	return tail(out, limit), nil
}

// tail keeps the last n elements (all when n <= 0), preserving order.
func tail[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
