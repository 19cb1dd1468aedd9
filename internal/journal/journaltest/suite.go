// Package journaltest holds a conformance suite shared by every journal.Store.
package journaltest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"trading-botcore/internal/journal"
	"trading-botcore/internal/model"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// ClosedTrade returns a closed long trade with the given pnl.
func ClosedTrade(id string, pnl float64, entry time.Time) model.Trade {
	return model.Trade{
		ID:         id,
		Symbol:     "BTC",
		Side:       model.SideLong,
		EntryPrice: 100,
		ExitPrice:  model.Float(100 + pnl),
		EntryTime:  entry,
		ExitTime:   model.Time(entry.Add(2 * time.Hour)),
		Quantity:   1,
		StopLoss:   model.Float(95),
		TakeProfit: model.Float(110),
		PnL:        model.Float(pnl),
		Status:     model.TradeClosed,
	}
}

// Run exercises a store through the Journal API. newStore must return an
// empty store; the suite clears the bots it uses.
func Run(t *testing.T, newStore func(t *testing.T) journal.Store) {
	t.Helper()

	clock := func() func() time.Time {
		n := 0
		return func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Minute)
		}
	}

	open := func(t *testing.T) (*journal.Journal, string) {
		s := newStore(t)
		bot := fmt.Sprintf("bot-%d", time.Now().UnixNano())
		j := journal.New(s, journal.WithClock(clock()))
		t.Cleanup(func() { _ = j.Clear(context.Background(), bot) })
		return j, bot
	}

	t.Run("RecordTradeRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		j, bot := open(t)
		tr := ClosedTrade("t-1", 12.5, base)
		entry, err := j.RecordTrade(ctx, bot, tr)
		if err != nil {
			t.Fatalf("RecordTrade: %v", err)
		}
		if entry.ID != "trade:t-1" || entry.Type != model.EntryTrade {
			t.Errorf("entry = %s/%s", entry.ID, entry.Type)
		}

		got, err := j.GetTrades(ctx, bot, 0)
		if err != nil {
			t.Fatalf("GetTrades: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d trades, want 1", len(got))
		}
		tr.BotID = bot
		assertTradeEqual(t, got[0], tr)
	})

	t.Run("InsertionOrderAndLimit", func(t *testing.T) {
		ctx := context.Background()
		j, bot := open(t)
		for i := 0; i < 7; i++ {
			tr := ClosedTrade(fmt.Sprintf("t-%d", i), float64(i), base.Add(time.Duration(i)*time.Hour))
			if i == 3 {
				tr.Status, tr.PnL, tr.ExitPrice, tr.ExitTime = model.TradeOpen, nil, nil, nil
			}
			if _, err := j.RecordTrade(ctx, bot, tr); err != nil {
				t.Fatal(err)
			}
		}
		all, err := j.GetTrades(ctx, bot, 0)
		if err != nil {
			t.Fatal(err)
		}
		for i, tr := range all {
			if tr.ID != fmt.Sprintf("t-%d", i) {
				t.Fatalf("trade %d = %s, insertion order lost", i, tr.ID)
			}
		}
		last2, _ := j.GetTrades(ctx, bot, 2)
		if len(last2) != 2 || last2[0].ID != "t-5" || last2[1].ID != "t-6" {
			t.Errorf("GetTrades(2) = %v", ids(last2))
		}
		closed, _ := j.GetClosedTrades(ctx, bot, 0)
		if len(closed) != 6 {
			t.Errorf("GetClosedTrades = %d, want 6", len(closed))
		}
		batch, _ := j.GetTradesForCritique(ctx, bot, 0)
		want := []string{"t-2", "t-4", "t-5", "t-6"}
		if len(batch) != 5 || batch[0].ID != "t-1" {
			t.Errorf("critique batch = %v", ids(batch))
		}
		for i, id := range want {
			if batch[i+1].ID != id {
				t.Errorf("critique batch = %v, open trade must be skipped", ids(batch))
				break
			}
		}
	})

	t.Run("FilterByTypeAndTime", func(t *testing.T) {
		ctx := context.Background()
		j, bot := open(t)
		// clock ticks one minute per record: +1m trade, +2m signal, +3m event
		if _, err := j.RecordTrade(ctx, bot, ClosedTrade("t-1", 1, base)); err != nil {
			t.Fatal(err)
		}
		sig := model.Signal{ID: "s-1", BotID: bot, Action: model.ActionLong, Confidence: 80, Reasons: []string{"cross"}}
		if _, err := j.RecordSignal(ctx, bot, sig); err != nil {
			t.Fatal(err)
		}
		ev := model.Event{ID: "e-1", Kind: "parameter_change", Message: "nudged", Fields: map[string]any{"param": "rsi_overbought"}}
		if _, err := j.RecordEvent(ctx, bot, ev); err != nil {
			t.Fatal(err)
		}

		all, err := j.GetByBotID(ctx, bot, journal.Filter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].Type != model.EntryTrade || all[1].Type != model.EntrySignal || all[2].Type != model.EntryEvent {
			t.Fatalf("unexpected entries: %+v", all)
		}

		window, _ := j.GetByBotID(ctx, bot, journal.Filter{From: base.Add(2 * time.Minute), To: base.Add(3 * time.Minute)})
		if len(window) != 2 || window[0].ID != "signal:s-1" || window[1].ID != "event:e-1" {
			t.Errorf("inclusive time window = %v", entryIDs(window))
		}

		sigs, _ := j.GetSignals(ctx, bot, 0)
		if len(sigs) != 1 || sigs[0].Confidence != 80 || len(sigs[0].Reasons) != 1 {
			t.Errorf("signals = %+v", sigs)
		}
		evs, _ := j.GetEvents(ctx, bot, "parameter_change", 0)
		if len(evs) != 1 || evs[0].Fields["param"] != "rsi_overbought" {
			t.Errorf("events = %+v", evs)
		}
	})

	t.Run("BotsAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		j, bot := open(t)
		other := bot + "-other"
		t.Cleanup(func() { _ = j.Clear(context.Background(), other) })
		_, _ = j.RecordTrade(ctx, bot, ClosedTrade("a", 1, base))
		_, _ = j.RecordTrade(ctx, other, ClosedTrade("b", 1, base))
		got, _ := j.GetTrades(ctx, bot, 0)
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("bot isolation broken: %v", ids(got))
		}
		if err := j.Clear(ctx, other); err != nil {
			t.Fatal(err)
		}
		if left, _ := j.GetTrades(ctx, other, 0); len(left) != 0 {
			t.Errorf("Clear left %d trades", len(left))
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		bot := fmt.Sprintf("bot-conc-%d", time.Now().UnixNano())
		j := journal.New(s)
		t.Cleanup(func() { _ = j.Clear(context.Background(), bot) })

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					if _, err := j.RecordTrade(ctx, bot, ClosedTrade(fmt.Sprintf("w%d-%d", w, i), 1, base)); err != nil {
						t.Error(err)
					}
				}
			}(w)
		}
		wg.Wait()
		got, _ := j.GetTrades(ctx, bot, 0)
		if len(got) != 40 {
			t.Errorf("got %d trades after concurrent appends, want 40", len(got))
		}
	})
}

func assertTradeEqual(t *testing.T, got, want model.Trade) {
	t.Helper()
	if got.ID != want.ID || got.BotID != want.BotID || got.Side != want.Side || got.Status != want.Status ||
		got.EntryPrice != want.EntryPrice || got.Quantity != want.Quantity || !got.EntryTime.Equal(want.EntryTime) {
		t.Errorf("trade = %+v, want %+v", got, want)
	}
	if *got.PnL != *want.PnL || *got.ExitPrice != *want.ExitPrice ||
		*got.StopLoss != *want.StopLoss || *got.TakeProfit != *want.TakeProfit || !got.ExitTime.Equal(*want.ExitTime) {
		t.Errorf("trade optionals differ: got %+v", got)
	}
}

func ids(ts []model.Trade) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func entryIDs(es []model.JournalEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
