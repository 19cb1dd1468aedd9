package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"trading-botcore/internal/model"
	sqlitestore "trading-botcore/internal/store/sqlite"
)

func seed(t *testing.T, path string) {
	t.Helper()
	db, err := sqlitestore.Open(sqlitestore.Config{Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 300)
	v := 100.0
	for i := range candles {
		switch {
		case i < 220:
			v += 0.5
		case i < 250:
			v -= 1.2
		case i%2 == 0:
			v += 1.5
		default:
			v -= 1.0
		}
		candles[i] = model.Candle{Symbol: "BTC", Timeframe: "1h", Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open: v, High: v + 1, Low: v - 1, Close: v, Volume: 100}
	}
	if err := db.InsertCandles(context.Background(), candles); err != nil {
		t.Fatal(err)
	}
}

func TestRun_ReplaysStoredCandles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bt.db")
	seed(t, dbPath)
	if err := os.WriteFile(filepath.Join(dir, "btc.yaml"), []byte("bot_id: btc\nsymbol: BTC\ntimeframe: 1h\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := run(context.Background(), options{
		dbPath:        dbPath,
		bots:          filepath.Join(dir, "*.yaml"),
		critiqueEvery: 5,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].BotID != "btc" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Signals == 0 {
		t.Error("no signals over the replayed range")
	}
	if results[0].Final.Symbol != "BTC" {
		t.Errorf("final config = %+v", results[0].Final)
	}
}

func TestRun_NoBots(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(context.Background(), options{dbPath: filepath.Join(dir, "bt.db"), bots: filepath.Join(dir, "*.yaml")}, zap.NewNop()); err == nil {
		t.Error("expected an error without bot configurations")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		err  bool
	}{
		{"", time.Time{}, false},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		if (err != nil) != tt.err || !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, %v", tt.in, got, err)
		}
	}
}
