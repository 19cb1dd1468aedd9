// cmd/backtest replays stored candles from SQLite through the configured bots
// with paper execution and the critique loop, then prints per-bot results.
//
// Usage:
//
//	go run ./cmd/backtest --bots='configs/bots/*.yaml' --fetch --from=2024-01-01
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/critic"
	"trading-botcore/internal/journal"
	"trading-botcore/internal/logger"
	"trading-botcore/internal/marketdata/hyperliquid"
	"trading-botcore/internal/marketdata/replay"
	"trading-botcore/internal/model"
	"trading-botcore/internal/runner"
	sqlitestore "trading-botcore/internal/store/sqlite"
)

type options struct {
	dbPath        string
	bots          string
	from, to      time.Time
	speed         float64
	fetch         bool
	apiURL        string
	critiqueEvery int
}

// botResult is the outcome of one bot over the replayed range.
type botResult struct {
	BotID   string
	Signals int
	Closed  []model.Trade
	Metrics critic.Metrics
	Reports int
	Applied []critic.ParameterChange
	Final   *botconfig.Config
}

func main() {
	var (
		opts           options
		fromStr, toStr string
		logLevel       string
	)
	flag.StringVar(&opts.dbPath, "db", "data/botcore.db", "Path to SQLite database")
	flag.StringVar(&opts.bots, "bots", "configs/bots/*.yaml", "Bot configuration glob")
	flag.StringVar(&fromStr, "from", "", "Replay start, RFC3339 or YYYY-MM-DD (empty=first stored candle)")
	flag.StringVar(&toStr, "to", "", "Replay end, RFC3339 or YYYY-MM-DD (empty=last stored candle)")
	flag.Float64Var(&opts.speed, "speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	flag.BoolVar(&opts.fetch, "fetch", false, "Download recent candles from Hyperliquid into the database first")
	flag.StringVar(&opts.apiURL, "api-url", hyperliquid.DefaultAPIURL, "Hyperliquid REST endpoint")
	flag.IntVar(&opts.critiqueEvery, "critique-every", journal.DefaultCritiqueBatch, "Closed trades per critique")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	log := logger.Init("backtest", logger.ParseLevel(logLevel))
	defer log.Sync()

	var err error
	if opts.from, err = parseTime(fromStr); err != nil {
		log.Fatal("bad --from", zap.Error(err))
	}
	if opts.to, err = parseTime(toStr); err != nil {
		log.Fatal("bad --to", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	results, err := run(ctx, opts, log)
	if err != nil {
		log.Fatal("backtest failed", zap.Error(err))
	}
	for _, r := range results {
		printResult(r)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger) ([]botResult, error) {
	cfgs, err := botconfig.LoadAll(opts.bots)
	if err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, errors.Errorf("no bot configurations match %s", opts.bots)
	}

	db, err := sqlitestore.Open(sqlitestore.Config{Path: opts.dbPath}, log.Named("sqlite"))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if opts.fetch {
		if err := fetch(ctx, db, cfgs, opts.apiURL, log); err != nil {
			return nil, err
		}
	}

	j := journal.New(journal.NewMemoryStore(), journal.WithLogger(log.Named("journal")))
	src := replay.New(db, replay.Config{From: opts.from, To: opts.to, Speed: opts.speed}, log.Named("replay"))
	r, err := runner.New(src, cfgs, runner.Deps{
		Journal:       j,
		Log:           log,
		CritiqueEvery: opts.critiqueEvery,
		WindowSize:    512,
		Lossless:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx); err != nil {
		return nil, err
	}
	return collect(ctx, r)
}

// fetch stores the most recent candles of every configured stream.
func fetch(ctx context.Context, db *sqlitestore.DB, cfgs []*botconfig.Config, apiURL string, log *zap.Logger) error {
	hl := hyperliquid.New(hyperliquid.Config{APIURL: apiURL}, log.Named("hyperliquid"), nil)
	seen := make(map[string]bool)
	for _, cfg := range cfgs {
		key := model.StreamKey(cfg.Symbol, cfg.Timeframe)
		if seen[key] {
			continue
		}
		seen[key] = true
		candles, err := hl.Candles(ctx, cfg.Symbol, cfg.Timeframe, 0)
		if err != nil {
			return errors.Wrapf(err, "fetch %s", key)
		}
		if err := db.InsertCandles(ctx, candles); err != nil {
			return err
		}
		fmt.Printf("fetched %d candles for %s\n", len(candles), key)
	}
	return nil
}

func collect(ctx context.Context, r *runner.Runner) ([]botResult, error) {
	deps := r.Deps()
	out := make([]botResult, 0, len(r.Bots()))
	for _, b := range r.Bots() {
		closed, err := deps.Journal.GetClosedTrades(ctx, b.ID(), 0)
		if err != nil {
			return nil, err
		}
		signals, err := deps.Journal.GetSignals(ctx, b.ID(), 0)
		if err != nil {
			return nil, err
		}
		m, _ := critic.ComputeMetrics(closed)
		res := botResult{
			BotID:   b.ID(),
			Signals: len(signals),
			Closed:  closed,
			Metrics: m,
			Final:   b.Engine().Config(),
		}
		for _, rep := range deps.Reports.List(b.ID(), 0) {
			res.Reports++
			res.Applied = append(res.Applied, rep.AppliedChanges...)
		}
		out = append(out, res)
	}
	return out, nil
}

func printResult(r botResult) {
	m := r.Metrics
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Printf("║  %-36s║\n", "BACKTEST "+r.BotID)
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Signals:          %-18d║\n", r.Signals)
	fmt.Printf("║  Closed trades:    %-18d║\n", m.ClosedTrades)
	fmt.Printf("║  Win rate:         %-18s║\n", fmt.Sprintf("%.1f%%", m.WinRate))
	fmt.Printf("║  Total PnL:        %-18.4f║\n", m.TotalPnL)
	fmt.Printf("║  Expectancy:       %-18.4f║\n", m.Expectancy)
	fmt.Printf("║  Avg R-multiple:   %-18.2f║\n", m.AvgRMultiple)
	fmt.Printf("║  Max drawdown:     %-18s║\n", fmt.Sprintf("%.1f%%", m.MaxDrawdown))
	fmt.Printf("║  Critiques:        %-18d║\n", r.Reports)
	fmt.Println("╚══════════════════════════════════════╝")
	for _, ch := range r.Applied {
		fmt.Printf("  applied %s: %g -> %g (%s)\n", ch.Parameter, ch.PreviousValue, ch.NewValue, ch.Reason)
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
