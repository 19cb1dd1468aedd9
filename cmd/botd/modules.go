package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"trading-botcore/config"
	"trading-botcore/internal/api"
	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/critic"
	"trading-botcore/internal/journal"
	"trading-botcore/internal/logger"
	"trading-botcore/internal/marketdata"
	"trading-botcore/internal/marketdata/hyperliquid"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/notification"
	"trading-botcore/internal/runner"
	"trading-botcore/internal/store/postgres"
	"trading-botcore/internal/store/redis"
	"trading-botcore/internal/store/sqlite"
	"trading-botcore/internal/trace"
	"trading-botcore/internal/tuning"
)

const livenessInterval = 15 * time.Second

func coreModule() fx.Option {
	return fx.Module("core",
		fx.Provide(
			newLogger,
			newRegistry,
			newMetrics,
			metrics.NewHealthStatus,
			newTracer,
		),
	)
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) *zap.Logger {
	log := logger.Init("botd", logger.ParseLevel(cfg.LogLevel))
	lc.Append(fx.StopHook(func() { _ = log.Sync() }))
	return log
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) }

func newTracer(lc fx.Lifecycle, cfg *config.Config) (*trace.Tracer, error) {
	t, err := trace.Init("botd", cfg.TracingEnabled, os.Stdout)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(t.Shutdown))
	return t, nil
}

// journalStore is a journal backend that can also be probed for liveness.
type journalStore interface {
	journal.Store
	metrics.Pinger
}

// backend is the selected journal store plus anything else the driver
// offers, such as Redis signal streams.
type backend struct {
	store      journalStore
	publishers runner.Publishers
}

func storageModule() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			newBackend,
			newJournal,
		),
	)
}

func newBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*backend, error) {
	switch cfg.JournalDriver {
	case config.JournalMemory:
		return &backend{store: journal.NewMemoryStore()}, nil

	case config.JournalSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite data dir")
		}
		db, err := sqlite.Open(sqlite.Config{Path: cfg.SQLitePath}, log.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(db.Close))
		return &backend{store: db.Journal()}, nil

	case config.JournalRedis:
		c, err := redis.New(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, log.Named("redis"), m)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(c.Close))
		return &backend{store: c.Journal(), publishers: runner.Publishers{c.Signals()}}, nil

	case config.JournalPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := postgres.Open(ctx, cfg.PostgresDSN, log.Named("postgres"))
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(db.Close))
		return &backend{store: db.Journal()}, nil
	}
	return nil, errors.Errorf("unknown journal driver %q", cfg.JournalDriver)
}

func newJournal(b *backend, log *zap.Logger, m *metrics.Metrics) *journal.Journal {
	return journal.New(b.store, journal.WithLogger(log.Named("journal")), journal.WithMetrics(m))
}

func tuningModule() fx.Option {
	return fx.Module("tuning",
		fx.Provide(
			critic.NewReportStore,
			newApplier,
			newNotifier,
		),
	)
}

func newApplier(cfg *config.Config, reports *critic.ReportStore, j *journal.Journal, log *zap.Logger, m *metrics.Metrics) *tuning.Applier {
	if cfg.OperatorTOTPSecret == "" {
		log.Warn("OPERATOR_TOTP_SECRET is not set; manual parameter changes need no passcode")
	}
	return tuning.New(reports, j,
		tuning.WithPasscodeSecret(cfg.OperatorTOTPSecret),
		tuning.WithLogger(log.Named("tuning")),
		tuning.WithMetrics(m))
}

func newNotifier(cfg *config.Config, log *zap.Logger) (notification.Notifier, error) {
	multi := notification.Multi{notification.NewLogNotifier(log.Named("alerts"))}
	if cfg.TelegramBotToken != "" {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		multi = append(multi, tg)
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return multi, nil
}

func marketDataModule() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(newSource),
	)
}

func newSource(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, health *metrics.HealthStatus) marketdata.Source {
	src := hyperliquid.New(hyperliquid.Config{
		APIURL: cfg.HyperliquidAPIURL,
		WSURL:  cfg.HyperliquidWSURL,
	}, log.Named("hyperliquid"), m)
	src.OnConnected = func(up bool) { health.SetFeedConnected(src.Name(), up) }
	return src
}

func runnerModule() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			loadBots,
			api.NewStream,
			newRunner,
		),
		fx.Invoke(runRunner),
	)
}

func loadBots(cfg *config.Config) ([]*botconfig.Config, error) {
	bots, err := botconfig.LoadAll(cfg.BotConfigs)
	if err != nil {
		return nil, err
	}
	if len(bots) == 0 {
		return nil, errors.Errorf("no bot configurations match %s", cfg.BotConfigs)
	}
	return bots, nil
}

type runnerParams struct {
	fx.In

	Config   *config.Config
	Source   marketdata.Source
	Bots     []*botconfig.Config
	Backend  *backend
	Journal  *journal.Journal
	Reports  *critic.ReportStore
	Applier  *tuning.Applier
	Notifier notification.Notifier
	Stream   *api.Stream
	Tracer   *trace.Tracer
	Health   *metrics.HealthStatus
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

func newRunner(p runnerParams) (*runner.Runner, error) {
	pubs := append(runner.Publishers{p.Stream}, p.Backend.publishers...)
	return runner.New(p.Source, p.Bots, runner.Deps{
		Journal:       p.Journal,
		Reports:       p.Reports,
		Applier:       p.Applier,
		Notifier:      p.Notifier,
		Publisher:     pubs,
		Tracer:        p.Tracer,
		Health:        p.Health,
		Log:           p.Log,
		Metrics:       p.Metrics,
		CritiqueEvery: p.Config.CritiqueEvery,
		WindowSize:    p.Config.WindowSize,
	})
}

func runRunner(lc fx.Lifecycle, sd fx.Shutdowner, r *runner.Runner, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := r.Run(ctx); err != nil {
					log.Error("runner stopped", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
					return
				}
				log.Info("runner stopped")
			}()
			log.Info("bots started", zap.Int("bots", len(r.Bots())))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func surfaceModule() fx.Option {
	return fx.Module("surface",
		fx.Invoke(
			startMetricsServer,
			startAPIServer,
			startLivenessChecker,
		),
	)
}

func startMetricsServer(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, health *metrics.HealthStatus, log *zap.Logger) {
	srv := metrics.NewServer(cfg.MetricsAddr, reg, health, log.Named("metrics"))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: srv.Stop,
	})
}

type apiParams struct {
	fx.In

	Config  *config.Config
	Journal *journal.Journal
	Reports *critic.ReportStore
	Applier *tuning.Applier
	Health  *metrics.HealthStatus
	Stream  *api.Stream
	Log     *zap.Logger
}

func startAPIServer(lc fx.Lifecycle, p apiParams) {
	srv := api.New(p.Config.HTTPAddr, api.Deps{
		Journal: p.Journal,
		Reports: p.Reports,
		Applier: p.Applier,
		Health:  p.Health,
		Stream:  p.Stream,
	}, p.Log.Named("api"))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: srv.Stop,
	})
}

func startLivenessChecker(lc fx.Lifecycle, cfg *config.Config, b *backend, health *metrics.HealthStatus) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			health.StartLivenessChecker(ctx, map[string]metrics.Pinger{
				"journal_" + cfg.JournalDriver: b.store,
			}, livenessInterval)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
