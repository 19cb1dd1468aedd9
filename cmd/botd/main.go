// Command botd runs the configured trading bots against live Hyperliquid
// candles with paper execution, journaling and the critique loop.
package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"trading-botcore/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "botd:", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.StopTimeout(cfg.ShutdownTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		coreModule(),
		storageModule(),
		tuningModule(),
		marketDataModule(),
		runnerModule(),
		surfaceModule(),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "botd:", err)
		os.Exit(1)
	}
	app.Run()
}
