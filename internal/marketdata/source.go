// Package marketdata defines how bots obtain closed candles. Each venue or
// replay backend implements Source independently.
package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"trading-botcore/internal/model"
)

// Source supplies closed candles for a symbol and timeframe.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Candles returns up to limit of the most recent closed candles, oldest first.
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
	// Subscribe sends each newly closed candle to out until ctx is done.
	// It blocks and returns ctx.Err() on cancellation.
	Subscribe(ctx context.Context, symbol, timeframe string, out chan<- model.Candle) error
}

// TimeframeDuration parses venue intervals such as "1m", "15m", "4h", "1d", "1w".
func TimeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, errors.Errorf("marketdata: bad timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, errors.Errorf("marketdata: bad timeframe %q", tf)
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, errors.Errorf("marketdata: bad timeframe %q", tf)
	}
	return time.Duration(n) * unit, nil
}
