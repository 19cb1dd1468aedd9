package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trading-botcore/internal/model"
)

// ReadCandles returns the candles of one stream with open time in [from, to],
// ordered by time ascending for correct replay order. Zero bounds are open.
// limit > 0 keeps the most recent limit candles.
func (d *DB) ReadCandles(ctx context.Context, symbol, timeframe string, from, to time.Time, limit int) ([]model.Candle, error) {
	lo, hi := int64(0), int64(1<<62)
	if !from.IsZero() {
		lo = from.UnixMilli()
	}
	if !to.IsZero() {
		hi = to.UnixMilli()
	}
	n := -1
	if limit > 0 {
		n = limit
	}

	// newest first under the limit, re-ordered ascending
	rows, err := d.db.QueryContext(ctx, `
		SELECT symbol, timeframe, ts, open, high, low, close, volume FROM (
			SELECT * FROM candles
			WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, timeframe, lo, hi, n)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: query candles")
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsMilli int64
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &tsMilli, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan candle")
		}
		c.Timestamp = time.UnixMilli(tsMilli).UTC()
		candles = append(candles, c)
	}
	return candles, errors.Wrap(rows.Err(), "sqlite: iterate candles")
}
