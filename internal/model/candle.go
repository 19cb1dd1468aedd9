package model

import "time"

// Candle represents one fixed-interval OHLCV bar for a single symbol.
// Candles are produced by a market data source and never mutated afterwards.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // venue interval, e.g. "1m", "1h"
	Timestamp time.Time `json:"timestamp"` // bar open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns a unique key for this candle's stream: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// StreamKey builds the same key as Candle.Key without a candle value.
func StreamKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}
