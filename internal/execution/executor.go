// Package execution turns strategy signals into trades. Only simulated
// execution exists; no orders reach a venue.
package execution

import (
	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/model"
)

// Result is what one signal or candle did to a bot's position.
type Result struct {
	Opened *model.Trade
	Closed *model.Trade
	// Skipped explains why an entry signal was not taken.
	Skipped string
}

// Broker executes signals for one bot and tracks its position.
type Broker interface {
	OnSignal(sig *model.Signal, cfg *botconfig.Config) Result
	OnCandle(c model.Candle) Result
	Position() (model.Trade, bool)
}
