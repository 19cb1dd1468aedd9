// Package closedetector turns a stream of forming-bar updates into closed
// candles. A bar is closed once the venue starts a newer one, or once its
// end plus a grace period has passed without a successor.
package closedetector

import (
	"time"

	"trading-botcore/internal/model"
)

// Detector tracks the forming bar of one symbol and timeframe. It is not
// safe for concurrent use.
type Detector struct {
	forming  model.Candle
	has      bool
	lastSent time.Time
	interval time.Duration

	// Grace is how long after the bar end the forming bar is forced closed
	// when no newer bar arrives. Default: 10 seconds.
	Grace time.Duration
}

// New creates a Detector for bars of the given length.
func New(interval time.Duration) *Detector {
	return &Detector{interval: interval, Grace: 10 * time.Second}
}

// Observe records an update of the forming bar and returns the previous bar
// when c starts a newer one. Updates for bars already emitted are ignored.
func (d *Detector) Observe(c model.Candle) (closed model.Candle, ok bool) {
	if !d.lastSent.IsZero() && !c.Timestamp.After(d.lastSent) {
		return model.Candle{}, false
	}
	if !d.has {
		d.forming, d.has = c, true
		return model.Candle{}, false
	}
	switch {
	case c.Timestamp.After(d.forming.Timestamp):
		closed = d.forming
		d.lastSent = closed.Timestamp
		d.forming = c
		return closed, true
	case c.Timestamp.Equal(d.forming.Timestamp):
		d.forming = c
	}
	return model.Candle{}, false
}

// Expired returns the forming bar once now is past its end plus Grace.
// The bar is emitted at most once.
func (d *Detector) Expired(now time.Time) (model.Candle, bool) {
	if !d.has || now.Before(d.forming.Timestamp.Add(d.interval+d.Grace)) {
		return model.Candle{}, false
	}
	closed := d.forming
	d.lastSent = closed.Timestamp
	d.has = false
	return closed, true
}

// Forming returns the bar currently being built.
func (d *Detector) Forming() (model.Candle, bool) {
	return d.forming, d.has
}
