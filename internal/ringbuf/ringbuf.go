// Package ringbuf provides the fixed-capacity candle window each bot
// evaluates. When full, pushing evicts the oldest candle.
package ringbuf

import (
	"sync"

	"trading-botcore/internal/model"
)

// Window is a ring of candles kept in chronological order.
// Capacity is rounded up to a power of two for bitwise indexing.
type Window struct {
	mu      sync.RWMutex
	buf     []model.Candle
	mask    uint64
	head    uint64 // total pushes
	evicted uint64
}

// New creates a window holding at least capacity candles. Minimum capacity is 2.
func New(capacity int) *Window {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Window{
		buf:  make([]model.Candle, n),
		mask: uint64(n - 1),
	}
}

// Push appends c. A candle with the same timestamp as the newest one
// replaces it; an older candle is ignored and Push returns false.
func (w *Window) Push(c model.Candle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.head > 0 {
		last := &w.buf[(w.head-1)&w.mask]
		switch {
		case c.Timestamp.Equal(last.Timestamp):
			*last = c
			return true
		case c.Timestamp.Before(last.Timestamp):
			return false
		}
	}
	if w.head >= uint64(len(w.buf)) {
		w.evicted++
	}
	w.buf[w.head&w.mask] = c
	w.head++
	return true
}

// Window returns the held candles, oldest first, as a new slice.
func (w *Window) Window() []model.Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := w.len()
	out := make([]model.Candle, n)
	start := w.head - uint64(n)
	for i := range out {
		out[i] = w.buf[(start+uint64(i))&w.mask]
	}
	return out
}

// Last returns the newest candle.
func (w *Window) Last() (model.Candle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.head == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.head-1)&w.mask], true
}

// Len returns the number of candles held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.len()
}

func (w *Window) len() int {
	if w.head < uint64(len(w.buf)) {
		return int(w.head)
	}
	return len(w.buf)
}

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Evicted returns how many candles were pushed out by newer ones.
func (w *Window) Evicted() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.evicted
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
