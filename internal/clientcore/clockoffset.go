package clientcore

import (
	"sync"
	"sync/atomic"
)

// clockOffset stores the client's estimate of (server clock - client
// clock), in nanoseconds. Writes are either last-writer-wins or an
// exponential moving average (spec §9 open question); reads are a
// single atomic load, relaxed with respect to concurrent writers.
type clockOffset struct {
	nanos atomic.Int64

	mu        sync.Mutex
	smoothing bool
	alpha     float64
	hasValue  bool
	ema       float64
}

func newClockOffset(smoothing bool, alpha float64) *clockOffset {
	return &clockOffset{smoothing: smoothing, alpha: alpha}
}

// update folds in one Pong-derived offset sample.
func (c *clockOffset) update(sample int64) {
	if !c.smoothing {
		c.nanos.Store(sample)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasValue {
		c.ema = float64(sample)
		c.hasValue = true
	} else {
		c.ema += c.alpha * (float64(sample) - c.ema)
	}
	c.nanos.Store(int64(c.ema))
}

func (c *clockOffset) load() int64 { return c.nanos.Load() }
