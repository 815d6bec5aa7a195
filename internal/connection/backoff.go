package connection

import (
	"math/rand/v2"
	"time"
)

// Backoff produces reconnect delays.
//
// Delays grow exponentially from Initial, carry up to Jitter·delay of random
// extra wait and never exceed Max. Consecutive delays never decrease until
// Reset is called. Backoff is not safe for concurrent use; the connection
// loop is its only user.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
	rand    func() float64

	attempt int
	last    time.Duration
}

// NewBackoff creates a Backoff from cfg. Non-positive values fall back to
// the package defaults; Jitter is clamped to [0, 1].
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoffInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultBackoffMax
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	cfg.Jitter = min(max(cfg.Jitter, 0), 1)

	return &Backoff{
		initial: cfg.Initial,
		max:     cfg.Max,
		jitter:  cfg.Jitter,
		rand:    rand.Float64,
	}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	nominal := b.initial
	for i := 0; i < b.attempt && nominal < b.max; i++ {
		nominal *= 2
	}
	if nominal >= b.max {
		nominal = b.max
	} else {
		b.attempt++
	}

	d := nominal + time.Duration(b.jitter*b.rand()*float64(nominal))
	if d > b.max {
		d = b.max
	}
	if d < b.last {
		d = b.last
	}
	b.last = d
	return d
}

// Reset returns the sequence to Initial after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.last = 0
}
