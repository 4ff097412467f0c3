package channel

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential doubling from Initial,
// capped at Max, with multiplicative jitter of +/- Jitter. The base
// sequence is non-decreasing in the retry count; jitter keeps a fleet of
// engines from reconnecting in lockstep.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64

	// randFloat overrides the jitter source in tests.
	randFloat func() float64
}

// Delay returns the wait before attempt retry (0-based count of
// consecutive failures).
func (b Backoff) Delay(retry int) time.Duration {
	base := b.Initial
	for i := 0; i < retry; i++ {
		base *= 2
		if base >= b.Max {
			base = b.Max
			break
		}
	}
	if base > b.Max {
		base = b.Max
	}
	if b.Jitter <= 0 {
		return base
	}
	rf := b.randFloat
	if rf == nil {
		rf = rand.Float64
	}
	factor := 1 + (rf()*2-1)*b.Jitter
	return time.Duration(float64(base) * factor)
}
