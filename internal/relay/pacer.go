package relay

import (
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// pacer spaces relay polls: base while healthy, doubling up to max after
// consecutive failures.
type pacer struct {
	base, max, cur time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max, cur: base}
}

func (p *pacer) reset() time.Duration {
	p.cur = p.base
	return jitter(p.cur)
}

func (p *pacer) failed() time.Duration {
	p.cur = min(p.cur*2, p.max)
	return jitter(p.cur)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
