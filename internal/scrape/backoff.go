package scrape

import (
	"math/rand"
	"time"
)

// backoffDelay returns the wait before retry attempt n (0-based): base
// doubled per attempt, capped at max, with ±50% jitter so concurrent
// sources don't retry in lockstep.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(attempt)
	if max > 0 && d > max {
		d = max
	}
	jitter := 0.5 + rand.Float64() // [0.5, 1.5)
	return time.Duration(float64(d) * jitter)
}
