package questiongen

import (
	"math"
	"math/rand/v2"
	"time"
)

// after is swapped in tests to avoid real sleeps.
var after = time.After

// backoff computes the wait duration for the given attempt.
func (g *Generator) backoff(attempt int) time.Duration {
	cfg := g.config.Retry
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt))
	if wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	// Add ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
