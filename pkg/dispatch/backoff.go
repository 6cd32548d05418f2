package dispatch

import (
	"context"
	"math/rand"
	"time"
)

type backoffConfig struct {
	initial time.Duration
	max     time.Duration
}

// backoff implements exponential backoff with jitter.
type backoff struct {
	max     time.Duration
	current time.Duration
}

func newBackoff(cfg backoffConfig) *backoff {
	return &backoff{max: cfg.max, current: cfg.initial}
}

// Wait sleeps for the current duration, or until ctx is done, and doubles
// the duration for next time.
func (b *backoff) Wait(ctx context.Context) {
	// ±20% jitter
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	t := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
}
