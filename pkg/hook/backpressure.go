package hook

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds how fast hook dispatches may occur for a point, protecting
// the pipeline from a runaway emitter (e.g. a misbehaving AfterToolExecution
// hook on a tight tool-call loop). No dependency in the teacher fills this
// role; golang.org/x/time/rate is the idiomatic Go token bucket the rest of
// the example pack reaches for over a hand-rolled one.
type Limiter struct {
	limiter *rate.Limiter
}

func NewLimiter(eventsPerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Allow reports whether a dispatch may proceed without blocking.
func (l *Limiter) Allow() bool { return l.limiter.Allow() }

// Wait blocks until a dispatch slot is available or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error { return l.limiter.Wait(ctx) }
