package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// backOff builds the exponential schedule for one retry loop. A zero
// MaxElapsedTime means the attempt cap alone bounds the loop.
func (p Policy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	return exp
}

// delayFor reports the nominal delay before the attempt that follows the
// given one, ignoring the jitter the schedule itself applies. Used for the
// retry callback's logging.
func (p Policy) delayFor(attempt int) time.Duration {
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}
