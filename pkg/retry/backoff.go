package retry

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkgerrors "jrm/pkg/errors"
)

// ExponentialBackoff never gives up on its own; callers bound it by context.
// Intervals are jittered but never exceed maxInterval.
func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &capped{BackOff: exp, max: maxInterval}
}

type capped struct {
	backoff.BackOff
	max time.Duration
}

func (c *capped) NextBackOff() time.Duration {
	next := c.BackOff.NextBackOff()
	if next != backoff.Stop && next > c.max {
		return c.max
	}
	return next
}

// IsRetryable reports whether repeating the failed call soon could succeed.
// Auth, argument and decoding failures need a change on either side first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return false
}
