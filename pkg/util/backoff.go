package util

import (
	"time"

	"github.com/cenkalti/backoff"
)

// BackoffFactory produces a fresh backoff.BackOff for every connection
// outage. Handing out a new policy per outage means nothing has to remember
// to Reset a shared one between reconnect cycles.
type BackoffFactory func() backoff.BackOff

// NewReconnectBackoffFactory creates a BackoffFactory for reconnect
// attempts: intervals grow exponentially from min and are capped at max,
// retrying until the caller gives up.
//
// backoff.ConstantBackOff is not used even when min == max, as it lacks
// randomization of the interval, which is wanted to avoid reconnect storms
// when many senders lose the same collector at once.
func NewReconnectBackoffFactory(min, max time.Duration) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = min
		bo.MaxInterval = max
		bo.MaxElapsedTime = 0 // never give up based on elapsed time
		bo.Reset()            // Reset is required to make the InitialInterval change take effect.
		return bo
	}
}

// NewNoRetryBackoffFactory creates a BackoffFactory whose policies give up
// on the first failure. It serves transports that cannot be re-dialled,
// such as anonymous pipes.
func NewNoRetryBackoffFactory() BackoffFactory {
	return func() backoff.BackOff {
		return &backoff.StopBackOff{}
	}
}
