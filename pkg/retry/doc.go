// Package retry provides retry logic with exponential backoff and jitter.
//
// The observation core never retries internally: a failed fetch terminates
// the stream. Consumers that want resilience layer this package on top, for
// example to re-establish an observation after a transient database error.
//
//	err := retry.Retry(ctx, func(ctx context.Context) error {
//	    return runObservation(ctx)
//	})
package retry
