package requery

import "time"

// RetryPolicy is applied by the fetch executor inside a single run: a run is
// considered terminally failed only after MaxRetries additional attempts.
// The zero value never retries.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// Backoff returns the delay before the given retry attempt (1-based).
	// nil => ExponentialBackoff(100ms, 5s).
	Backoff func(attempt int) time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	return defaultBackoff(attempt)
}

var defaultBackoff = ExponentialBackoff(100*time.Millisecond, 5*time.Second)

// ExponentialBackoff returns a backoff function doubling from base, capped
// at max.
func ExponentialBackoff(base, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}
