package tool

import "time"

// BackoffKind selects the delay sequence a RetryPolicy generates (spec.md
// §4.10: "exponential or Fibonacci backoff").
type BackoffKind uint8

const (
	BackoffExponential BackoffKind = iota
	BackoffFibonacci
)

// RetryPolicy wraps transient ToolErrors (RateLimit, ProviderUnavailable,
// some Timeouts) with bounded retries, configurable per spec.md §4.10.
type RetryPolicy struct {
	Kind       BackoffKind
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the teacher's own async_queue.go retry
// defaults (3 retries after the first attempt, exponential, capped).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Kind: BackoffExponential, MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Delay returns the backoff delay before retry attempt n (1-indexed).
func (r RetryPolicy) Delay(n int) time.Duration {
	var d time.Duration
	switch r.Kind {
	case BackoffFibonacci:
		a, b := r.BaseDelay, r.BaseDelay
		for i := 1; i < n; i++ {
			a, b = b, a+b
		}
		d = a
	default:
		d = r.BaseDelay
		for i := 1; i < n; i++ {
			d *= 2
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// RetryAfter honors a RateLimit error's server-specified delay over the
// policy's own computed backoff, since the provider knows better.
func (r RetryPolicy) RetryAfter(err *ToolError, attempt int) time.Duration {
	if err.Kind == ErrRateLimit && err.RetryAfterMs > 0 {
		return time.Duration(err.RetryAfterMs) * time.Millisecond
	}
	return r.Delay(attempt)
}
