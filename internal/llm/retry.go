package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how often a failed completion is retried with
// identical input. MaxAttempts counts the first call.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy performs exactly one retry without delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) strategy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Backoff > 0 {
		b = backoff.NewConstantBackOff(p.Backoff)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}
