package usecase

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a bounded retry with linear backoff
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns three attempts with a one second base delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay returns the wait after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// WithRetry runs op until it succeeds or the policy's attempts are used up,
// waiting BaseDelay*attempt between attempts. The last error is returned.
// onRetry, if set, is called before each wait.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error), onRetry func(attempt int, err error)) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err = op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("%w (retry aborted: %v)", err, ctx.Err())
		case <-timer.C:
		}
	}
	return result, err
}
