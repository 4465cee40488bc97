package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	var retried []int

	got, err := WithRetry(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errRemote
		}
		return "ok", nil
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestWithRetryExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	calls := 0
	last := errors.New("still failing")

	_, err := WithRetry(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt == 2 {
			return 0, last
		}
		return 0, errRemote
	}, nil)

	assert.ErrorIs(t, err, last, "the last error is returned")
	assert.Equal(t, 2, calls)
}

func TestWithRetryContextCancelled(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := WithRetry(ctx, p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errRemote
	}, func(int, error) { cancel() })

	require.Error(t, err)
	assert.ErrorIs(t, err, errRemote)
	assert.Contains(t, err.Error(), "retry aborted")
	assert.Equal(t, 1, calls)
}

func TestWithRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), RetryPolicy{}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 1, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
