package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/logger"
)

func fastOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Factor:      2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), &logger.EmptyLogger{}, fastOptions(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), &logger.EmptyLogger{}, fastOptions(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errclass.Newf(errclass.KindNetworkError, "flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	wantErr := errclass.Newf(errclass.KindTimeout, "still slow")
	err := Do(context.Background(), &logger.EmptyLogger{}, fastOptions(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, wantErr)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), &logger.EmptyLogger{}, fastOptions(), func(ctx context.Context) error {
		calls++
		return errclass.Newf(errclass.KindInsufficientFunds, "broke")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoContextCancelAbortsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Factor: 2.0}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, &logger.EmptyLogger{}, opts, func(ctx context.Context) error {
			calls++
			return errclass.Newf(errclass.KindNetworkError, "flaky")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), &logger.EmptyLogger{}, Options{MaxAttempts: 0}, func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Factor: 2.0}

	cases := []struct {
		attempt int
		nominal time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{6, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}

	for _, tc := range cases {
		d := Backoff(opts, tc.attempt)
		lo := time.Duration(float64(tc.nominal) * (1 - jitterFraction))
		hi := time.Duration(float64(tc.nominal) * (1 + jitterFraction))
		assert.GreaterOrEqual(t, d, lo, "attempt %d", tc.attempt)
		assert.LessOrEqual(t, d, hi, "attempt %d", tc.attempt)
	}
}

func TestBackoffClampsAttempt(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Factor: 2.0}
	d := Backoff(opts, 0)
	assert.GreaterOrEqual(t, d, time.Duration(float64(time.Second)*(1-jitterFraction)))
	assert.LessOrEqual(t, d, time.Duration(float64(time.Second)*(1+jitterFraction)))
}
