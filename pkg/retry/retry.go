// Package retry wraps fallible actions with classifier-gated
// exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/logger"
)

// Options tunes the retry loop.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
}

// DefaultOptions matches the engine-wide retry defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2.0,
	}
}

// jitterFraction is the symmetric jitter applied to every delay so
// many batches retrying at once do not synchronize.
const jitterFraction = 0.10

// Do runs fn up to opts.MaxAttempts times, sleeping between attempts
// with exponential backoff and jitter. A failure classified as
// non-retryable stops the loop immediately; the last error is returned
// unchanged either way. Context cancellation aborts the backoff sleep.
func Do(ctx context.Context, log logger.Logger, opts Options, fn func(ctx context.Context) error) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		classified := errclass.Classify(lastErr)
		if !classified.Retryable {
			log.Debug("not retrying %s error: %v", classified.Kind, lastErr)
			return lastErr
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := Backoff(opts, attempt)
		log.Debug("attempt %d/%d failed (%s), retrying in %v", attempt, opts.MaxAttempts, classified.Kind, delay)
		if err := sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

// Backoff returns the jittered delay to wait after the given attempt
// number (1-based): min(base * factor^(attempt-1), max) ±10%.
func Backoff(opts Options, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(opts.BaseDelay) * math.Pow(opts.Factor, float64(attempt-1))
	if max := float64(opts.MaxDelay); opts.MaxDelay > 0 && backoff > max {
		backoff = max
	}

	// rand is fine here; jitter needs spread, not unpredictability.
	jitter := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(backoff * jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
