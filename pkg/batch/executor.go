package batch

import (
	"context"
	"math"
	"time"

	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/metrics"
	"github.com/driftlabs/batchsend/pkg/operation"
)

// ExecutorOptions tunes the batch loop.
type ExecutorOptions struct {
	// BatchDelay is the pause between batches. Values under
	// MinBatchDelay are raised to it for network stability.
	BatchDelay time.Duration
	// MaxBatchRetries bounds attempts per batch.
	MaxBatchRetries int
	// PauseOnError stops future batches from starting after a batch
	// exhausts its retries. It cannot abort an in-flight submission.
	PauseOnError bool
	// MaxRetryDelay caps the growing inter-retry delay.
	MaxRetryDelay time.Duration
}

// MinBatchDelay is the enforced floor for the inter-batch pause.
const MinBatchDelay = 2 * time.Second

// DefaultExecutorOptions returns the standard executor tuning.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		BatchDelay:      3 * time.Second,
		MaxBatchRetries: 3,
		MaxRetryDelay:   30 * time.Second,
	}
}

// Executor drives planned batches through the operation lifecycle,
// strictly one batch at a time. Sequential execution is deliberate
// backpressure: the network rate-limits per caller, and parallel
// submission invites account contention and cascading rate-limit
// errors.
type Executor struct {
	env     operation.Environment
	breaker *circuitbreaker.Breaker
	logger  logger.Logger
	opts    ExecutorOptions

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor. The breaker is optional; when
// present, an open breaker fails batches fast instead of submitting.
func NewExecutor(env operation.Environment, breaker *circuitbreaker.Breaker, opts ExecutorOptions) *Executor {
	if opts.BatchDelay < MinBatchDelay {
		opts.BatchDelay = MinBatchDelay
	}
	if opts.MaxBatchRetries < 1 {
		opts.MaxBatchRetries = 1
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = DefaultExecutorOptions().MaxRetryDelay
	}
	return &Executor{
		env:     env,
		breaker: breaker,
		logger:  env.Logger,
		opts:    opts,
		sleep:   sleepCtx,
	}
}

// ExecuteAll runs every batch in order and returns the aggregated
// result. A failed batch never aborts its siblings unless
// PauseOnError is set; validation already happened during planning, so
// each batch goes straight through build, simulate, submit, confirm.
func (e *Executor) ExecuteAll(ctx context.Context, plan *Plan, opCfg operation.Config, onProgress ProgressCallback) *Result {
	start := time.Now()
	track := newTracker(plan)

	result := &Result{}
	paused := false

	for i, b := range plan.Batches {
		if paused {
			break
		}

		track.startBatch(b.Index)
		opResult := e.runBatch(ctx, b, opCfg)
		elapsed := opResult.Elapsed

		if opResult.Success {
			b.Status = StatusCompleted
			b.TransactionID = opResult.TransactionID
			markRecipients(b, RecipientCompleted)
			result.TransactionIDs = append(result.TransactionIDs, opResult.TransactionID)
			result.TotalAmountSent += b.TotalAmount
			track.completeBatch(b, elapsed, opResult.TransactionID)
			e.logger.InfoWith(logger.Exec, "batch %d/%d completed: %d recipients, tx %s",
				b.Index+1, len(plan.Batches), len(b.Recipients), opResult.TransactionID)
		} else {
			b.Status = StatusFailed
			b.LastError = opResult.Err.Error()
			markRecipients(b, RecipientFailed)
			track.failBatch(b, elapsed)
			if result.Err == nil {
				result.Err = opResult.Err
			}
			e.logger.ErrorWith(logger.Exec, "batch %d/%d failed after %d attempt(s): %v",
				b.Index+1, len(plan.Batches), b.Attempts, opResult.Err)

			if e.opts.PauseOnError {
				e.logger.NoticeWith(logger.Exec, "pause-on-error set, not starting remaining batches")
				result.PausedOnError = true
				paused = true
			}
		}

		if onProgress != nil {
			onProgress(track.snapshot(e.opts.BatchDelay))
		}

		if !paused && i < len(plan.Batches)-1 {
			if err := e.sleep(ctx, e.opts.BatchDelay); err != nil {
				if result.Err == nil {
					result.Err = errclass.Classify(err)
				}
				break
			}
		}
	}

	snap := track.snapshot(0)
	result.SuccessfulBatches = snap.CompletedBatches
	result.FailedBatches = snap.FailedBatches
	result.RecipientsProcessed = snap.ProcessedRecipients
	result.RecipientsFailed = snap.FailedRecipients
	result.Success = result.FailedBatches == 0 && !result.PausedOnError && result.Err == nil
	result.SuccessRate = successRate(snap.CompletedBatches, len(plan.Batches))
	result.Elapsed = time.Since(start)

	e.logger.InfoWith(logger.Exec, "run finished: %d/%d batches succeeded (%.2f%%), %d recipients paid, %d failed, %v elapsed",
		result.SuccessfulBatches, len(plan.Batches), result.SuccessRate,
		result.RecipientsProcessed, result.RecipientsFailed, result.Elapsed.Round(time.Millisecond))
	return result
}

// runBatch attempts one batch up to MaxBatchRetries times, waiting an
// increasing delay between attempts. Non-retryable classifications
// stop immediately.
func (e *Executor) runBatch(ctx context.Context, b *Batch, opCfg operation.Config) *operation.Result {
	var opResult *operation.Result

	for {
		if e.breaker != nil && !e.breaker.Allow() {
			classified := errclass.New(errclass.KindNetworkError,
				&circuitbreaker.ErrOpen{Since: e.breaker.Metrics().LastFailure})
			return &operation.Result{Operation: "batch_disbursement", Err: classified}
		}

		b.Status = StatusProcessing
		b.Attempts++
		markRecipients(b, RecipientProcessing)

		batchStart := time.Now()
		opResult = operation.Run(ctx, e.env, newDisbursement(b), opCfg)
		metrics.BatchProcessingTime.Observe(time.Since(batchStart).Seconds())

		if opResult.Success {
			return opResult
		}

		classified := opResult.Err
		if !classified.Retryable {
			e.logger.DebugWith(logger.Exec, "batch %d: %s error is terminal, not retrying", b.Index, classified.Kind)
			return opResult
		}
		if b.Attempts >= e.opts.MaxBatchRetries {
			metrics.MaxRetriesReached.WithLabelValues(string(classified.Kind)).Inc()
			return opResult
		}

		b.Status = StatusRetrying
		delay := e.retryDelay(b.Attempts)
		metrics.BatchRetries.WithLabelValues(string(classified.Kind)).Inc()
		e.logger.NoticeWith(logger.Retry, "batch %d attempt %d/%d failed (%s), retrying in %v",
			b.Index, b.Attempts, e.opts.MaxBatchRetries, classified.Kind, delay)

		if err := e.sleep(ctx, delay); err != nil {
			return opResult
		}
	}
}

// retryDelay grows linearly with the attempt count, capped at
// MaxRetryDelay: min(batchDelay * attempt, cap).
func (e *Executor) retryDelay(attempt int) time.Duration {
	delay := e.opts.BatchDelay * time.Duration(attempt)
	if delay > e.opts.MaxRetryDelay {
		delay = e.opts.MaxRetryDelay
	}
	return delay
}

func markRecipients(b *Batch, status RecipientStatus) {
	for _, r := range b.Recipients {
		r.Status = status
	}
}

func successRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
