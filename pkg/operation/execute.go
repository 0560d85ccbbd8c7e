package operation

import (
	"context"
	"strings"
	"time"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/metrics"
	"github.com/driftlabs/batchsend/pkg/retry"
	"github.com/google/uuid"
)

// Execute drives the full operation lifecycle, wrapping it once with
// the retry policy so transient failures re-run idempotent stages.
// The returned result is always non-nil.
func Execute(ctx context.Context, env Environment, op Operation, cfg Config) *Result {
	var result *Result

	opts := retry.DefaultOptions()
	opts.MaxAttempts = cfg.MaxRetries

	_ = retry.Do(ctx, env.Logger, opts, func(ctx context.Context) error {
		result = Run(ctx, env, op, cfg)
		if !result.Success {
			return result.Err
		}
		return nil
	})

	status := "success"
	if !result.Success {
		status = "failed"
	}
	metrics.OperationsExecuted.WithLabelValues(op.Name(), status).Inc()
	return result
}

// Run executes one pass of the lifecycle, strictly ordered with no
// stage skipping: Validate, Prepare, EstimateFee, CheckBalance
// (config-gated), BuildInstructions, Simulate (config-gated), Submit,
// Confirm. Failure at any stage short-circuits to a failed result; no
// caller-visible state is mutated on failure.
func Run(ctx context.Context, env Environment, op Operation, cfg Config) *Result {
	start := time.Now()

	fail := func(err error) *Result {
		classified := errclass.Classify(err)
		metrics.ClassifiedErrors.WithLabelValues(string(classified.Kind), string(classified.Category)).Inc()
		return &Result{
			Operation: op.Name(),
			Elapsed:   time.Since(start),
			Err:       classified,
		}
	}

	// Liveness checks come before anything else.
	if env.Client == nil {
		return fail(errclass.Newf(errclass.KindConfiguration, "network client not configured"))
	}
	if env.Signer == nil || env.Signer.Address().IsZero() {
		return fail(errclass.Newf(errclass.KindSignerNotConnected, "signer not connected"))
	}

	validation := op.Validate()
	if !validation.IsValid {
		return fail(errclass.Newf(errclass.KindInvalidInput, "invalid input: %s", strings.Join(validation.Errors, "; ")))
	}
	for _, w := range validation.Warnings {
		env.Logger.NoticeWith(logger.Op, "%s: %s", op.Name(), w)
	}

	if err := op.Prepare(ctx, env); err != nil {
		return fail(err)
	}

	fee, err := op.EstimateFee(ctx, env, cfg)
	if err != nil {
		return fail(err)
	}
	metrics.EstimatedFee.Set(float64(fee.EstimatedFee))

	if cfg.ValidateBalance {
		if err := checkBalance(ctx, env, op, fee); err != nil {
			return fail(err)
		}
	}

	instructions, err := op.Instructions()
	if err != nil {
		return fail(err)
	}

	tx := ledger.Transaction{
		Instructions: instructions,
		FeePayer:     env.Signer.Address(),
		PriorityFee:  cfg.PriorityFee,
	}
	signed, err := env.Signer.Sign(ctx, tx)
	if err != nil {
		return fail(err)
	}

	if cfg.SimulateBeforeSend {
		if err := env.Client.Simulate(ctx, signed); err != nil {
			return fail(err)
		}
	}

	var txID string
	if cfg.DryRun {
		txID = "dry-run-" + uuid.NewString()
		env.Logger.InfoWith(logger.Op, "%s: dry run, skipping submit (synthetic id %s)", op.Name(), txID)
	} else {
		txID, err = env.Client.Submit(ctx, signed)
		if err != nil {
			return fail(err)
		}
		env.Logger.InfoWith(logger.Op, "%s: submitted transaction %s", op.Name(), txID)

		if err := confirmWithEscalation(ctx, env, txID, cfg.Confirmation, cfg.Timeout); err != nil {
			return fail(err)
		}
	}

	return &Result{
		Success:       true,
		Operation:     op.Name(),
		TransactionID: txID,
		Fee:           fee,
		AmountSent:    op.Total(),
		Elapsed:       time.Since(start),
		Warnings:      validation.Warnings,
	}
}

// checkBalance verifies the signer can cover the outgoing total plus
// the estimated fee.
func checkBalance(ctx context.Context, env Environment, op Operation, fee ledger.FeeEstimation) error {
	balance, err := env.Client.Balance(ctx, env.Signer.Address())
	if err != nil {
		return err
	}
	total := uint64(op.Total())
	required := total + fee.EstimatedFee
	if required < total {
		// Wrapped: no balance can cover it.
		return errclass.Newf(errclass.KindInsufficientFunds,
			"required amount overflows: %d plus fee %d", total, fee.EstimatedFee)
	}
	if uint64(balance) < required {
		return errclass.Newf(errclass.KindInsufficientFunds,
			"insufficient funds: have %d, need %d", balance, required)
	}
	return nil
}

// confirmWithEscalation waits for confirmation at the requested
// strength, degrading to weaker strengths on timeout within the
// remaining budget. A definitive on-ledger failure is never
// downgraded; it propagates immediately.
func confirmWithEscalation(ctx context.Context, env Environment, txID string, level ledger.ConfirmationLevel, budget time.Duration) error {
	deadline := time.Now().Add(budget)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errclass.Newf(errclass.KindTimeout, "confirmation budget exhausted for %s", txID)
		}

		err := env.Client.Confirm(ctx, txID, level, remaining)
		if err == nil {
			return nil
		}
		if errclass.Classify(err).Kind != errclass.KindTimeout {
			return err
		}

		weaker, ok := level.Weaker()
		if !ok {
			return err
		}
		env.Logger.NoticeWith(logger.Op, "confirmation at %s timed out for %s, retrying at %s", level, txID, weaker)
		level = weaker
	}
}
