package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlabs/batchsend/pkg/circuitbreaker"
	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/logger"
	"github.com/driftlabs/batchsend/pkg/operation"
)

// fakeClient scripts Submit outcomes per call while keeping the rest of
// the NetworkClient surface trivially healthy.
type fakeClient struct {
	mu         sync.Mutex
	submitErrs []error
	submits    int
}

func (c *fakeClient) AccountExists(_ context.Context, _ ledger.Address) (bool, error) {
	return true, nil
}

func (c *fakeClient) Balance(_ context.Context, _ ledger.Address) (ledger.Amount, error) {
	return ledger.Amount(1 << 60), nil
}

func (c *fakeClient) EstimateFee(_ context.Context, instructions []ledger.Instruction) (uint64, error) {
	return ledger.BaseFee + ledger.PerInstructionFee*uint64(len(instructions)), nil
}

func (c *fakeClient) Simulate(_ context.Context, _ ledger.SignedTransaction) error {
	return nil
}

func (c *fakeClient) Submit(_ context.Context, _ ledger.SignedTransaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	if len(c.submitErrs) > 0 {
		err := c.submitErrs[0]
		c.submitErrs = c.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("tx-%d", c.submits), nil
}

func (c *fakeClient) Confirm(_ context.Context, _ string, _ ledger.ConfirmationLevel, _ time.Duration) error {
	return nil
}

func (c *fakeClient) Ping(_ context.Context) (time.Duration, error) {
	return time.Millisecond, nil
}

func testEnv(client ledger.NetworkClient) operation.Environment {
	return operation.Environment{
		Client: client,
		Signer: ledger.NewStaticSigner(),
		Logger: &logger.EmptyLogger{},
	}
}

func testOpConfig() operation.Config {
	return operation.Config{
		Timeout:      5 * time.Second,
		Confirmation: ledger.ConfirmationFinalized,
	}
}

// newTestExecutor swaps the context sleep for an instant recorder so
// tests cover the delay schedule without real waiting.
func newTestExecutor(env operation.Environment, breaker *circuitbreaker.Breaker, opts ExecutorOptions) (*Executor, *[]time.Duration) {
	e := NewExecutor(env, breaker, opts)
	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return e, &slept
}

func makePlan(t *testing.T, recipients, batchSize int) *Plan {
	t.Helper()
	p := NewPlanner(newScriptedResolver(), &logger.EmptyLogger{}, fastPlannerOptions(batchSize))
	plan, err := p.Plan(context.Background(), makeInputs(t, recipients))
	require.NoError(t, err)
	return plan
}

func TestExecuteAllHappyPath(t *testing.T) {
	plan := makePlan(t, 30, 10)
	client := &fakeClient{}
	e, slept := newTestExecutor(testEnv(client), nil, DefaultExecutorOptions())

	var snapshots []Progress
	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), func(p Progress) {
		snapshots = append(snapshots, p)
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.SuccessfulBatches)
	assert.Equal(t, 0, result.FailedBatches)
	assert.Equal(t, 30, result.RecipientsProcessed)
	assert.Equal(t, 0, result.RecipientsFailed)
	assert.Equal(t, plan.TotalAmount, result.TotalAmountSent)
	assert.Equal(t, 100.0, result.SuccessRate)
	assert.Len(t, result.TransactionIDs, 3)
	assert.Nil(t, result.Err)

	// One inter-batch pause per gap, none after the last batch.
	assert.Len(t, *slept, 2)

	// Progress fires after every batch.
	require.Len(t, snapshots, 3)
	assert.Equal(t, 3, snapshots[2].CompletedBatches)
	assert.Equal(t, 30, snapshots[2].ProcessedRecipients)

	for _, b := range plan.Batches {
		assert.Equal(t, StatusCompleted, b.Status)
		assert.Equal(t, 1, b.Attempts)
		assert.NotEmpty(t, b.TransactionID)
		for _, r := range b.Recipients {
			assert.Equal(t, RecipientCompleted, r.Status)
		}
	}
}

func TestExecuteAllPartialFailureContinues(t *testing.T) {
	plan := makePlan(t, 30, 10)
	opts := DefaultExecutorOptions()
	opts.MaxBatchRetries = 2

	// Batch 0 succeeds; batch 1 fails both attempts; batch 2 succeeds.
	client := &fakeClient{submitErrs: []error{
		nil,
		ledger.NewClientError(ledger.CodeNetwork, "rpc down"),
		ledger.NewClientError(ledger.CodeNetwork, "rpc down"),
		nil,
	}}
	e, _ := newTestExecutor(testEnv(client), nil, opts)

	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.SuccessfulBatches)
	assert.Equal(t, 1, result.FailedBatches)
	assert.Equal(t, 20, result.RecipientsProcessed)
	assert.Equal(t, 10, result.RecipientsFailed)
	assert.Equal(t, 66.67, result.SuccessRate)
	assert.False(t, result.PausedOnError)
	require.NotNil(t, result.Err)
	assert.Equal(t, errclass.KindNetworkError, result.Err.Kind)

	assert.Equal(t, StatusCompleted, plan.Batches[0].Status)
	assert.Equal(t, StatusFailed, plan.Batches[1].Status)
	assert.Equal(t, 2, plan.Batches[1].Attempts)
	assert.NotEmpty(t, plan.Batches[1].LastError)
	assert.Equal(t, StatusCompleted, plan.Batches[2].Status)

	// Only the two successful batches count toward the amount sent.
	want := plan.Batches[0].TotalAmount + plan.Batches[2].TotalAmount
	assert.Equal(t, want, result.TotalAmountSent)
}

func TestExecuteAllRetryThenRecover(t *testing.T) {
	plan := makePlan(t, 5, 5)
	opts := DefaultExecutorOptions()
	opts.BatchDelay = 3 * time.Second
	opts.MaxBatchRetries = 3

	client := &fakeClient{submitErrs: []error{
		ledger.NewClientError(ledger.CodeRateLimited, "429"),
		ledger.NewClientError(ledger.CodeRateLimited, "429"),
		nil,
	}}
	e, slept := newTestExecutor(testEnv(client), nil, opts)

	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), nil)

	assert.True(t, result.Success)
	assert.Equal(t, 3, plan.Batches[0].Attempts)
	assert.Equal(t, 3, client.submits)

	// Retry delay grows with the attempt count: batchDelay * attempt.
	require.Len(t, *slept, 2)
	assert.Equal(t, 3*time.Second, (*slept)[0])
	assert.Equal(t, 6*time.Second, (*slept)[1])
}

func TestExecuteAllNonRetryableStopsImmediately(t *testing.T) {
	plan := makePlan(t, 5, 5)
	client := &fakeClient{submitErrs: []error{
		ledger.NewClientError(ledger.CodeTransactionFailed, "custom program error"),
	}}
	e, _ := newTestExecutor(testEnv(client), nil, DefaultExecutorOptions())

	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, 1, plan.Batches[0].Attempts)
	assert.Equal(t, 1, client.submits)
	assert.Equal(t, errclass.KindTransactionFailed, result.Err.Kind)
}

func TestExecuteAllPauseOnError(t *testing.T) {
	plan := makePlan(t, 30, 10)
	opts := DefaultExecutorOptions()
	opts.MaxBatchRetries = 1
	opts.PauseOnError = true

	client := &fakeClient{submitErrs: []error{
		ledger.NewClientError(ledger.CodeNetwork, "rpc down"),
	}}
	e, _ := newTestExecutor(testEnv(client), nil, opts)

	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), nil)

	assert.False(t, result.Success)
	assert.True(t, result.PausedOnError)
	assert.Equal(t, 1, result.FailedBatches)
	assert.Equal(t, 0, result.SuccessfulBatches)
	assert.Equal(t, 1, client.submits)

	// Remaining batches were never started.
	assert.Equal(t, StatusPending, plan.Batches[1].Status)
	assert.Equal(t, StatusPending, plan.Batches[2].Status)
	for _, r := range plan.Batches[1].Recipients {
		assert.Equal(t, RecipientPending, r.Status)
	}
}

func TestExecuteAllDryRun(t *testing.T) {
	plan := makePlan(t, 10, 5)
	client := &fakeClient{}
	e, _ := newTestExecutor(testEnv(client), nil, DefaultExecutorOptions())

	cfg := testOpConfig()
	cfg.DryRun = true
	result := e.ExecuteAll(context.Background(), plan, cfg, nil)

	assert.True(t, result.Success)
	assert.Equal(t, 0, client.submits)
	require.Len(t, result.TransactionIDs, 2)
	for _, id := range result.TransactionIDs {
		assert.Contains(t, id, "dry-run-")
	}
}

func TestExecuteAllOpenBreakerFailsFast(t *testing.T) {
	plan := makePlan(t, 5, 5)
	client := &fakeClient{}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		OpenTimeout:      time.Hour,
	}, &logger.EmptyLogger{})
	_, err := breaker.Check(context.Background(), func(_ context.Context) (time.Duration, error) {
		return 0, fmt.Errorf("connection refused")
	})
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	e, _ := newTestExecutor(testEnv(client), breaker, DefaultExecutorOptions())
	result := e.ExecuteAll(context.Background(), plan, testOpConfig(), nil)

	assert.False(t, result.Success)
	assert.Equal(t, 0, client.submits)
	require.NotNil(t, result.Err)
	assert.Equal(t, errclass.KindNetworkError, result.Err.Kind)
}

func TestRetryDelayCapped(t *testing.T) {
	opts := DefaultExecutorOptions()
	opts.BatchDelay = 10 * time.Second
	opts.MaxRetryDelay = 30 * time.Second
	e := NewExecutor(testEnv(&fakeClient{}), nil, opts)

	assert.Equal(t, 10*time.Second, e.retryDelay(1))
	assert.Equal(t, 20*time.Second, e.retryDelay(2))
	assert.Equal(t, 30*time.Second, e.retryDelay(3))
	assert.Equal(t, 30*time.Second, e.retryDelay(7))
}

func TestNewExecutorEnforcesDelayFloor(t *testing.T) {
	opts := DefaultExecutorOptions()
	opts.BatchDelay = 100 * time.Millisecond
	e := NewExecutor(testEnv(&fakeClient{}), nil, opts)
	assert.Equal(t, MinBatchDelay, e.opts.BatchDelay)
}

func TestSuccessRateRounding(t *testing.T) {
	assert.Equal(t, 100.0, successRate(3, 3))
	assert.Equal(t, 66.67, successRate(2, 3))
	assert.Equal(t, 33.33, successRate(1, 3))
	assert.Equal(t, 0.0, successRate(0, 3))
	assert.Equal(t, 0.0, successRate(0, 0))
}
