package batch

import (
	"time"

	"github.com/driftlabs/batchsend/pkg/metrics"
)

// ProgressCallback receives a read-only snapshot after every batch.
type ProgressCallback func(Progress)

// tracker owns the Progress counters. Only the executor writes to it.
type tracker struct {
	progress       Progress
	batchDurations []time.Duration
}

func newTracker(plan *Plan) *tracker {
	return &tracker{
		progress: Progress{
			TotalBatches:    len(plan.Batches),
			TotalRecipients: plan.TotalRecipients,
		},
	}
}

func (t *tracker) startBatch(index int) {
	t.progress.CurrentBatch = index
}

func (t *tracker) completeBatch(b *Batch, elapsed time.Duration, txID string) {
	t.progress.CompletedBatches++
	t.progress.ProcessedRecipients += len(b.Recipients)
	t.progress.LastTransactionID = txID
	t.batchDurations = append(t.batchDurations, elapsed)

	metrics.BatchesCompleted.Inc()
	metrics.RecipientsProcessed.Add(float64(len(b.Recipients)))
	metrics.ProgressRecipients.Set(float64(t.progress.ProcessedRecipients))
}

func (t *tracker) failBatch(b *Batch, elapsed time.Duration) {
	t.progress.FailedBatches++
	t.progress.FailedRecipients += len(b.Recipients)
	t.batchDurations = append(t.batchDurations, elapsed)

	metrics.BatchesFailed.Inc()
	metrics.RecipientsFailed.Add(float64(len(b.Recipients)))
}

// snapshot estimates remaining time from the average duration of
// batches handled so far, including the configured inter-batch delay.
func (t *tracker) snapshot(interBatchDelay time.Duration) Progress {
	snap := t.progress

	handled := snap.CompletedBatches + snap.FailedBatches
	remaining := snap.TotalBatches - handled
	if handled > 0 && remaining > 0 {
		var total time.Duration
		for _, d := range t.batchDurations {
			total += d
		}
		average := total/time.Duration(handled) + interBatchDelay
		snap.EstimatedTimeRemaining = average * time.Duration(remaining)
	}
	return snap
}
