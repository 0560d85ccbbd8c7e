// Package batch plans and executes large-N recipient disbursements:
// recipients are normalized and partitioned into bounded batches, and
// the batches are submitted sequentially with per-batch retries,
// progress reporting, and partial-failure accounting.
package batch

import (
	"time"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
)

// RecipientInput is one caller-supplied (address, amount) pair before
// normalization. Amount accepts decimal, integer, or big-number string
// forms; it is normalized exactly once, at intake.
type RecipientInput struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// RecipientStatus tracks one recipient through the run.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientProcessing RecipientStatus = "processing"
	RecipientCompleted  RecipientStatus = "completed"
	RecipientFailed     RecipientStatus = "failed"
)

// BatchStatus tracks one batch through the run.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	StatusFailed     BatchStatus = "failed"
	StatusRetrying   BatchStatus = "retrying"
)

// Recipient is one normalized (address, amount) pair. Amount is always
// positive, in smallest units.
type Recipient struct {
	Address ledger.Address
	Amount  ledger.Amount
}

// RecipientRecord is a recipient with its resolved destination account
// and per-run bookkeeping.
type RecipientRecord struct {
	Recipient
	DestinationAccount ledger.Address
	NeedsCreation      bool
	Status             RecipientStatus
	BatchIndex         int
}

// AccountToCreate names a destination account that must be created
// before its recipient can be paid.
type AccountToCreate struct {
	Recipient          ledger.Address
	DestinationAccount ledger.Address
}

// Batch is one bounded group of recipients submitted together. The
// planner fills the immutable fields; only Status, Attempts,
// TransactionID and LastError are mutated afterwards, by the executor.
type Batch struct {
	Index            int
	Recipients       []*RecipientRecord
	AccountsToCreate []AccountToCreate
	TotalAmount      ledger.Amount
	Status           BatchStatus
	Attempts         int
	TransactionID    string
	LastError        string
}

// Plan is the planner's output: an ordered, gap-free batch sequence
// plus intake warnings.
type Plan struct {
	Batches         []*Batch
	Warnings        []string
	TotalRecipients int
	TotalAmount     ledger.Amount
}

// Progress is the executor's running counters, snapshotted for the
// caller's progress callback after every batch. The callback must
// treat it as read-only.
type Progress struct {
	TotalBatches           int
	CompletedBatches       int
	FailedBatches          int
	TotalRecipients        int
	ProcessedRecipients    int
	FailedRecipients       int
	CurrentBatch           int
	EstimatedTimeRemaining time.Duration
	LastTransactionID      string
}

// Result is the terminal, immutable accounting of one run. Success is
// all-or-nothing but the per-batch counts let integrators retry just
// the failed subset.
type Result struct {
	Success             bool
	TransactionIDs      []string
	SuccessfulBatches   int
	FailedBatches       int
	RecipientsProcessed int
	RecipientsFailed    int
	TotalAmountSent     ledger.Amount
	Elapsed             time.Duration
	SuccessRate         float64
	PausedOnError       bool
	Err                 *errclass.Classified
}
