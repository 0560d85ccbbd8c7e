package batch

import (
	"context"
	"fmt"

	"github.com/driftlabs/batchsend/pkg/ledger"
	"github.com/driftlabs/batchsend/pkg/operation"
)

// disbursement is the per-batch operation the executor drives through
// the shared lifecycle. Validation and account resolution already
// happened during planning, so its hooks are thin: it builds one
// create-account instruction per missing destination followed by one
// transfer per recipient, and quotes fees from the local heuristic
// rather than a live round-trip per batch.
type disbursement struct {
	batch *Batch
}

func newDisbursement(b *Batch) *disbursement {
	return &disbursement{batch: b}
}

func (d *disbursement) Name() string { return "batch_disbursement" }

func (d *disbursement) Validate() operation.ValidationResult {
	if len(d.batch.Recipients) == 0 {
		return operation.Invalid(fmt.Sprintf("batch %d has no recipients", d.batch.Index))
	}
	return operation.Valid()
}

func (d *disbursement) Prepare(_ context.Context, _ operation.Environment) error {
	return nil
}

func (d *disbursement) EstimateFee(_ context.Context, _ operation.Environment, cfg operation.Config) (ledger.FeeEstimation, error) {
	instructionCount := uint64(len(d.batch.Recipients) + len(d.batch.AccountsToCreate))
	breakdown := map[string]uint64{
		"base":         ledger.BaseFee,
		"instructions": ledger.PerInstructionFee * instructionCount,
		"rent":         ledger.AccountCreationRent * uint64(len(d.batch.AccountsToCreate)),
		"priority":     cfg.PriorityFee,
	}
	total := uint64(0)
	for _, v := range breakdown {
		total += v
	}
	return ledger.FeeEstimation{EstimatedFee: total, Breakdown: breakdown}, nil
}

func (d *disbursement) Instructions() ([]ledger.Instruction, error) {
	instructions := make([]ledger.Instruction, 0, len(d.batch.Recipients)+len(d.batch.AccountsToCreate))
	for _, create := range d.batch.AccountsToCreate {
		instructions = append(instructions, ledger.Instruction{
			Kind:        ledger.InstructionCreateAccount,
			Destination: create.DestinationAccount,
		})
	}
	for _, r := range d.batch.Recipients {
		instructions = append(instructions, ledger.Instruction{
			Kind:        ledger.InstructionTransfer,
			Destination: r.DestinationAccount,
			Amount:      r.Amount,
		})
	}
	return instructions, nil
}

func (d *disbursement) Total() ledger.Amount { return d.batch.TotalAmount }
