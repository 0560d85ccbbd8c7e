package operation

import (
	"context"

	"github.com/driftlabs/batchsend/pkg/ledger"
)

// Wrap converts native value into its wrapped form, or back when
// Unwrap is set.
type Wrap struct {
	Amount ledger.Amount
	Unwrap bool
}

func (w *Wrap) Name() string {
	if w.Unwrap {
		return "unwrap"
	}
	return "wrap"
}

func (w *Wrap) Validate() ValidationResult {
	if w.Amount == 0 {
		return Invalid("amount must be positive")
	}
	return Valid()
}

func (w *Wrap) Prepare(_ context.Context, _ Environment) error { return nil }

func (w *Wrap) EstimateFee(_ context.Context, _ Environment, cfg Config) (ledger.FeeEstimation, error) {
	breakdown := map[string]uint64{
		"base":        ledger.BaseFee,
		"instruction": ledger.PerInstructionFee,
		"priority":    cfg.PriorityFee,
	}
	return ledger.FeeEstimation{
		EstimatedFee: ledger.BaseFee + ledger.PerInstructionFee + cfg.PriorityFee,
		Breakdown:    breakdown,
	}, nil
}

func (w *Wrap) Instructions() ([]ledger.Instruction, error) {
	kind := ledger.InstructionWrap
	if w.Unwrap {
		kind = ledger.InstructionUnwrap
	}
	return []ledger.Instruction{{Kind: kind, Amount: w.Amount}}, nil
}

func (w *Wrap) Total() ledger.Amount {
	if w.Unwrap {
		return 0
	}
	return w.Amount
}
