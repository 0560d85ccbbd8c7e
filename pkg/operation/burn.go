package operation

import (
	"context"

	"github.com/driftlabs/batchsend/pkg/errclass"
	"github.com/driftlabs/batchsend/pkg/ledger"
)

// Burn permanently removes an amount from the signer's holdings.
type Burn struct {
	Amount ledger.Amount

	balance ledger.Amount
}

func (b *Burn) Name() string { return "burn" }

func (b *Burn) Validate() ValidationResult {
	if b.Amount == 0 {
		return Invalid("amount must be positive")
	}
	return Valid()
}

// Prepare fetches the current holding so a burn beyond the balance
// fails before the network sees it.
func (b *Burn) Prepare(ctx context.Context, env Environment) error {
	balance, err := env.Client.Balance(ctx, env.Signer.Address())
	if err != nil {
		return err
	}
	if balance < b.Amount {
		return errclass.Newf(errclass.KindInsufficientAsset,
			"insufficient asset balance: have %d, burning %d", balance, b.Amount)
	}
	b.balance = balance
	return nil
}

func (b *Burn) EstimateFee(_ context.Context, _ Environment, cfg Config) (ledger.FeeEstimation, error) {
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

func (b *Burn) Instructions() ([]ledger.Instruction, error) {
	return []ledger.Instruction{{
		Kind:   ledger.InstructionBurn,
		Amount: b.Amount,
	}}, nil
}

// Total is zero: a burn spends the asset, not the fee-paying balance.
func (b *Burn) Total() ledger.Amount { return 0 }
