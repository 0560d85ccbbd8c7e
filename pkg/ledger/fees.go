package ledger

// Local fee heuristic constants, in smallest units. Batches are small
// and homogeneous, so a fixed-rate estimate keeps fee estimation off
// the network's request budget.
const (
	// BaseFee is the flat per-transaction network fee.
	BaseFee uint64 = 5000

	// PerInstructionFee is the marginal fee per instruction.
	PerInstructionFee uint64 = 5000

	// AccountCreationRent is the rent-exempt deposit for creating one
	// destination account.
	AccountCreationRent uint64 = 2039280
)
