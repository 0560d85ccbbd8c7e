package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount is a value in the ledger's smallest indivisible unit. Amounts
// are normalized into this form once, at intake, so the engine never
// does floating-point arithmetic on values.
type Amount uint64

// ParseAmount normalizes a caller-supplied amount string into smallest
// units. The string is interpreted as a decimal display value with the
// given number of fractional digits: with decimals=6, "1.5" becomes
// 1500000 and "250000" becomes 250000000000. Pass decimals=0 when the
// caller already supplies smallest units.
//
// Non-positive, unparsable, fractional-beyond-precision, and
// out-of-range values are rejected.
func ParseAmount(raw string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("unparsable amount %q: %v", raw, err)
	}
	return normalize(d.Shift(decimals), raw)
}

// ParseRawAmount normalizes an amount already expressed in smallest
// units. Fractional values are rejected outright.
func ParseRawAmount(raw string) (Amount, error) {
	return ParseAmount(raw, 0)
}

func normalize(d decimal.Decimal, raw string) (Amount, error) {
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("amount %q must be positive", raw)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-unit precision", raw)
	}
	if d.Cmp(decimal.NewFromUint64(math.MaxUint64)) > 0 {
		return 0, fmt.Errorf("amount %q exceeds maximum representable value", raw)
	}
	return Amount(d.BigInt().Uint64()), nil
}

// Display renders the amount as a decimal string with the given number
// of fractional digits, for logs and results.
func (a Amount) Display(decimals int32) string {
	return decimal.NewFromUint64(uint64(a)).Shift(-decimals).String()
}
