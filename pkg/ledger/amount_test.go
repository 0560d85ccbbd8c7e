package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountSmallestUnits(t *testing.T) {
	amount, err := ParseAmount("250000", 0)
	require.NoError(t, err)
	assert.Equal(t, Amount(250000), amount)
}

func TestParseAmountDecimalDisplayForm(t *testing.T) {
	amount, err := ParseAmount("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, Amount(1500000), amount)
}

func TestParseAmountBigIntegerString(t *testing.T) {
	amount, err := ParseRawAmount("18000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, Amount(18000000000000000000), amount)
}

func TestParseAmountRejectsInvalid(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		decimals int32
	}{
		{"zero", "0", 0},
		{"negative", "-5", 0},
		{"unparsable", "abc", 0},
		{"empty", "", 0},
		{"sub unit precision", "1.0000005", 6},
		{"fractional smallest units", "10.5", 0},
		{"overflow", "99999999999999999999999999", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAmount(tc.raw, tc.decimals)
			assert.Error(t, err)
		})
	}
}

func TestAmountDisplay(t *testing.T) {
	assert.Equal(t, "1.5", Amount(1500000).Display(6))
	assert.Equal(t, "250000", Amount(250000).Display(0))
}
