package commission_test

import (
	"testing"

	"github.com/lumapay/payment-core/internal/domain/commission"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_StandardRate(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	rate := decimal.RequireFromString("0.05")

	b, err := commission.Calculate(amount, rate, "EUR")
	require.NoError(t, err)

	assert.True(t, b.Commission.Equal(decimal.RequireFromString("5.00")), "commission = %s", b.Commission)
	assert.True(t, b.Net.Equal(decimal.RequireFromString("95.00")), "net = %s", b.Net)
}

func TestCalculate_SumIsExact(t *testing.T) {
	cases := []struct {
		amount   string
		rate     string
		currency string
	}{
		{"100.00", "0.05", "EUR"},
		{"99.99", "0.0333", "USD"},
		{"0.01", "0.5", "USD"},
		{"10.05", "0.029", "GBP"},
		{"123456.78", "0.015", "EUR"},
		{"1000", "0.07", "JPY"},
		{"5.123", "0.025", "KWD"},
		{"0", "0.1", "USD"},
	}

	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.amount)
		rate := decimal.RequireFromString(tc.rate)

		b, err := commission.Calculate(amount, rate, tc.currency)
		require.NoError(t, err, "amount=%s rate=%s", tc.amount, tc.rate)

		assert.True(t, b.Commission.Add(b.Net).Equal(amount),
			"commission %s + net %s != amount %s", b.Commission, b.Net, amount)
		assert.True(t, b.Commission.Equal(commission.Round(amount.Mul(rate), tc.currency)),
			"commission %s not rounded product for amount=%s rate=%s", b.Commission, tc.amount, tc.rate)
	}
}

func TestCalculate_ZeroMinorUnitCurrency(t *testing.T) {
	b, err := commission.Calculate(decimal.NewFromInt(1000), decimal.RequireFromString("0.033"), "JPY")
	require.NoError(t, err)

	assert.True(t, b.Commission.Equal(decimal.NewFromInt(33)))
	assert.True(t, b.Net.Equal(decimal.NewFromInt(967)))
}

func TestCalculate_RejectsInvalidInputs(t *testing.T) {
	_, err := commission.Calculate(decimal.NewFromInt(-1), decimal.RequireFromString("0.05"), "EUR")
	assert.Error(t, err)

	_, err = commission.Calculate(decimal.NewFromInt(10), decimal.RequireFromString("1.01"), "EUR")
	assert.Error(t, err)

	_, err = commission.Calculate(decimal.NewFromInt(10), decimal.RequireFromString("-0.05"), "EUR")
	assert.Error(t, err)
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.True(t, commission.Round(decimal.RequireFromString("2.345"), "EUR").Equal(decimal.RequireFromString("2.35")))
	assert.True(t, commission.Round(decimal.RequireFromString("2.344"), "EUR").Equal(decimal.RequireFromString("2.34")))
	assert.True(t, commission.Round(decimal.RequireFromString("2.5"), "JPY").Equal(decimal.NewFromInt(3)))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), commission.MinorUnits("EUR"))
	assert.Equal(t, int32(2), commission.MinorUnits("usd"))
	assert.Equal(t, int32(0), commission.MinorUnits("JPY"))
	assert.Equal(t, int32(3), commission.MinorUnits("KWD"))
}
