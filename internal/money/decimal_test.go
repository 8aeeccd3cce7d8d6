package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseNonNegative(t *testing.T) {
	d, err := ParseNonNegative("10.50")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("10.5")))

	_, err = ParseNonNegative("-0.01")
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseNonNegative("ten")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParsePositive(t *testing.T) {
	_, err := ParsePositive("0")
	require.ErrorIs(t, err, ErrNonPositiveAmount)

	d, err := ParsePositive("0.0001")
	require.NoError(t, err)
	require.True(t, d.IsPositive())
}

func TestRounding(t *testing.T) {
	require.Equal(t, "10.01", RoundMoney(decimal.RequireFromString("10.005")).String())
	require.Equal(t, "10", RoundMoney(decimal.RequireFromString("10.004")).String())
	require.Equal(t, "1.2346", RoundQuantity(decimal.RequireFromString("1.23455")).String())
	require.Equal(t, "0.3333", RoundRate(decimal.RequireFromString("0.33334")).String())
}

func TestLineCost(t *testing.T) {
	qty := decimal.RequireFromString("3")
	cost := decimal.RequireFromString("0.335")
	require.Equal(t, "1.01", LineCost(qty, cost).String())
}

func TestSum(t *testing.T) {
	total := Sum(
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.2"),
		decimal.RequireFromString("0.3"),
	)
	require.True(t, total.Equal(decimal.RequireFromString("0.6")))
}

func TestCheckCurrency(t *testing.T) {
	require.NoError(t, CheckCurrency("USD"))
	require.NoError(t, CheckCurrency("TRY"))
	require.ErrorIs(t, CheckCurrency("XXZ"), ErrInvalidCurrency)
}
