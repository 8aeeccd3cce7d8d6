// Package money provides the exact decimal arithmetic used by every
// value-carrying component. Amounts are shopspring decimals rounded half-up at
// a domain-specific scale; floating point never touches a stored value.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Rounding scales per domain.
const (
	MoneyScale    = 2
	QuantityScale = 4
	RateScale     = 4
)

var (
	// ErrInvalidAmount indicates a malformed decimal string.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrNegativeAmount indicates a negative value where only zero or more is allowed.
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	// ErrNonPositiveAmount indicates a zero or negative value where a positive one is required.
	ErrNonPositiveAmount = errors.New("money: amount must be positive")
	// ErrInvalidCurrency indicates an unknown ISO 4217 code.
	ErrInvalidCurrency = errors.New("money: invalid currency code")
)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Parse converts a decimal string into an exact decimal.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseNonNegative parses a decimal string and rejects negative values.
func ParseNonNegative(value string) (decimal.Decimal, error) {
	d, err := Parse(value)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// ParsePositive parses a decimal string and rejects zero or negative values.
func ParsePositive(value string) (decimal.Decimal, error) {
	d, err := Parse(value)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

// RoundMoney rounds half-up to the monetary scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundQuantity rounds half-up to the quantity scale.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// RoundRate rounds half-up to the exchange-rate scale.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// LineCost multiplies a quantity by a unit cost and rounds to money precision.
func LineCost(qty, unitCost decimal.Decimal) decimal.Decimal {
	return RoundMoney(qty.Mul(unitCost))
}

// Sum adds a series of decimals without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ValidCurrency reports whether code is a well-formed ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

// CheckCurrency validates an ISO 4217 currency code.
func CheckCurrency(code string) error {
	if !ValidCurrency(code) {
		return ErrInvalidCurrency
	}
	return nil
}
