package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// RecordInput groups fields required to post one ledger entry.
type RecordInput struct {
	AccountID     int64
	BranchID      int64
	Type          EntryType
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Currency      string
	ExchangeRate  decimal.Decimal
	CostCenter    string
	Description   string
	ReferenceID   *int64
	ReferenceType string
	ActorID       int64
}

// Validate rejects malformed input before any write happens.
func (in RecordInput) Validate() error {
	if in.AccountID == 0 {
		return errors.New("ledger: account required")
	}
	if in.BranchID == 0 {
		return errors.New("ledger: branch required")
	}
	if !in.Type.Valid() {
		return ErrInvalidEntryType
	}
	if in.Type == EntryReversal {
		// Reversals are produced by Reverse, never posted directly.
		return ErrInvalidEntryType
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return money.ErrNegativeAmount
	}
	if in.Debit.IsPositive() == in.Credit.IsPositive() {
		return ErrUnbalancedAmounts
	}
	if err := money.CheckCurrency(in.Currency); err != nil {
		return err
	}
	if !in.ExchangeRate.IsZero() && !in.ExchangeRate.IsPositive() {
		return errors.New("ledger: exchange rate must be positive")
	}
	return nil
}

// normalized applies rounding and defaulting after validation.
func (in RecordInput) normalized() RecordInput {
	in.Debit = money.RoundMoney(in.Debit)
	in.Credit = money.RoundMoney(in.Credit)
	if in.ExchangeRate.IsZero() {
		in.ExchangeRate = decimal.NewFromInt(1)
	}
	in.ExchangeRate = money.RoundRate(in.ExchangeRate)
	return in
}

// ReverseInput wraps parameters for a reversal.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// ListFilter narrows entry listings. Explicit fields only; there are no
// free-form filter payloads.
type ListFilter struct {
	AccountID   *int64
	BranchID    *int64
	Type        *EntryType
	ReferenceID *int64
	From        time.Time
	To          time.Time
	Limit       int
}
