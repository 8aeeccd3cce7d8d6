// Package ledger implements the append-only double-entry ledger and the
// account balance projection. Entries are never edited or deleted after
// commit; corrections are new REVERSAL entries linked back to the original.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType enumerates the business meaning of a ledger entry.
type EntryType string

const (
	EntryInvoice       EntryType = "INVOICE"
	EntryCollection    EntryType = "COLLECTION"
	EntryPayment       EntryType = "PAYMENT"
	EntryReversal      EntryType = "REVERSAL"
	EntryAdjustment    EntryType = "ADJUSTMENT"
	EntryFXGainLoss    EntryType = "FX_GAIN_LOSS"
	EntryChequeCollect EntryType = "CHEQUE_COLLECT"
	EntryChequeEndorse EntryType = "CHEQUE_ENDORSE"
	EntryChequeBounce  EntryType = "CHEQUE_BOUNCE"
)

var entryTypes = map[EntryType]struct{}{
	EntryInvoice:       {},
	EntryCollection:    {},
	EntryPayment:       {},
	EntryReversal:      {},
	EntryAdjustment:    {},
	EntryFXGainLoss:    {},
	EntryChequeCollect: {},
	EntryChequeEndorse: {},
	EntryChequeBounce:  {},
}

// Valid reports whether the entry type is known.
func (t EntryType) Valid() bool {
	_, ok := entryTypes[t]
	return ok
}

// Reference types for linking entries to their originating documents.
const (
	RefLedgerEntry = "LEDGER_ENTRY"
	RefInvoice     = "INVOICE"
	RefCheque      = "CHEQUE"
	RefLot         = "LOT"
	RefOrder       = "ORDER"
)

// Entry is one immutable debit-or-credit record against an account. Exactly
// one of Debit/Credit is non-zero; both are non-negative.
type Entry struct {
	ID            int64
	Number        string
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
	IsCancelled   bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// Signed is the entry's effect on its account balance: debit minus credit.
// This is the single sign convention applied everywhere.
func (e Entry) Signed() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Account carries the cached running balance. The balance is mutated only in
// the same transaction as the entry that justifies the change.
type Account struct {
	ID             int64
	Code           string
	Name           string
	BranchID       int64
	Currency       string
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var (
	// ErrEntryNotFound indicates a missing ledger entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAlreadyReversed rejects reversing an entry that is already cancelled.
	ErrAlreadyReversed = errors.New("ledger: entry already reversed")
	// ErrInvalidEntryType indicates an unknown or disallowed entry type.
	ErrInvalidEntryType = errors.New("ledger: invalid entry type")
	// ErrUnbalancedAmounts rejects entries where not exactly one of
	// debit/credit is positive.
	ErrUnbalancedAmounts = errors.New("ledger: exactly one of debit or credit must be positive")
)
