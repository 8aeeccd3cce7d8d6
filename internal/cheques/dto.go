package cheques

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// CreateInput describes a new cheque entering the portfolio.
type CreateInput struct {
	ChequeNumber    string
	BranchID        int64
	DrawerAccountID int64
	Amount          decimal.Decimal
	Currency        string
	Payee           string
	DueDate         time.Time
	ActorID         int64
}

// Validate rejects malformed input before any write.
func (in CreateInput) Validate() error {
	if in.BranchID == 0 {
		return errors.New("cheques: branch required")
	}
	if in.DrawerAccountID == 0 {
		return errors.New("cheques: drawer account required")
	}
	if !in.Amount.IsPositive() {
		return money.ErrNonPositiveAmount
	}
	return money.CheckCurrency(in.Currency)
}

// TransitionInput moves a cheque to a new status. BranchID is the caller's
// branch; cheques outside it read as not found.
type TransitionInput struct {
	ChequeID int64
	BranchID int64
	To       Status
	ActorID  int64
	// EndorsedTo names the counterparty, required meaningfully only when
	// the target is ENDORSED.
	EndorsedTo string
	Notes      string
}

// Validate rejects malformed input before any write.
func (in TransitionInput) Validate() error {
	if in.ChequeID == 0 {
		return ErrChequeNotFound
	}
	if in.BranchID == 0 {
		return errors.New("cheques: branch required")
	}
	if !in.To.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ListFilter narrows cheque listings.
type ListFilter struct {
	BranchID int64
	Status   *Status
	Limit    int
}
