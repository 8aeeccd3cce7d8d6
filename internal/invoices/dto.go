package invoices

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// LineInput is one requested invoice line.
type LineInput struct {
	VariantID   int64
	WarehouseID int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInput describes a new draft invoice.
type CreateInput struct {
	BranchID          int64
	CustomerAccountID int64
	Currency          string
	Lines             []LineInput
	ActorID           int64
}

// Validate rejects malformed input before any write.
func (in CreateInput) Validate() error {
	if in.BranchID == 0 {
		return errors.New("invoices: branch required")
	}
	if in.CustomerAccountID == 0 {
		return errors.New("invoices: customer account required")
	}
	if err := money.CheckCurrency(in.Currency); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		return ErrNoLines
	}
	for _, line := range in.Lines {
		if !line.Quantity.IsPositive() {
			return errors.New("invoices: line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return errors.New("invoices: line unit price must be >= 0")
		}
		if line.VariantID != 0 && line.WarehouseID == 0 {
			return errors.New("invoices: stock line requires a warehouse")
		}
	}
	return nil
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	BranchID          int64
	CustomerAccountID int64
	Status            *Status
	Limit             int
}
