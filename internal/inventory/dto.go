package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveInput describes an inbound lot.
type ReceiveInput struct {
	VariantID     int64
	WarehouseID   int64
	BranchID      int64
	BatchNumber   string
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	ReceivedAt    time.Time
	ReferenceID   *int64
	ReferenceType string
	ActorID       int64
}

// Validate rejects malformed receipts before any write.
func (in ReceiveInput) Validate() error {
	if in.VariantID == 0 || in.WarehouseID == 0 {
		return errors.New("inventory: variant and warehouse required")
	}
	if in.BranchID == 0 {
		return errors.New("inventory: branch required")
	}
	if !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}

// AllocateInput reserves quantity against available stock.
type AllocateInput struct {
	VariantID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	ActorID     int64
}

// Validate rejects malformed allocations before any write.
func (in AllocateInput) Validate() error {
	if in.VariantID == 0 || in.WarehouseID == 0 {
		return errors.New("inventory: variant and warehouse required")
	}
	if !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// ReleaseInput returns reserved quantity to available.
type ReleaseInput = AllocateInput

// FulfillInput consumes stock oldest-lot-first.
type FulfillInput struct {
	VariantID     int64
	WarehouseID   int64
	BranchID      int64
	Quantity      decimal.Decimal
	ReferenceID   *int64
	ReferenceType string
	ActorID       int64
}

// Validate rejects malformed fulfilments before any write.
func (in FulfillInput) Validate() error {
	if in.VariantID == 0 || in.WarehouseID == 0 {
		return errors.New("inventory: variant and warehouse required")
	}
	if in.BranchID == 0 {
		return errors.New("inventory: branch required")
	}
	if !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// LotFilter narrows lot listings.
type LotFilter struct {
	VariantID   int64
	WarehouseID int64
	OnlyOpen    bool
	Limit       int
}
