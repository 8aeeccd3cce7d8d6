// Package inventory manages lot-tracked stock. Receipts create immutable-cost
// lots; demand is satisfied strictly oldest-lot-first, and the resulting cost
// breakdown feeds the caller's cost-of-goods ledger entry.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates recorded stock movements.
type MovementType string

const (
	MovementPurchase   MovementType = "PURCHASE"
	MovementSale       MovementType = "SALE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
)

// Lot is one discrete receipt of quantity at one unit cost. UnitCost is
// immutable after creation; Remaining only ever decreases and a fully consumed
// lot stays on record at zero.
type Lot struct {
	ID          int64
	VariantID   int64
	WarehouseID int64
	BranchID    int64
	BatchNumber string
	Quantity    decimal.Decimal
	Remaining   decimal.Decimal
	UnitCost    decimal.Decimal
	ReceivedAt  time.Time
	CreatedAt   time.Time
}

// Stock summarises one (variant, warehouse): on-hand and reserved quantities.
// quantity always equals the sum of lot remainders for the pair.
type Stock struct {
	VariantID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	Reserved    decimal.Decimal
	UpdatedAt   time.Time
}

// Available is the quantity not yet allocated.
func (s Stock) Available() decimal.Decimal {
	return s.Quantity.Sub(s.Reserved)
}

// Movement records one stock-changing event with its cost.
type Movement struct {
	ID            int64
	Code          string
	Type          MovementType
	VariantID     int64
	WarehouseID   int64
	BranchID      int64
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	LotID         *int64
	ReferenceID   *int64
	ReferenceType string
	CreatedBy     int64
	CreatedAt     time.Time
}

// LotConsumption is one line of a FIFO fulfilment breakdown.
type LotConsumption struct {
	LotID    int64
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	LineCost decimal.Decimal
}

// FulfillResult carries the weighted cost of a fulfilment and its per-lot
// breakdown, the basis for the caller's COGS entry.
type FulfillResult struct {
	TotalCost decimal.Decimal
	Lots      []LotConsumption
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrInsufficientStock rejects an allocation beyond available quantity.
	ErrInsufficientStock = errors.New("inventory: insufficient available stock")
	// ErrInsufficientLots rejects a fulfilment beyond total lot remainders.
	ErrInsufficientLots = errors.New("inventory: insufficient lot quantity")
	// ErrStockNotFound indicates a missing stock row.
	ErrStockNotFound = errors.New("inventory: stock not found")
)

// InsufficientLotsError reports the unmet quantity of a failed fulfilment.
type InsufficientLotsError struct {
	Unmet decimal.Decimal
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("inventory: insufficient lot quantity, %s unmet", e.Unmet)
}

// Is matches the ErrInsufficientLots sentinel.
func (e *InsufficientLotsError) Is(target error) bool {
	return target == ErrInsufficientLots
}
