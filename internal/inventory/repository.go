package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// TxRepository exposes the transaction-scoped operations the engine needs. Lot
// selection and decrement run under the same transaction's isolation, so two
// concurrent fulfilments can never consume the same remainder.
type TxRepository interface {
	InsertLot(ctx context.Context, lot Lot) (Lot, error)
	// LotsForUpdate returns open lots for the pair, oldest receipt first
	// (ties broken by lot id), with row locks held until commit.
	LotsForUpdate(ctx context.Context, variantID, warehouseID int64) ([]Lot, error)
	UpdateLotRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error
	GetStockForUpdate(ctx context.Context, variantID, warehouseID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
	Sequences() sequence.TxSequencer
}

// Repository exposes transactional and read-only inventory access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, variantID, warehouseID int64) (Stock, error)
	ListLots(ctx context.Context, filter LotFilter) ([]Lot, error)
}
