package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo               Repository
	audit              AuditPort
	now                func() time.Time
	allowNegativeStock bool
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithNegativeStockAllowed relaxes the allocation guard so reservations may
// exceed available quantity. Lot consumption still never goes negative.
func WithNegativeStockAllowed(allow bool) Option {
	return func(s *Service) { s.allowNegativeStock = allow }
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort, opts ...Option) *Service {
	s := &Service{repo: repo, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive creates a new lot, raises stock and records a PURCHASE movement
// under one GRN number.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Lot, error) {
	if err := input.Validate(); err != nil {
		return Lot{}, err
	}
	quantity := money.RoundQuantity(input.Quantity)
	unitCost := money.RoundMoney(input.UnitCost)
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	batchNumber := input.BatchNumber
	if batchNumber == "" {
		batchNumber = uuid.NewString()
	}

	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.Sequences().Next(ctx, input.BranchID, sequence.DocGoodsReceipt)
		if err != nil {
			return err
		}
		lot, err = tx.InsertLot(ctx, Lot{
			VariantID:   input.VariantID,
			WarehouseID: input.WarehouseID,
			BranchID:    input.BranchID,
			BatchNumber: batchNumber,
			Quantity:    quantity,
			Remaining:   quantity,
			UnitCost:    unitCost,
			ReceivedAt:  receivedAt,
		})
		if err != nil {
			return err
		}

		stock, err := tx.GetStockForUpdate(ctx, input.VariantID, input.WarehouseID)
		if err != nil {
			if !errors.Is(err, ErrStockNotFound) {
				return err
			}
			stock = Stock{VariantID: input.VariantID, WarehouseID: input.WarehouseID,
				Quantity: decimal.Zero, Reserved: decimal.Zero}
		}
		stock.Quantity = stock.Quantity.Add(quantity)
		if err := tx.UpsertStock(ctx, stock); err != nil {
			return err
		}

		_, err = tx.InsertMovement(ctx, Movement{
			Code:          code,
			Type:          MovementPurchase,
			VariantID:     input.VariantID,
			WarehouseID:   input.WarehouseID,
			BranchID:      input.BranchID,
			Quantity:      quantity,
			UnitCost:      unitCost,
			TotalCost:     money.LineCost(quantity, unitCost),
			LotID:         &lot.ID,
			ReferenceID:   input.ReferenceID,
			ReferenceType: input.ReferenceType,
			CreatedBy:     input.ActorID,
		})
		return err
	})
	if err != nil {
		return Lot{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: input.BranchID,
			Action:   "inventory.receive",
			Entity:   "inventory_lot",
			EntityID: fmt.Sprintf("%d", lot.ID),
			After: map[string]any{
				"quantity":  lot.Quantity.String(),
				"unit_cost": lot.UnitCost.String(),
			},
		})
	}
	return lot, nil
}

// Allocate reserves quantity against available stock. The guard runs under a
// row lock so two allocations cannot both pass on the same availability.
func (s *Service) Allocate(ctx context.Context, input AllocateInput) (Stock, error) {
	if err := input.Validate(); err != nil {
		return Stock{}, err
	}
	quantity := money.RoundQuantity(input.Quantity)

	var stock Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		stock, err = tx.GetStockForUpdate(ctx, input.VariantID, input.WarehouseID)
		if err != nil {
			return err
		}
		if !s.allowNegativeStock && quantity.GreaterThan(stock.Available()) {
			return ErrInsufficientStock
		}
		stock.Reserved = stock.Reserved.Add(quantity)
		return tx.UpsertStock(ctx, stock)
	})
	if err != nil {
		return Stock{}, err
	}
	return stock, nil
}

// Release returns reserved quantity to available, clamping at zero.
func (s *Service) Release(ctx context.Context, input ReleaseInput) (Stock, error) {
	if err := input.Validate(); err != nil {
		return Stock{}, err
	}
	quantity := money.RoundQuantity(input.Quantity)

	var stock Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		stock, err = tx.GetStockForUpdate(ctx, input.VariantID, input.WarehouseID)
		if err != nil {
			return err
		}
		stock.Reserved = stock.Reserved.Sub(quantity)
		if stock.Reserved.IsNegative() {
			stock.Reserved = decimal.Zero
		}
		return tx.UpsertStock(ctx, stock)
	})
	if err != nil {
		return Stock{}, err
	}
	return stock, nil
}

// FulfillFIFO consumes stock oldest-lot-first and records a SALE movement
// carrying the weighted cost. Nothing is written when the lots cannot cover
// the demand.
func (s *Service) FulfillFIFO(ctx context.Context, input FulfillInput) (FulfillResult, error) {
	if err := input.Validate(); err != nil {
		return FulfillResult{}, err
	}
	quantity := money.RoundQuantity(input.Quantity)

	var result FulfillResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = FulfillInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return FulfillResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID: input.ActorID, BranchID: input.BranchID,
			Action: "inventory.fulfill", Entity: "stock",
			EntityID: fmt.Sprintf("%d:%d", input.VariantID, input.WarehouseID),
			After: map[string]any{
				"quantity":   quantity.String(),
				"total_cost": result.TotalCost.String(),
				"lots":       len(result.Lots),
			},
		})
	}
	return result, nil
}

// GetStock returns the summary row for a (variant, warehouse) pair.
func (s *Service) GetStock(ctx context.Context, variantID, warehouseID int64) (Stock, error) {
	return s.repo.GetStock(ctx, variantID, warehouseID)
}

// ListLots returns lots matching the filter.
func (s *Service) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	return s.repo.ListLots(ctx, filter)
}
