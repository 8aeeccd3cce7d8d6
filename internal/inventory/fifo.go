package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// FulfillInTx walks lots oldest-first inside an open transaction, consuming
// min(requested, lot remaining) from each until the demand is met. If the lots
// run out the whole operation fails with the unmet quantity and nothing is
// committed. Callers outside this package (invoice posting) reuse it so the
// lot decrements share their unit of work.
func FulfillInTx(ctx context.Context, tx TxRepository, in FulfillInput) (FulfillResult, error) {
	if err := in.Validate(); err != nil {
		return FulfillResult{}, err
	}
	requested := money.RoundQuantity(in.Quantity)

	lots, err := tx.LotsForUpdate(ctx, in.VariantID, in.WarehouseID)
	if err != nil {
		return FulfillResult{}, err
	}

	remaining := requested
	result := FulfillResult{TotalCost: decimal.Zero}
	for _, lot := range lots {
		if remaining.IsZero() {
			break
		}
		if !lot.Remaining.IsPositive() {
			// Exhausted lots stay on record but contribute nothing.
			continue
		}
		take := decimal.Min(remaining, lot.Remaining)
		lineCost := money.LineCost(take, lot.UnitCost)
		result.Lots = append(result.Lots, LotConsumption{
			LotID:    lot.ID,
			Quantity: take,
			UnitCost: lot.UnitCost,
			LineCost: lineCost,
		})
		result.TotalCost = result.TotalCost.Add(lineCost)
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return FulfillResult{}, &InsufficientLotsError{Unmet: remaining}
	}

	for _, consumed := range result.Lots {
		var lotRemaining decimal.Decimal
		for _, lot := range lots {
			if lot.ID == consumed.LotID {
				lotRemaining = lot.Remaining.Sub(consumed.Quantity)
				break
			}
		}
		if err := tx.UpdateLotRemaining(ctx, consumed.LotID, lotRemaining); err != nil {
			return FulfillResult{}, err
		}
	}

	stock, err := tx.GetStockForUpdate(ctx, in.VariantID, in.WarehouseID)
	if err != nil {
		return FulfillResult{}, err
	}
	stock.Quantity = stock.Quantity.Sub(requested)
	stock.Reserved = stock.Reserved.Sub(requested)
	if stock.Reserved.IsNegative() {
		stock.Reserved = decimal.Zero
	}
	if err := tx.UpsertStock(ctx, stock); err != nil {
		return FulfillResult{}, err
	}

	code, err := tx.Sequences().Next(ctx, in.BranchID, sequence.DocWaybill)
	if err != nil {
		return FulfillResult{}, err
	}
	unitCost := decimal.Zero
	if !requested.IsZero() {
		unitCost = money.RoundMoney(result.TotalCost.Div(requested))
	}
	if _, err := tx.InsertMovement(ctx, Movement{
		Code:          code,
		Type:          MovementSale,
		VariantID:     in.VariantID,
		WarehouseID:   in.WarehouseID,
		BranchID:      in.BranchID,
		Quantity:      requested,
		UnitCost:      unitCost,
		TotalCost:     result.TotalCost,
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
		CreatedBy:     in.ActorID,
	}); err != nil {
		return FulfillResult{}, err
	}
	return result, nil
}
