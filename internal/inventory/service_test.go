package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

type stockKey struct {
	variantID   int64
	warehouseID int64
}

type memoryRepo struct {
	lots      []Lot
	stocks    map[stockKey]Stock
	movements []Movement
	counters  map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stocks:   make(map[stockKey]Stock),
		counters: make(map[string]int64),
	}
}

func (r *memoryRepo) snapshot() *memoryRepo {
	clone := &memoryRepo{
		lots:      append([]Lot(nil), r.lots...),
		stocks:    make(map[stockKey]Stock, len(r.stocks)),
		movements: append([]Movement(nil), r.movements...),
		counters:  make(map[string]int64, len(r.counters)),
		nextID:    r.nextID,
	}
	for k, v := range r.stocks {
		clone.stocks[k] = v
	}
	for k, v := range r.counters {
		clone.counters[k] = v
	}
	return clone
}

func (r *memoryRepo) restore(snap *memoryRepo) {
	r.lots = snap.lots
	r.stocks = snap.stocks
	r.movements = snap.movements
	r.counters = snap.counters
	r.nextID = snap.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) GetStock(ctx context.Context, variantID, warehouseID int64) (Stock, error) {
	stock, ok := r.stocks[stockKey{variantID, warehouseID}]
	if !ok {
		return Stock{}, ErrStockNotFound
	}
	return stock, nil
}

func (r *memoryRepo) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	out := []Lot{}
	for _, l := range r.lots {
		if filter.VariantID != 0 && l.VariantID != filter.VariantID {
			continue
		}
		if filter.OnlyOpen && !l.Remaining.IsPositive() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot Lot) (Lot, error) {
	tx.repo.nextID++
	lot.ID = tx.repo.nextID
	tx.repo.lots = append(tx.repo.lots, lot)
	return lot, nil
}

func (tx *memoryTx) LotsForUpdate(ctx context.Context, variantID, warehouseID int64) ([]Lot, error) {
	out := []Lot{}
	for _, l := range tx.repo.lots {
		if l.VariantID != variantID || l.WarehouseID != warehouseID || !l.Remaining.IsPositive() {
			continue
		}
		out = append(out, l)
	}
	// FIFO order, ties broken by id. Insertion order already matches when
	// receipts arrive in time order, so a simple stable sort suffices.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.ReceivedAt.Before(b.ReceivedAt) || (a.ReceivedAt.Equal(b.ReceivedAt) && a.ID < b.ID) {
				break
			}
			out[j-1], out[j] = b, a
		}
	}
	return out, nil
}

func (tx *memoryTx) UpdateLotRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error {
	for i := range tx.repo.lots {
		if tx.repo.lots[i].ID == lotID {
			tx.repo.lots[i].Remaining = remaining
			return nil
		}
	}
	return fmt.Errorf("lot %d not found", lotID)
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, variantID, warehouseID int64) (Stock, error) {
	return tx.repo.GetStock(ctx, variantID, warehouseID)
}

func (tx *memoryTx) UpsertStock(ctx context.Context, stock Stock) error {
	tx.repo.stocks[stockKey{stock.VariantID, stock.WarehouseID}] = stock
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (Movement, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func (tx *memoryTx) Sequences() sequence.TxSequencer {
	return &memorySequencer{repo: tx.repo}
}

type memorySequencer struct {
	repo *memoryRepo
}

func (s *memorySequencer) Next(ctx context.Context, branchID int64, doc sequence.DocType) (string, error) {
	key := fmt.Sprintf("%d:%s", branchID, doc)
	s.repo.counters[key]++
	return sequence.Format(doc, 2026, s.repo.counters[key])
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func receiveInput(qty, cost string, at time.Time) ReceiveInput {
	return ReceiveInput{
		VariantID:   1,
		WarehouseID: 1,
		BranchID:    1,
		Quantity:    dec(qty),
		UnitCost:    dec(cost),
		ReceivedAt:  at,
		ActorID:     9,
	}
}

func TestReceiveCreatesLotAndRaisesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	lot, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)
	require.True(t, lot.Remaining.Equal(dec("10")))
	require.True(t, lot.UnitCost.Equal(dec("5")))

	stock, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(dec("10")))
	require.True(t, stock.Reserved.IsZero())

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementPurchase, repo.movements[0].Type)
	require.Equal(t, "GRN-2026-0001", repo.movements[0].Code)
	require.True(t, repo.movements[0].TotalCost.Equal(dec("50")))
}

func TestReceiveRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("0", "5", time.Now()))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Receive(ctx, receiveInput("10", "-1", time.Now()))
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	require.Empty(t, repo.lots)
}

func TestReceiveAllowsZeroCostLots(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	lot, err := svc.Receive(context.Background(), receiveInput("3", "0", time.Now()))
	require.NoError(t, err)
	require.True(t, lot.UnitCost.IsZero())
}

func TestFulfillConsumesOldestLotsFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Receive(ctx, receiveInput("10", "5.00", base))
	require.NoError(t, err)
	second, err := svc.Receive(ctx, receiveInput("10", "7.00", base.Add(24*time.Hour)))
	require.NoError(t, err)

	result, err := svc.FulfillFIFO(ctx, FulfillInput{
		VariantID: 1, WarehouseID: 1, BranchID: 1, Quantity: dec("15"), ActorID: 9,
	})
	require.NoError(t, err)
	require.True(t, result.TotalCost.Equal(dec("85")), "10*5 + 5*7, got %s", result.TotalCost)
	require.Len(t, result.Lots, 2)
	require.Equal(t, first.ID, result.Lots[0].LotID)
	require.True(t, result.Lots[0].Quantity.Equal(dec("10")))
	require.Equal(t, second.ID, result.Lots[1].LotID)
	require.True(t, result.Lots[1].Quantity.Equal(dec("5")))

	lots, err := svc.ListLots(ctx, LotFilter{VariantID: 1})
	require.NoError(t, err)
	require.True(t, lots[0].Remaining.IsZero())
	require.True(t, lots[1].Remaining.Equal(dec("5")))

	stock, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(dec("5")))

	sale := repo.movements[len(repo.movements)-1]
	require.Equal(t, MovementSale, sale.Type)
	require.True(t, sale.TotalCost.Equal(dec("85")))
}

func TestFulfillBreaksReceiptTiesByLotID(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Receive(ctx, receiveInput("4", "2.00", at))
	require.NoError(t, err)
	_, err = svc.Receive(ctx, receiveInput("4", "3.00", at))
	require.NoError(t, err)

	result, err := svc.FulfillFIFO(ctx, FulfillInput{
		VariantID: 1, WarehouseID: 1, BranchID: 1, Quantity: dec("4"), ActorID: 9,
	})
	require.NoError(t, err)
	require.Len(t, result.Lots, 1)
	require.Equal(t, first.ID, result.Lots[0].LotID)
	require.True(t, result.TotalCost.Equal(dec("8")))
}

func TestFulfillInsufficientLotsLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)

	_, err = svc.FulfillFIFO(ctx, FulfillInput{
		VariantID: 1, WarehouseID: 1, BranchID: 1, Quantity: dec("12"), ActorID: 9,
	})
	require.ErrorIs(t, err, ErrInsufficientLots)

	var unmet *InsufficientLotsError
	require.ErrorAs(t, err, &unmet)
	require.True(t, unmet.Unmet.Equal(dec("2")))

	lots, err := svc.ListLots(ctx, LotFilter{VariantID: 1})
	require.NoError(t, err)
	require.True(t, lots[0].Remaining.Equal(dec("10")), "failed fulfilment must not touch lots")

	stock, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(dec("10")))
	require.Len(t, repo.movements, 1, "only the receipt movement remains")
}

func TestAllocateGuardsAvailableQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)

	stock, err := svc.Allocate(ctx, AllocateInput{VariantID: 1, WarehouseID: 1, Quantity: dec("6"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, stock.Reserved.Equal(dec("6")))
	require.True(t, stock.Available().Equal(dec("4")))

	_, err = svc.Allocate(ctx, AllocateInput{VariantID: 1, WarehouseID: 1, Quantity: dec("5"), ActorID: 9})
	require.ErrorIs(t, err, ErrInsufficientStock)

	stock, err = svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Reserved.Equal(dec("6")), "failed allocation must not change reserved")
}

func TestAllocateOverdraftWhenNegativeStockAllowed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, WithNegativeStockAllowed(true))
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)

	stock, err := svc.Allocate(ctx, AllocateInput{VariantID: 1, WarehouseID: 1, Quantity: dec("15"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, stock.Reserved.Equal(dec("15")))
	require.True(t, stock.Available().Equal(dec("-5")))
}

func TestReleaseClampsReservedAtZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, AllocateInput{VariantID: 1, WarehouseID: 1, Quantity: dec("3"), ActorID: 9})
	require.NoError(t, err)

	stock, err := svc.Release(ctx, ReleaseInput{VariantID: 1, WarehouseID: 1, Quantity: dec("5"), ActorID: 9})
	require.NoError(t, err)
	require.True(t, stock.Reserved.IsZero())
}

func TestFulfillClearsReservationAlongWithQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", time.Now()))
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, AllocateInput{VariantID: 1, WarehouseID: 1, Quantity: dec("4"), ActorID: 9})
	require.NoError(t, err)

	_, err = svc.FulfillFIFO(ctx, FulfillInput{
		VariantID: 1, WarehouseID: 1, BranchID: 1, Quantity: dec("4"), ActorID: 9,
	})
	require.NoError(t, err)

	stock, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(dec("6")))
	require.True(t, stock.Reserved.IsZero())
}

func TestStockQuantityEqualsSumOfLotRemainders(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Receive(ctx, receiveInput("10", "5.00", base))
	require.NoError(t, err)
	_, err = svc.Receive(ctx, receiveInput("7.5", "6.40", base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.FulfillFIFO(ctx, FulfillInput{
		VariantID: 1, WarehouseID: 1, BranchID: 1, Quantity: dec("11.25"), ActorID: 9,
	})
	require.NoError(t, err)

	total := decimal.Zero
	for _, l := range repo.lots {
		total = total.Add(l.Remaining)
	}
	stock, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, stock.Quantity.Equal(total), "stock %s, lot sum %s", stock.Quantity, total)
}
