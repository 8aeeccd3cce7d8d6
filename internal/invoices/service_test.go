package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

const (
	customerAccountID = int64(1)
	cogsAccountID     = int64(2)
)

type stockKey struct {
	variantID   int64
	warehouseID int64
}

type memoryRepo struct {
	invoices  []Invoice
	lines     []Line
	accounts  map[int64]ledger.Account
	entries   []ledger.Entry
	lots      []inventory.Lot
	stocks    map[stockKey]inventory.Stock
	movements []inventory.Movement
	counters  map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: map[int64]ledger.Account{
			customerAccountID: {ID: customerAccountID, Code: "120.1", Name: "Trade Receivable", BranchID: 1, Currency: "USD"},
			cogsAccountID:     {ID: cogsAccountID, Code: "621.1", Name: "Cost of Goods Sold", BranchID: 1, Currency: "USD"},
		},
		stocks:   make(map[stockKey]inventory.Stock),
		counters: make(map[string]int64),
	}
}

func (r *memoryRepo) snapshot() *memoryRepo {
	clone := &memoryRepo{
		invoices:  append([]Invoice(nil), r.invoices...),
		lines:     append([]Line(nil), r.lines...),
		accounts:  make(map[int64]ledger.Account, len(r.accounts)),
		entries:   append([]ledger.Entry(nil), r.entries...),
		lots:      append([]inventory.Lot(nil), r.lots...),
		stocks:    make(map[stockKey]inventory.Stock, len(r.stocks)),
		movements: append([]inventory.Movement(nil), r.movements...),
		counters:  make(map[string]int64, len(r.counters)),
		nextID:    r.nextID,
	}
	for k, v := range r.accounts {
		clone.accounts[k] = v
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
	r.invoices = snap.invoices
	r.lines = snap.lines
	r.accounts = snap.accounts
	r.entries = snap.entries
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

func (r *memoryRepo) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error) {
	for _, inv := range r.invoices {
		if inv.ID == invoiceID {
			return inv, nil
		}
	}
	return Invoice{}, ErrInvoiceNotFound
}

func (r *memoryRepo) GetLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	out := []Line{}
	for _, l := range r.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	out := []Invoice{}
	for _, inv := range r.invoices {
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, invoice Invoice) (Invoice, error) {
	tx.repo.nextID++
	invoice.ID = tx.repo.nextID
	tx.repo.invoices = append(tx.repo.invoices, invoice)
	return invoice, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line Line) (Line, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.lines = append(tx.repo.lines, line)
	return line, nil
}

func (tx *memoryTx) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error) {
	return tx.repo.GetInvoice(ctx, invoiceID)
}

func (tx *memoryTx) GetLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	return tx.repo.GetLines(ctx, invoiceID)
}

func (tx *memoryTx) UpdateInvoice(ctx context.Context, invoice Invoice) error {
	for i := range tx.repo.invoices {
		if tx.repo.invoices[i].ID == invoice.ID {
			tx.repo.invoices[i] = invoice
			return nil
		}
	}
	return ErrInvoiceNotFound
}

func (tx *memoryTx) Ledger() ledger.TxRepository {
	return &memoryLedgerTx{repo: tx.repo}
}

func (tx *memoryTx) Inventory() inventory.TxRepository {
	return &memoryInventoryTx{repo: tx.repo}
}

func (tx *memoryTx) Sequences() sequence.TxSequencer {
	return &memorySequencer{repo: tx.repo}
}

type memoryLedgerTx struct {
	repo *memoryRepo
}

func (tx *memoryLedgerTx) GetAccount(ctx context.Context, accountID int64) (ledger.Account, error) {
	account, ok := tx.repo.accounts[accountID]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (tx *memoryLedgerTx) InsertEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry, nil
}

func (tx *memoryLedgerTx) GetEntryForUpdate(ctx context.Context, entryID int64) (ledger.Entry, error) {
	for _, e := range tx.repo.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (tx *memoryLedgerTx) MarkEntryCancelled(ctx context.Context, entryID int64) error {
	for i := range tx.repo.entries {
		if tx.repo.entries[i].ID == entryID {
			tx.repo.entries[i].IsCancelled = true
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (tx *memoryLedgerTx) ApplyAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	account, ok := tx.repo.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	account.CurrentBalance = account.CurrentBalance.Add(delta)
	tx.repo.accounts[accountID] = account
	return nil
}

func (tx *memoryLedgerTx) Sequences() sequence.TxSequencer {
	return &memorySequencer{repo: tx.repo}
}

type memoryInventoryTx struct {
	repo *memoryRepo
}

func (tx *memoryInventoryTx) InsertLot(ctx context.Context, lot inventory.Lot) (inventory.Lot, error) {
	tx.repo.nextID++
	lot.ID = tx.repo.nextID
	tx.repo.lots = append(tx.repo.lots, lot)
	return lot, nil
}

func (tx *memoryInventoryTx) LotsForUpdate(ctx context.Context, variantID, warehouseID int64) ([]inventory.Lot, error) {
	out := []inventory.Lot{}
	for _, l := range tx.repo.lots {
		if l.VariantID == variantID && l.WarehouseID == warehouseID && l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *memoryInventoryTx) UpdateLotRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error {
	for i := range tx.repo.lots {
		if tx.repo.lots[i].ID == lotID {
			tx.repo.lots[i].Remaining = remaining
			return nil
		}
	}
	return fmt.Errorf("lot %d not found", lotID)
}

func (tx *memoryInventoryTx) GetStockForUpdate(ctx context.Context, variantID, warehouseID int64) (inventory.Stock, error) {
	stock, ok := tx.repo.stocks[stockKey{variantID, warehouseID}]
	if !ok {
		return inventory.Stock{}, inventory.ErrStockNotFound
	}
	return stock, nil
}

func (tx *memoryInventoryTx) UpsertStock(ctx context.Context, stock inventory.Stock) error {
	tx.repo.stocks[stockKey{stock.VariantID, stock.WarehouseID}] = stock
	return nil
}

func (tx *memoryInventoryTx) InsertMovement(ctx context.Context, movement inventory.Movement) (inventory.Movement, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func (tx *memoryInventoryTx) Sequences() sequence.TxSequencer {
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

// addLot seeds a lot and its stock row directly.
func (r *memoryRepo) addLot(qty, cost string, at time.Time) {
	r.nextID++
	q := dec(qty)
	r.lots = append(r.lots, inventory.Lot{
		ID: r.nextID, VariantID: 1, WarehouseID: 1, BranchID: 1,
		Quantity: q, Remaining: q, UnitCost: dec(cost), ReceivedAt: at,
	})
	key := stockKey{1, 1}
	stock, ok := r.stocks[key]
	if !ok {
		stock = inventory.Stock{VariantID: 1, WarehouseID: 1, Quantity: decimal.Zero, Reserved: decimal.Zero}
	}
	stock.Quantity = stock.Quantity.Add(q)
	r.stocks[key] = stock
}

func createInput() CreateInput {
	return CreateInput{
		BranchID:          1,
		CustomerAccountID: customerAccountID,
		Currency:          "USD",
		Lines: []LineInput{
			{VariantID: 1, WarehouseID: 1, Description: "steel rod 12mm", Quantity: dec("15"), UnitPrice: dec("9.50")},
			{Description: "delivery", Quantity: dec("1"), UnitPrice: dec("20.00")},
		},
		ActorID: 9,
	}
}

func TestCreateDraftComputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, cogsAccountID)

	invoice, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	require.Equal(t, "INV-2026-00001", invoice.Number)
	require.Equal(t, StatusDraft, invoice.Status)
	require.True(t, invoice.GrandTotal.Equal(dec("162.50")), "15*9.50 + 20, got %s", invoice.GrandTotal)
	require.Empty(t, repo.entries, "draft touches neither ledger nor stock")
	require.Empty(t, repo.movements)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	in := createInput()
	in.Lines = nil
	_, err := svc.Create(ctx, in)
	require.ErrorIs(t, err, ErrNoLines)

	in = createInput()
	in.Lines[0].Quantity = dec("0")
	_, err = svc.Create(ctx, in)
	require.Error(t, err)

	in = createInput()
	in.Lines[0].WarehouseID = 0
	_, err = svc.Create(ctx, in)
	require.Error(t, err)

	require.Empty(t, repo.invoices)
}

func TestPostWritesLedgerAndConsumesStock(t *testing.T) {
	repo := newMemoryRepo()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	repo.addLot("10", "5.00", base)
	repo.addLot("10", "7.00", base.Add(24*time.Hour))
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	posted, err := svc.Post(ctx, invoice.ID, 1, 9)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.True(t, posted.TotalCost.Equal(dec("85")), "FIFO cost of 15 units, got %s", posted.TotalCost)
	require.NotNil(t, posted.EntryID)
	require.NotNil(t, posted.CogsEntryID)

	require.Len(t, repo.entries, 2)
	require.Equal(t, ledger.EntryInvoice, repo.entries[0].Type)
	require.True(t, repo.entries[0].Debit.Equal(dec("162.50")))
	require.Equal(t, ledger.EntryAdjustment, repo.entries[1].Type)
	require.True(t, repo.entries[1].Debit.Equal(dec("85")))
	require.Equal(t, cogsAccountID, repo.entries[1].AccountID)

	require.True(t, repo.accounts[customerAccountID].CurrentBalance.Equal(dec("162.50")))
	require.True(t, repo.accounts[cogsAccountID].CurrentBalance.Equal(dec("85")))

	require.True(t, repo.lots[0].Remaining.IsZero())
	require.True(t, repo.lots[1].Remaining.Equal(dec("5")))
	require.True(t, repo.stocks[stockKey{1, 1}].Quantity.Equal(dec("5")))
}

func TestPostRequiresDraft(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLot("20", "5.00", time.Now())
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)
	_, err = svc.Post(ctx, invoice.ID, 1, 9)
	require.NoError(t, err)

	_, err = svc.Post(ctx, invoice.ID, 1, 9)
	require.ErrorIs(t, err, ErrNotDraft)
	require.Len(t, repo.entries, 2, "repeated posting must not duplicate entries")
}

func TestPostAndCancelHideForeignBranchInvoice(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLot("20", "5.00", time.Now())
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	_, err = svc.Post(ctx, invoice.ID, 2, 9)
	require.ErrorIs(t, err, ErrInvoiceNotFound, "foreign-branch invoices read as not found")

	_, err = svc.Cancel(ctx, invoice.ID, 2, 9, "wrong branch")
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	reloaded, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, reloaded.Status)
	require.Empty(t, repo.entries)
	require.True(t, repo.lots[0].Remaining.Equal(dec("20")))
}

func TestPostRollsBackWhenLotsRunOut(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLot("10", "5.00", time.Now())
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	_, err = svc.Post(ctx, invoice.ID, 1, 9)
	require.ErrorIs(t, err, inventory.ErrInsufficientLots)

	reloaded, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, reloaded.Status, "failed posting leaves the draft untouched")
	require.Empty(t, repo.entries, "the receivable entry must roll back with the fulfilment")
	require.True(t, repo.accounts[customerAccountID].CurrentBalance.IsZero())
	require.True(t, repo.lots[0].Remaining.Equal(dec("10")))
}

func TestCancelRestoresBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLot("20", "5.00", time.Now())
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)
	_, err = svc.Post(ctx, invoice.ID, 1, 9)
	require.NoError(t, err)
	require.True(t, repo.accounts[customerAccountID].CurrentBalance.Equal(dec("162.50")))

	cancelled, err := svc.Cancel(ctx, invoice.ID, 1, 9, "customer refused delivery")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	require.True(t, repo.accounts[customerAccountID].CurrentBalance.IsZero(), "balance returns to its pre-invoice value")
	require.True(t, repo.accounts[cogsAccountID].CurrentBalance.IsZero())

	reversals := 0
	for _, e := range repo.entries {
		if e.Type == ledger.EntryReversal {
			reversals++
			require.True(t, e.IsCancelled)
		}
	}
	require.Equal(t, 2, reversals)
}

func TestCancelRejectsSecondAttempt(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, invoice.ID, 1, 9, "duplicate")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, invoice.ID, 1, 9, "duplicate")
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelDraftSkipsLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, cogsAccountID)
	ctx := context.Background()

	invoice, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, invoice.ID, 1, 9, "entry error")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Empty(t, repo.entries)
}
