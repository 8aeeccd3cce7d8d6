package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// SQLRepository persists inventory data in PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs SQLRepository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx  pgx.Tx
	seq sequence.TxSequencer
}

// NewTxRepository binds inventory writes to an open transaction. Invoice
// posting uses this so lot consumption commits or rolls back with the
// document that caused it.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, seq: sequence.NewTx(tx)}
}

func (r *txRepository) Sequences() sequence.TxSequencer {
	return r.seq
}

const lotColumns = `id, variant_id, warehouse_id, branch_id, batch_number, quantity, remaining, unit_cost, received_at, created_at`

func scanLot(row pgx.Row) (Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.VariantID, &l.WarehouseID, &l.BranchID, &l.BatchNumber,
		&l.Quantity, &l.Remaining, &l.UnitCost, &l.ReceivedAt, &l.CreatedAt)
	return l, err
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (Lot, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO inventory_lots
(variant_id, warehouse_id, branch_id, batch_number, quantity, remaining, unit_cost, received_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
RETURNING `+lotColumns,
		lot.VariantID, lot.WarehouseID, lot.BranchID, lot.BatchNumber,
		lot.Quantity, lot.Remaining, lot.UnitCost, lot.ReceivedAt)
	return scanLot(row)
}

// LotsForUpdate locks all open lots for the pair in FIFO order. The lock
// serialises concurrent fulfilments of the same variant and warehouse.
func (r *txRepository) LotsForUpdate(ctx context.Context, variantID, warehouseID int64) ([]Lot, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lotColumns+` FROM inventory_lots
WHERE variant_id=$1 AND warehouse_id=$2 AND remaining > 0
ORDER BY received_at ASC, id ASC
FOR UPDATE`, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots := []Lot{}
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.VariantID, &l.WarehouseID, &l.BranchID, &l.BatchNumber,
			&l.Quantity, &l.Remaining, &l.UnitCost, &l.ReceivedAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *txRepository) UpdateLotRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_lots SET remaining=$2 WHERE id=$1`, lotID, remaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, variantID, warehouseID int64) (Stock, error) {
	var s Stock
	err := r.tx.QueryRow(ctx, `SELECT variant_id, warehouse_id, quantity, reserved, updated_at
FROM stock WHERE variant_id=$1 AND warehouse_id=$2 FOR UPDATE`, variantID, warehouseID).
		Scan(&s.VariantID, &s.WarehouseID, &s.Quantity, &s.Reserved, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func (r *txRepository) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock (variant_id, warehouse_id, quantity, reserved, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (variant_id, warehouse_id)
DO UPDATE SET quantity=EXCLUDED.quantity, reserved=EXCLUDED.reserved, updated_at=NOW()`,
		stock.VariantID, stock.WarehouseID, stock.Quantity, stock.Reserved)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (Movement, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO inventory_movements
(code, movement_type, variant_id, warehouse_id, branch_id, quantity, unit_cost, total_cost, lot_id, reference_id, reference_type, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
RETURNING id, created_at`,
		movement.Code, string(movement.Type), movement.VariantID, movement.WarehouseID, movement.BranchID,
		movement.Quantity, movement.UnitCost, movement.TotalCost, movement.LotID,
		movement.ReferenceID, movement.ReferenceType, movement.CreatedBy)
	err := row.Scan(&movement.ID, &movement.CreatedAt)
	return movement, err
}

// GetStock returns the summary row for a (variant, warehouse) pair.
func (r *SQLRepository) GetStock(ctx context.Context, variantID, warehouseID int64) (Stock, error) {
	var s Stock
	err := r.pool.QueryRow(ctx, `SELECT variant_id, warehouse_id, quantity, reserved, updated_at
FROM stock WHERE variant_id=$1 AND warehouse_id=$2`, variantID, warehouseID).
		Scan(&s.VariantID, &s.WarehouseID, &s.Quantity, &s.Reserved, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

// ListLots returns lots matching the filter in FIFO order.
func (r *SQLRepository) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventory_lots WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(clause string, value any) {
		query += fmt.Sprintf(" AND %s=$%d", clause, idx)
		args = append(args, value)
		idx++
	}
	if filter.VariantID != 0 {
		add("variant_id", filter.VariantID)
	}
	if filter.WarehouseID != 0 {
		add("warehouse_id", filter.WarehouseID)
	}
	if filter.OnlyOpen {
		query += " AND remaining > 0"
	}
	limit := shared.ClampLimit(filter.Limit, 200, 1000)
	query += fmt.Sprintf(" ORDER BY received_at ASC, id ASC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots := []Lot{}
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.VariantID, &l.WarehouseID, &l.BranchID, &l.BatchNumber,
			&l.Quantity, &l.Remaining, &l.UnitCost, &l.ReceivedAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}
