package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// SQLRepository persists invoices in PostgreSQL.
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
		return fn(ctx, &txRepository{
			tx:        tx,
			ledger:    ledger.NewTxRepository(tx),
			inventory: inventory.NewTxRepository(tx),
			seq:       sequence.NewTx(tx),
		})
	})
}

type txRepository struct {
	tx        pgx.Tx
	ledger    ledger.TxRepository
	inventory inventory.TxRepository
	seq       sequence.TxSequencer
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return r.ledger
}

func (r *txRepository) Inventory() inventory.TxRepository {
	return r.inventory
}

func (r *txRepository) Sequences() sequence.TxSequencer {
	return r.seq
}

const invoiceColumns = `id, invoice_number, branch_id, customer_account_id, currency, status, grand_total, total_cost, entry_id, cogs_entry_id, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.BranchID, &inv.CustomerAccountID, &inv.Currency,
		&inv.Status, &inv.GrandTotal, &inv.TotalCost, &inv.EntryID, &inv.CogsEntryID,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, invoice Invoice) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoices
(invoice_number, branch_id, customer_account_id, currency, status, grand_total, total_cost, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
RETURNING `+invoiceColumns,
		invoice.Number, invoice.BranchID, invoice.CustomerAccountID, invoice.Currency,
		string(invoice.Status), invoice.GrandTotal, invoice.TotalCost, invoice.CreatedBy)
	return scanInvoice(row)
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (Line, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO invoice_lines
(invoice_id, variant_id, warehouse_id, description, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`,
		line.InvoiceID, line.VariantID, line.WarehouseID, line.Description,
		line.Quantity, line.UnitPrice, line.LineTotal)
	err := row.Scan(&line.ID)
	return line, err
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

func (r *txRepository) GetLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	return queryLines(ctx, r.tx, invoiceID)
}

func (r *txRepository) UpdateInvoice(ctx context.Context, invoice Invoice) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices
SET status=$2, entry_id=$3, cogs_entry_id=$4, total_cost=$5, updated_at=NOW()
WHERE id=$1`,
		invoice.ID, string(invoice.Status), invoice.EntryID, invoice.CogsEntryID, invoice.TotalCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, variant_id, warehouse_id, description, quantity, unit_price, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.VariantID, &l.WarehouseID,
			&l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetInvoice loads one invoice.
func (r *SQLRepository) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, invoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

// GetLines loads the lines of one invoice.
func (r *SQLRepository) GetLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	return queryLines(ctx, r.pool, invoiceID)
}

// List returns invoices matching the filter in creation order.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(clause string, value any) {
		query += fmt.Sprintf(" AND %s=$%d", clause, idx)
		args = append(args, value)
		idx++
	}
	if filter.BranchID != 0 {
		add("branch_id", filter.BranchID)
	}
	if filter.CustomerAccountID != 0 {
		add("customer_account_id", filter.CustomerAccountID)
	}
	if filter.Status != nil {
		add("status", string(*filter.Status))
	}
	limit := shared.ClampLimit(filter.Limit, 200, 1000)
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.BranchID, &inv.CustomerAccountID, &inv.Currency,
			&inv.Status, &inv.GrandTotal, &inv.TotalCost, &inv.EntryID, &inv.CogsEntryID,
			&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
