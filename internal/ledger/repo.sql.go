package ledger

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

// SQLRepository persists ledger data in PostgreSQL.
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

// NewTxRepository binds ledger writes to an open transaction. Other modules
// (cheques, invoices) use this to emit ledger side effects atomically with
// their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, seq: sequence.NewTx(tx)}
}

func (r *txRepository) Sequences() sequence.TxSequencer {
	return r.seq
}

const entryColumns = `id, entry_number, account_id, branch_id, entry_type, debit, credit, currency, exchange_rate, cost_center, description, reference_id, reference_type, is_cancelled, created_by, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Number, &e.AccountID, &e.BranchID, &e.Type, &e.Debit, &e.Credit,
		&e.Currency, &e.ExchangeRate, &e.CostCenter, &e.Description, &e.ReferenceID, &e.ReferenceType,
		&e.IsCancelled, &e.CreatedBy, &e.CreatedAt)
	return e, err
}

func (r *txRepository) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	return getAccount(ctx, r.tx, accountID)
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(entry_number, account_id, branch_id, entry_type, debit, credit, currency, exchange_rate, cost_center, description, reference_id, reference_type, is_cancelled, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
RETURNING `+entryColumns,
		entry.Number, entry.AccountID, entry.BranchID, string(entry.Type), entry.Debit, entry.Credit,
		entry.Currency, entry.ExchangeRate, entry.CostCenter, entry.Description,
		entry.ReferenceID, entry.ReferenceType, entry.IsCancelled, entry.CreatedBy)
	return scanEntry(row)
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1 FOR UPDATE`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkEntryCancelled(ctx context.Context, entryID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET is_cancelled=TRUE WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) ApplyAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getAccount(ctx context.Context, q queryer, accountID int64) (Account, error) {
	var a Account
	err := q.QueryRow(ctx, `SELECT id, code, name, branch_id, currency, current_balance, created_at, updated_at FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.BranchID, &a.Currency, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *SQLRepository) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	return getAccount(ctx, r.pool, accountID)
}

func (r *SQLRepository) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// List returns entries matching the filter in creation order.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(clause string, value any) {
		query += fmt.Sprintf(" AND %s=$%d", clause, idx)
		args = append(args, value)
		idx++
	}
	if filter.AccountID != nil {
		add("account_id", *filter.AccountID)
	}
	if filter.BranchID != nil {
		add("branch_id", *filter.BranchID)
	}
	if filter.Type != nil {
		add("entry_type", string(*filter.Type))
	}
	if filter.ReferenceID != nil {
		add("reference_id", *filter.ReferenceID)
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, filter.To)
		idx++
	}
	limit := shared.ClampLimit(filter.Limit, 200, 1000)
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Number, &e.AccountID, &e.BranchID, &e.Type, &e.Debit, &e.Credit,
			&e.Currency, &e.ExchangeRate, &e.CostCenter, &e.Description, &e.ReferenceID, &e.ReferenceType,
			&e.IsCancelled, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
