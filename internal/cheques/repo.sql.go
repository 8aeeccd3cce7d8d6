package cheques

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// SQLRepository persists cheques in PostgreSQL.
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
			tx:     tx,
			ledger: ledger.NewTxRepository(tx),
			seq:    sequence.NewTx(tx),
		})
	})
}

type txRepository struct {
	tx     pgx.Tx
	ledger ledger.TxRepository
	seq    sequence.TxSequencer
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return r.ledger
}

func (r *txRepository) Sequences() sequence.TxSequencer {
	return r.seq
}

const chequeColumns = `id, document_number, cheque_number, branch_id, drawer_account_id, amount, currency, status, payee, endorsed_to, due_date, collected_at, bounced_at, is_cancelled, created_by, created_at, updated_at`

func scanCheque(row pgx.Row) (Cheque, error) {
	var c Cheque
	err := row.Scan(&c.ID, &c.Number, &c.ChequeNumber, &c.BranchID, &c.DrawerAccountID,
		&c.Amount, &c.Currency, &c.Status, &c.Payee, &c.EndorsedTo, &c.DueDate,
		&c.CollectedAt, &c.BouncedAt, &c.IsCancelled, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *txRepository) InsertCheque(ctx context.Context, cheque Cheque) (Cheque, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO cheques
(document_number, cheque_number, branch_id, drawer_account_id, amount, currency, status, payee, endorsed_to, due_date, is_cancelled, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,FALSE,$11,NOW(),NOW())
RETURNING `+chequeColumns,
		cheque.Number, cheque.ChequeNumber, cheque.BranchID, cheque.DrawerAccountID,
		cheque.Amount, cheque.Currency, string(cheque.Status), cheque.Payee,
		cheque.EndorsedTo, cheque.DueDate, cheque.CreatedBy)
	return scanCheque(row)
}

func (r *txRepository) GetChequeForUpdate(ctx context.Context, chequeID int64) (Cheque, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE id=$1 FOR UPDATE`, chequeID)
	cheque, err := scanCheque(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cheque{}, ErrChequeNotFound
		}
		return Cheque{}, err
	}
	return cheque, nil
}

func (r *txRepository) UpdateCheque(ctx context.Context, cheque Cheque) error {
	tag, err := r.tx.Exec(ctx, `UPDATE cheques
SET status=$2, endorsed_to=$3, collected_at=$4, bounced_at=$5, is_cancelled=$6, updated_at=NOW()
WHERE id=$1`,
		cheque.ID, string(cheque.Status), cheque.EndorsedTo,
		cheque.CollectedAt, cheque.BouncedAt, cheque.IsCancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChequeNotFound
	}
	return nil
}

func (r *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO cheque_history
(cheque_id, from_status, to_status, actor_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id, created_at`,
		entry.ChequeID, string(entry.FromStatus), string(entry.ToStatus), entry.ActorID, entry.Notes)
	err := row.Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}

// GetCheque loads one cheque.
func (r *SQLRepository) GetCheque(ctx context.Context, chequeID int64) (Cheque, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE id=$1`, chequeID)
	cheque, err := scanCheque(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cheque{}, ErrChequeNotFound
		}
		return Cheque{}, err
	}
	return cheque, nil
}

// ListCheques returns cheques matching the filter in creation order.
func (r *SQLRepository) ListCheques(ctx context.Context, filter ListFilter) ([]Cheque, error) {
	query := `SELECT ` + chequeColumns + ` FROM cheques WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.BranchID != 0 {
		query += fmt.Sprintf(" AND branch_id=$%d", idx)
		args = append(args, filter.BranchID)
		idx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status=$%d", idx)
		args = append(args, string(*filter.Status))
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

	cheques := []Cheque{}
	for rows.Next() {
		var c Cheque
		if err := rows.Scan(&c.ID, &c.Number, &c.ChequeNumber, &c.BranchID, &c.DrawerAccountID,
			&c.Amount, &c.Currency, &c.Status, &c.Payee, &c.EndorsedTo, &c.DueDate,
			&c.CollectedAt, &c.BouncedAt, &c.IsCancelled, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cheques = append(cheques, c)
	}
	return cheques, rows.Err()
}

// History lists transitions for one cheque, oldest first.
func (r *SQLRepository) History(ctx context.Context, chequeID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, cheque_id, from_status, to_status, actor_id, notes, created_at
FROM cheque_history WHERE cheque_id=$1 ORDER BY id ASC`, chequeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.ChequeID, &h.FromStatus, &h.ToStatus, &h.ActorID, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
