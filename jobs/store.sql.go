package jobs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLIntegrityStore runs the integrity comparisons directly in PostgreSQL.
type SQLIntegrityStore struct {
	pool *pgxpool.Pool
}

// NewSQLIntegrityStore constructs SQLIntegrityStore.
func NewSQLIntegrityStore(pool *pgxpool.Pool) *SQLIntegrityStore {
	return &SQLIntegrityStore{pool: pool}
}

// LedgerDrift returns accounts whose cached balance disagrees with the signed
// sum of their non-cancelled entries.
func (s *SQLIntegrityStore) LedgerDrift(ctx context.Context) ([]LedgerDrift, error) {
	rows, err := s.pool.Query(ctx, `
SELECT a.id, a.current_balance, COALESCE(SUM(e.debit - e.credit), 0) AS computed
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id AND NOT e.is_cancelled
GROUP BY a.id, a.current_balance
HAVING a.current_balance <> COALESCE(SUM(e.debit - e.credit), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := []LedgerDrift{}
	for rows.Next() {
		var d LedgerDrift
		if err := rows.Scan(&d.AccountID, &d.Cached, &d.Computed); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// InventoryDrift returns variant/warehouse pairs whose stock quantity
// disagrees with the sum of their lot remainders.
func (s *SQLIntegrityStore) InventoryDrift(ctx context.Context) ([]InventoryDrift, error) {
	rows, err := s.pool.Query(ctx, `
SELECT s.variant_id, s.warehouse_id, s.quantity, COALESCE(SUM(l.remaining), 0) AS lot_sum
FROM stock s
LEFT JOIN inventory_lots l ON l.variant_id = s.variant_id AND l.warehouse_id = s.warehouse_id
GROUP BY s.variant_id, s.warehouse_id, s.quantity
HAVING s.quantity <> COALESCE(SUM(l.remaining), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := []InventoryDrift{}
	for rows.Next() {
		var d InventoryDrift
		if err := rows.Scan(&d.VariantID, &d.WarehouseID, &d.Stock, &d.LotSum); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}
