package cheques

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// TxRepository exposes transaction-scoped cheque operations. Ledger gives
// access to ledger writes bound to the same transaction, so the status change
// and its ledger side effect commit or roll back together.
type TxRepository interface {
	InsertCheque(ctx context.Context, cheque Cheque) (Cheque, error)
	GetChequeForUpdate(ctx context.Context, chequeID int64) (Cheque, error)
	UpdateCheque(ctx context.Context, cheque Cheque) error
	InsertHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error)
	Ledger() ledger.TxRepository
	Sequences() sequence.TxSequencer
}

// Repository exposes transactional and read-only cheque access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCheque(ctx context.Context, chequeID int64) (Cheque, error)
	ListCheques(ctx context.Context, filter ListFilter) ([]Cheque, error)
	// History lists transitions oldest first.
	History(ctx context.Context, chequeID int64) ([]HistoryEntry, error)
}
