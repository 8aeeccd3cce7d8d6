package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// TxRepository is the transaction-scoped handle for ledger writes. It is
// passed by reference into every sub-operation so that entry, balance and
// sequence writes share one atomic unit of work.
type TxRepository interface {
	GetAccount(ctx context.Context, accountID int64) (Account, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	GetEntryForUpdate(ctx context.Context, entryID int64) (Entry, error)
	MarkEntryCancelled(ctx context.Context, entryID int64) error
	// ApplyAccountBalance adds delta to the cached balance as a single
	// in-database increment, never a read-compute-write pair.
	ApplyAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
	Sequences() sequence.TxSequencer
}

// Repository exposes transactional and read-only ledger access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, entryID int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	GetAccount(ctx context.Context, accountID int64) (Account, error)
}
