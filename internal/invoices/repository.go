package invoices

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// TxRepository exposes transaction-scoped invoice operations plus handles
// into the ledger and inventory bound to the same transaction, so posting is
// a single unit of work across all three.
type TxRepository interface {
	InsertInvoice(ctx context.Context, invoice Invoice) (Invoice, error)
	InsertLine(ctx context.Context, line Line) (Line, error)
	GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (Invoice, error)
	GetLines(ctx context.Context, invoiceID int64) ([]Line, error)
	UpdateInvoice(ctx context.Context, invoice Invoice) error
	Ledger() ledger.TxRepository
	Inventory() inventory.TxRepository
	Sequences() sequence.TxSequencer
}

// Repository exposes transactional and read-only invoice access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error)
	GetLines(ctx context.Context, invoiceID int64) ([]Line, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
}
