// Package invoices implements the AR invoice flow. Posting an invoice writes
// its receivable entry, consumes stock oldest-lot-first and books the weighted
// cost, all in one transaction; cancellation reverses the posted entries.
package invoices

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// Invoice is one AR document. EntryID and CogsEntryID are set at posting and
// identify the ledger entries a cancellation must reverse.
type Invoice struct {
	ID                int64
	Number            string
	BranchID          int64
	CustomerAccountID int64
	Currency          string
	Status            Status
	GrandTotal        decimal.Decimal
	TotalCost         decimal.Decimal
	EntryID           *int64
	CogsEntryID       *int64
	CreatedBy         int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Line is one invoice line. A line with VariantID set is a stock line and is
// fulfilled from lots at posting; other lines are service charges.
type Line struct {
	ID          int64
	InvoiceID   int64
	VariantID   int64
	WarehouseID int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// IsStock reports whether the line consumes inventory.
func (l Line) IsStock() bool {
	return l.VariantID != 0
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("invoices: invoice not found")
	// ErrNotDraft rejects posting an invoice that already left DRAFT.
	ErrNotDraft = errors.New("invoices: invoice is not a draft")
	// ErrAlreadyCancelled rejects cancelling twice.
	ErrAlreadyCancelled = errors.New("invoices: invoice already cancelled")
	// ErrNoLines rejects an invoice without lines.
	ErrNoLines = errors.New("invoices: at least one line required")
)
