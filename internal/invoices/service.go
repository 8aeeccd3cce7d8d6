package invoices

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the invoice flow. CogsAccountID is the account the
// weighted cost of fulfilled stock is booked against at posting.
type Service struct {
	repo          Repository
	audit         AuditPort
	cogsAccountID int64
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort, cogsAccountID int64) *Service {
	return &Service{repo: repo, audit: audit, cogsAccountID: cogsAccountID}
}

// Create stores a draft invoice under an INV document number. Totals are
// computed line by line with half-up money rounding; nothing touches the
// ledger or stock until posting.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if err := input.Validate(); err != nil {
		return Invoice{}, err
	}

	grandTotal := decimal.Zero
	lines := make([]Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		quantity := money.RoundQuantity(in.Quantity)
		unitPrice := money.RoundMoney(in.UnitPrice)
		lineTotal := money.LineCost(quantity, unitPrice)
		grandTotal = grandTotal.Add(lineTotal)
		lines = append(lines, Line{
			VariantID:   in.VariantID,
			WarehouseID: in.WarehouseID,
			Description: in.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}

	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.Sequences().Next(ctx, input.BranchID, sequence.DocInvoice)
		if err != nil {
			return err
		}
		invoice, err = tx.InsertInvoice(ctx, Invoice{
			Number:            number,
			BranchID:          input.BranchID,
			CustomerAccountID: input.CustomerAccountID,
			Currency:          input.Currency,
			Status:            StatusDraft,
			GrandTotal:        grandTotal,
			TotalCost:         decimal.Zero,
			CreatedBy:         input.ActorID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			line.InvoiceID = invoice.ID
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: input.BranchID,
			Action:   "invoices.create",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", invoice.ID),
			After: map[string]any{
				"number":      invoice.Number,
				"grand_total": invoice.GrandTotal.String(),
			},
		})
	}
	return invoice, nil
}

// Post moves a draft to POSTED in one transaction: the receivable entry for
// the grand total, FIFO fulfilment of every stock line, and one cost entry
// for the weighted cost of the consumed lots. Any failure rolls the whole
// posting back. Invoices outside the caller's branch read as not found.
func (s *Service) Post(ctx context.Context, invoiceID, branchID, actorID int64) (Invoice, error) {
	if invoiceID == 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.BranchID != branchID {
			return ErrInvoiceNotFound
		}
		if invoice.Status != StatusDraft {
			return ErrNotDraft
		}
		lines, err := tx.GetLines(ctx, invoiceID)
		if err != nil {
			return err
		}

		entry, err := ledger.PostInTx(ctx, tx.Ledger(), ledger.RecordInput{
			AccountID:     invoice.CustomerAccountID,
			BranchID:      invoice.BranchID,
			Type:          ledger.EntryInvoice,
			Debit:         invoice.GrandTotal,
			Currency:      invoice.Currency,
			Description:   fmt.Sprintf("invoice %s", invoice.Number),
			ReferenceID:   &invoice.ID,
			ReferenceType: ledger.RefInvoice,
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		invoice.EntryID = &entry.ID

		totalCost := decimal.Zero
		for _, line := range lines {
			if !line.IsStock() {
				continue
			}
			result, err := inventory.FulfillInTx(ctx, tx.Inventory(), inventory.FulfillInput{
				VariantID:     line.VariantID,
				WarehouseID:   line.WarehouseID,
				BranchID:      invoice.BranchID,
				Quantity:      line.Quantity,
				ReferenceID:   &invoice.ID,
				ReferenceType: ledger.RefInvoice,
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
			totalCost = totalCost.Add(result.TotalCost)
		}
		invoice.TotalCost = totalCost

		if totalCost.IsPositive() {
			cogs, err := ledger.PostInTx(ctx, tx.Ledger(), ledger.RecordInput{
				AccountID:     s.cogsAccountID,
				BranchID:      invoice.BranchID,
				Type:          ledger.EntryAdjustment,
				Debit:         totalCost,
				Currency:      invoice.Currency,
				Description:   fmt.Sprintf("cost of goods, invoice %s", invoice.Number),
				ReferenceID:   &invoice.ID,
				ReferenceType: ledger.RefInvoice,
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
			invoice.CogsEntryID = &cogs.ID
		}

		invoice.Status = StatusPosted
		return tx.UpdateInvoice(ctx, invoice)
	})
	if err != nil {
		return Invoice{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			BranchID: invoice.BranchID,
			Action:   "invoices.post",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", invoice.ID),
			After: map[string]any{
				"number":      invoice.Number,
				"grand_total": invoice.GrandTotal.String(),
				"total_cost":  invoice.TotalCost.String(),
			},
		})
	}
	return invoice, nil
}

// Cancel voids an invoice. A posted invoice has its ledger entries reversed
// so the customer balance returns to its pre-invoice value; a draft is simply
// marked. Already-cancelled invoices are rejected before any write. Invoices
// outside the caller's branch read as not found.
func (s *Service) Cancel(ctx context.Context, invoiceID, branchID, actorID int64, reason string) (Invoice, error) {
	if invoiceID == 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.BranchID != branchID {
			return ErrInvoiceNotFound
		}
		if invoice.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if invoice.Status == StatusPosted {
			if invoice.EntryID != nil {
				if _, err := ledger.ReverseInTx(ctx, tx.Ledger(), ledger.ReverseInput{
					EntryID: *invoice.EntryID,
					ActorID: actorID,
					Reason:  reason,
				}); err != nil {
					return err
				}
			}
			if invoice.CogsEntryID != nil {
				if _, err := ledger.ReverseInTx(ctx, tx.Ledger(), ledger.ReverseInput{
					EntryID: *invoice.CogsEntryID,
					ActorID: actorID,
					Reason:  reason,
				}); err != nil {
					return err
				}
			}
		}
		invoice.Status = StatusCancelled
		return tx.UpdateInvoice(ctx, invoice)
	})
	if err != nil {
		return Invoice{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			BranchID: invoice.BranchID,
			Action:   "invoices.cancel",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", invoice.ID),
			After: map[string]any{
				"number": invoice.Number,
				"reason": reason,
			},
		})
	}
	return invoice, nil
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, invoiceID)
}

// GetLines loads the lines of one invoice.
func (s *Service) GetLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	return s.repo.GetLines(ctx, invoiceID)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	return s.repo.List(ctx, filter)
}
