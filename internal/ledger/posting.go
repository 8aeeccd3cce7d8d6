package ledger

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PostInTx validates and posts one entry inside an open transaction, updating
// the account balance by the entry's signed amount. Cheque transitions and
// invoice posting call this with their own TxRepository so the ledger write
// shares their unit of work.
func PostInTx(ctx context.Context, tx TxRepository, in RecordInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	in = in.normalized()

	account, err := tx.GetAccount(ctx, in.AccountID)
	if err != nil {
		return Entry{}, err
	}
	if account.BranchID != 0 && account.BranchID != in.BranchID {
		return Entry{}, shared.ErrBranchMismatch
	}

	number, err := tx.Sequences().Next(ctx, in.BranchID, sequence.DocLedger)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Number:        number,
		AccountID:     in.AccountID,
		BranchID:      in.BranchID,
		Type:          in.Type,
		Debit:         in.Debit,
		Credit:        in.Credit,
		Currency:      in.Currency,
		ExchangeRate:  in.ExchangeRate,
		CostCenter:    in.CostCenter,
		Description:   in.Description,
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
		CreatedBy:     in.ActorID,
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.ApplyAccountBalance(ctx, in.AccountID, inserted.Signed()); err != nil {
		return Entry{}, err
	}
	return inserted, nil
}

// ReverseInTx creates the offsetting entry for entryID and marks the original
// cancelled. The reversal is inserted already cancelled: the pair nets to zero,
// so the balance projection over non-cancelled entries stays exact after the
// opposite signed amount is applied.
func ReverseInTx(ctx context.Context, tx TxRepository, in ReverseInput) (Entry, error) {
	original, err := tx.GetEntryForUpdate(ctx, in.EntryID)
	if err != nil {
		return Entry{}, err
	}
	if original.IsCancelled {
		return Entry{}, ErrAlreadyReversed
	}

	number, err := tx.Sequences().Next(ctx, original.BranchID, sequence.DocLedger)
	if err != nil {
		return Entry{}, err
	}

	description := in.Reason
	if description == "" {
		description = fmt.Sprintf("Reversal of %s", original.Number)
	}
	originalID := original.ID
	reversal := Entry{
		Number:        number,
		AccountID:     original.AccountID,
		BranchID:      original.BranchID,
		Type:          EntryReversal,
		Debit:         original.Credit,
		Credit:        original.Debit,
		Currency:      original.Currency,
		ExchangeRate:  original.ExchangeRate,
		CostCenter:    original.CostCenter,
		Description:   description,
		ReferenceID:   &originalID,
		ReferenceType: RefLedgerEntry,
		IsCancelled:   true,
		CreatedBy:     in.ActorID,
	}
	inserted, err := tx.InsertEntry(ctx, reversal)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.MarkEntryCancelled(ctx, original.ID); err != nil {
		return Entry{}, err
	}
	if err := tx.ApplyAccountBalance(ctx, original.AccountID, original.Signed().Neg()); err != nil {
		return Entry{}, err
	}
	return inserted, nil
}
