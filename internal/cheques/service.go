package cheques

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates cheque lifecycle operations.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Create registers a cheque in the portfolio under a CHQ document number.
func (s *Service) Create(ctx context.Context, input CreateInput) (Cheque, error) {
	if err := input.Validate(); err != nil {
		return Cheque{}, err
	}
	var cheque Cheque
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.Sequences().Next(ctx, input.BranchID, sequence.DocCheque)
		if err != nil {
			return err
		}
		cheque, err = tx.InsertCheque(ctx, Cheque{
			Number:          number,
			ChequeNumber:    input.ChequeNumber,
			BranchID:        input.BranchID,
			DrawerAccountID: input.DrawerAccountID,
			Amount:          money.RoundMoney(input.Amount),
			Currency:        input.Currency,
			Status:          StatusPortfolio,
			Payee:           input.Payee,
			DueDate:         input.DueDate,
			CreatedBy:       input.ActorID,
		})
		return err
	})
	if err != nil {
		return Cheque{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: input.BranchID,
			Action:   "cheques.create",
			Entity:   "cheque",
			EntityID: fmt.Sprintf("%d", cheque.ID),
			After: map[string]any{
				"number": cheque.Number,
				"amount": cheque.Amount.String(),
			},
		})
	}
	return cheque, nil
}

// Transition moves a cheque to a new lifecycle status. Status change, history
// row and any ledger side effect commit as one unit; an invalid transition
// fails before any write.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (Cheque, error) {
	if err := input.Validate(); err != nil {
		return Cheque{}, err
	}
	var cheque Cheque
	var from Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		cheque, err = tx.GetChequeForUpdate(ctx, input.ChequeID)
		if err != nil {
			return err
		}
		if cheque.BranchID != input.BranchID {
			// A cheque outside the caller's branch does not exist for them.
			return ErrChequeNotFound
		}
		from = cheque.Status
		if !from.CanTransition(input.To) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, input.To)
		}

		now := s.now()
		cheque.Status = input.To
		switch input.To {
		case StatusEndorsed:
			cheque.EndorsedTo = input.EndorsedTo
		case StatusCollected, StatusPaid:
			cheque.CollectedAt = &now
		case StatusBounced:
			cheque.BouncedAt = &now
		case StatusCancelled:
			cheque.IsCancelled = true
		}
		if err := tx.UpdateCheque(ctx, cheque); err != nil {
			return err
		}

		if _, err := tx.InsertHistory(ctx, HistoryEntry{
			ChequeID:   cheque.ID,
			FromStatus: from,
			ToStatus:   input.To,
			ActorID:    input.ActorID,
			Notes:      input.Notes,
		}); err != nil {
			return err
		}
		return s.postSideEffect(ctx, tx, cheque, input)
	})
	if err != nil {
		return Cheque{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: cheque.BranchID,
			Action:   "cheques.transition",
			Entity:   "cheque",
			EntityID: fmt.Sprintf("%d", cheque.ID),
			Before:   map[string]any{"status": string(from)},
			After:    map[string]any{"status": string(input.To)},
		})
	}
	return cheque, nil
}

// postSideEffect writes the single ledger entry some targets require. Only
// COLLECTED and BOUNCED debit the drawer; ENDORSED credits it. Everything
// else is ledger-silent.
func (s *Service) postSideEffect(ctx context.Context, tx TxRepository, cheque Cheque, input TransitionInput) error {
	record := ledger.RecordInput{
		AccountID:     cheque.DrawerAccountID,
		BranchID:      cheque.BranchID,
		Currency:      cheque.Currency,
		Description:   fmt.Sprintf("cheque %s %s", cheque.Number, input.To),
		ReferenceID:   &cheque.ID,
		ReferenceType: ledger.RefCheque,
		ActorID:       input.ActorID,
	}
	switch input.To {
	case StatusCollected:
		record.Type = ledger.EntryChequeCollect
		record.Debit = cheque.Amount
	case StatusBounced:
		record.Type = ledger.EntryChequeBounce
		record.Debit = cheque.Amount
	case StatusEndorsed:
		record.Type = ledger.EntryChequeEndorse
		record.Credit = cheque.Amount
	default:
		return nil
	}
	_, err := ledger.PostInTx(ctx, tx.Ledger(), record)
	return err
}

// Get loads one cheque.
func (s *Service) Get(ctx context.Context, chequeID int64) (Cheque, error) {
	return s.repo.GetCheque(ctx, chequeID)
}

// List returns cheques matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Cheque, error) {
	return s.repo.ListCheques(ctx, filter)
}

// History lists a cheque's transitions oldest first.
func (s *Service) History(ctx context.Context, chequeID int64) ([]HistoryEntry, error) {
	if _, err := s.repo.GetCheque(ctx, chequeID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, chequeID)
}
