package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Record posts one entry and updates the account balance atomically.
func (s *Service) Record(ctx context.Context, input RecordInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = PostInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: input.BranchID,
			Action:   "ledger.record",
			Entity:   "ledger_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			After: map[string]any{
				"number": entry.Number,
				"type":   string(entry.Type),
				"debit":  entry.Debit.String(),
				"credit": entry.Credit.String(),
			},
		})
	}
	return entry, nil
}

// Reverse offsets an existing entry with a new REVERSAL entry. The original is
// never mutated beyond its cancellation flag.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Entry, error) {
	if input.EntryID == 0 {
		return Entry{}, ErrEntryNotFound
	}
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = ReverseInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			BranchID: reversal.BranchID,
			Action:   "ledger.reverse",
			Entity:   "ledger_entry",
			EntityID: fmt.Sprintf("%d", input.EntryID),
			After: map[string]any{
				"reversal_id":     reversal.ID,
				"reversal_number": reversal.Number,
				"reason":          input.Reason,
			},
		})
	}
	return reversal, nil
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	return s.repo.List(ctx, filter)
}

// GetEntry loads a single entry.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// AccountBalance returns the cached balance for an account.
func (s *Service) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.CurrentBalance, nil
}

// GetAccount loads an account.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}
