// Package cheques tracks negotiable instruments through a fixed lifecycle.
// Certain transitions emit a ledger entry against the drawer account in the
// same transaction as the status change.
package cheques

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates cheque lifecycle states.
type Status string

const (
	StatusPortfolio  Status = "PORTFOLIO"
	StatusDeposited  Status = "DEPOSITED"
	StatusEndorsed   Status = "ENDORSED"
	StatusCollateral Status = "COLLATERAL"
	StatusCollected  Status = "COLLECTED"
	StatusPaid       Status = "PAID"
	StatusBounced    Status = "BOUNCED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions is the full lifecycle table. COLLECTED, PAID and CANCELLED have
// no outgoing edges; a BOUNCED cheque can only return to the portfolio.
var transitions = map[Status][]Status{
	StatusPortfolio:  {StatusDeposited, StatusEndorsed, StatusCollateral, StatusBounced, StatusCancelled},
	StatusDeposited:  {StatusCollected, StatusBounced, StatusCancelled},
	StatusEndorsed:   {StatusBounced, StatusCancelled},
	StatusCollateral: {StatusPortfolio, StatusBounced, StatusCancelled},
	StatusBounced:    {StatusPortfolio},
	StatusCollected:  {},
	StatusPaid:       {},
	StatusCancelled:  {},
}

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle table allows moving from s to
// target.
func (s Status) CanTransition(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Cheque is one tracked instrument. Amount and drawer account are fixed at
// creation; only the lifecycle fields change afterwards.
type Cheque struct {
	ID              int64
	Number          string
	ChequeNumber    string
	BranchID        int64
	DrawerAccountID int64
	Amount          decimal.Decimal
	Currency        string
	Status          Status
	Payee           string
	EndorsedTo      string
	DueDate         time.Time
	CollectedAt     *time.Time
	BouncedAt       *time.Time
	IsCancelled     bool
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryEntry is one immutable lifecycle transition record.
type HistoryEntry struct {
	ID         int64
	ChequeID   int64
	FromStatus Status
	ToStatus   Status
	ActorID    int64
	Notes      string
	CreatedAt  time.Time
}

var (
	// ErrChequeNotFound indicates a missing cheque.
	ErrChequeNotFound = errors.New("cheques: cheque not found")
	// ErrInvalidStatus indicates a status outside the lifecycle table.
	ErrInvalidStatus = errors.New("cheques: invalid status")
	// ErrInvalidTransition rejects a move the lifecycle table does not allow.
	ErrInvalidTransition = errors.New("cheques: invalid status transition")
)
