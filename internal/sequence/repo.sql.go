package sequence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// TxSequencer allocates document numbers inside an already-open transaction.
// The increment commits or rolls back with that transaction.
type TxSequencer interface {
	Next(ctx context.Context, branchID int64, doc DocType) (string, error)
}

// ErrBranchRequired indicates a missing branch scope.
var ErrBranchRequired = errors.New("sequence: branch required")

type txSequencer struct {
	tx pgx.Tx
}

// NewTx binds a sequencer to a transaction.
func NewTx(tx pgx.Tx) TxSequencer {
	return &txSequencer{tx: tx}
}

// Next upserts and increments the (branch, doc type, year) counter in one
// round trip. The conflict-based increment is what makes concurrent allocators
// safe: there is no separate read that a second caller could interleave with.
// The year comes from the database clock so the key and the row agree across
// year rollover regardless of app clock skew.
func (s *txSequencer) Next(ctx context.Context, branchID int64, doc DocType) (string, error) {
	if branchID == 0 {
		return "", ErrBranchRequired
	}
	if !doc.Valid() {
		return "", ErrUnknownDocType
	}
	var (
		counter int64
		year    int
	)
	err := s.tx.QueryRow(ctx, `INSERT INTO document_sequences (branch_id, doc_type, year, counter)
VALUES ($1, $2, date_part('year', now() AT TIME ZONE 'UTC')::int, 1)
ON CONFLICT (branch_id, doc_type, year)
DO UPDATE SET counter = document_sequences.counter + 1
RETURNING counter, year`, branchID, string(doc)).Scan(&counter, &year)
	if err != nil {
		return "", err
	}
	return Format(doc, year, counter)
}
