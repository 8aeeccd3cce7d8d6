// Package sequence issues branch- and year-scoped document numbers. Numbers
// are allocated by a single atomic upsert inside the caller's transaction, so
// an aborted operation leaves a gap but two operations can never share one.
package sequence

import (
	"errors"
	"fmt"
)

// DocType enumerates the document families that consume numbers.
type DocType string

const (
	DocOrder        DocType = "ORDER"
	DocWaybill      DocType = "WAYBILL"
	DocReturn       DocType = "RETURN"
	DocGoodsReceipt DocType = "GRN"
	DocInvoice      DocType = "INVOICE"
	DocLedger       DocType = "LEDGER"
	DocCommission   DocType = "COMMISSION"
	DocPayment      DocType = "PAYMENT"
	DocAdjustment   DocType = "ADJUSTMENT"
	DocCheque       DocType = "CHEQUE"
)

// ErrUnknownDocType indicates a document type outside the registry.
var ErrUnknownDocType = errors.New("sequence: unknown document type")

type numberSpec struct {
	prefix string
	width  int
}

// Persisted format is {PREFIX}-{4 digit year}-{zero padded counter}.
var specs = map[DocType]numberSpec{
	DocOrder:        {prefix: "ORD", width: 4},
	DocWaybill:      {prefix: "WB", width: 4},
	DocReturn:       {prefix: "RET", width: 4},
	DocGoodsReceipt: {prefix: "GRN", width: 4},
	DocInvoice:      {prefix: "INV", width: 5},
	DocLedger:       {prefix: "LDG", width: 5},
	DocCommission:   {prefix: "COM", width: 5},
	DocPayment:      {prefix: "PAY", width: 5},
	DocAdjustment:   {prefix: "ADJ", width: 5},
	DocCheque:       {prefix: "CHQ", width: 5},
}

// Valid reports whether the document type is registered.
func (d DocType) Valid() bool {
	_, ok := specs[d]
	return ok
}

// Format renders a document number for the given type, year and counter.
func Format(doc DocType, year int, counter int64) (string, error) {
	spec, ok := specs[doc]
	if !ok {
		return "", ErrUnknownDocType
	}
	return fmt.Sprintf("%s-%04d-%0*d", spec.prefix, year, spec.width, counter), nil
}
