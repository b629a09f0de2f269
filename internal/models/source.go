package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Well-known bank source identifiers.
const (
	SourceMonzo   = "MONZO"
	SourceRevolut = "REVOLUT"
	SourceYonder  = "YONDER"
)

// BankSource is the static configuration of one transaction export source.
// Immutable for the lifetime of transactions processed under it.
type BankSource struct {
	ID          string `json:"id" badgerhold:"key"`
	DisplayName string `json:"display_name"`
	HasNativeID bool   `json:"has_native_transaction_id"`
	IsActive    bool   `json:"is_active"`
	Filename    string `json:"filename,omitempty"` // export file within the sources dir
}

// SourceRow is one raw data row from a source export: header name to cell
// value, plus the 1-based data row index for error reporting and write-back.
type SourceRow struct {
	Index  int
	Values map[string]string
}

// Get returns the trimmed cell value for a header, or "" when absent.
func (r SourceRow) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// RawRecord is the canonical parsed form of a source row, produced by a
// source adapter and consumed by the normalizer. Never a partial
// Transaction.
type RawRecord struct {
	SourceID              string
	RowIndex              int
	Date                  time.Time
	Description           string // composed, human-readable
	NormalizedDescription string // lower-cased, alphanumeric, collapsed
	Amount                decimal.Decimal
	GBPAmount             *decimal.Decimal // present when the source carries a GBP column
	Currency              string
	Type                  TransactionType
	OriginalTransactionID string // bank-native or synthesized; "" until backfilled
	Notes                 string
	Country               string
}

// ExchangeRateSnapshot is the immutable rate captured once per target
// currency per normalization run.
type ExchangeRateSnapshot struct {
	Base            string          `json:"base"`
	Target          string          `json:"target"`
	Rate            decimal.Decimal `json:"rate"`
	FetchedAt       time.Time       `json:"fetched_at"`
	Provider        string          `json:"provider"`
	ProcessingRunID string          `json:"processing_run_id"`
}
