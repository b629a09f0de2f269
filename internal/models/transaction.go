// Package models defines the core data types for ledgerflow.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessingStatus is the lifecycle state of a Transaction.
type ProcessingStatus string

const (
	StatusUnprocessed ProcessingStatus = "UNPROCESSED"
	StatusNormalised  ProcessingStatus = "NORMALISED"
	StatusCategorised ProcessingStatus = "CATEGORISED"
	StatusError       ProcessingStatus = "ERROR"
)

// TransactionType distinguishes money out from money in.
type TransactionType string

const (
	TypeDebit  TransactionType = "DEBIT"
	TypeCredit TransactionType = "CREDIT"
)

// Transaction is the single evolving record produced by normalization and
// enriched by categorization. Owned by the result store; mutated only
// through status transitions and store updates.
type Transaction struct {
	ID                    string           `json:"id" badgerhold:"key"`
	BankSourceID          string           `json:"bank_source_id" badgerhold:"index"`
	OriginalTransactionID string           `json:"original_transaction_id"`
	TransactionDate       time.Time        `json:"transaction_date"`
	Description           string           `json:"description"`
	TransactionType       TransactionType  `json:"transaction_type"`
	Notes                 string           `json:"notes,omitempty"`
	Country               string           `json:"country,omitempty"`
	OriginalAmount        decimal.Decimal  `json:"original_amount_value"`
	OriginalCurrency      string           `json:"original_amount_currency"`
	GBPAmount             decimal.Decimal  `json:"gbp_amount_value"`
	ExchangeRate          *decimal.Decimal `json:"exchange_rate_value,omitempty"`

	CategoryAIID       string  `json:"category_ai_id,omitempty"`
	CategoryAIName     string  `json:"category_ai_name,omitempty"`
	ConfidenceScore    float64 `json:"category_confidence_score,omitempty"`
	CategoryManualID   string  `json:"category_manual_id,omitempty"`
	CategoryManualName string  `json:"category_manual_name,omitempty"`

	ProcessingStatus     ProcessingStatus `json:"processing_status" badgerhold:"index"`
	ErrorMessage         string           `json:"error_message,omitempty"`
	TimestampCreated     time.Time        `json:"timestamp_created"`
	TimestampModified    time.Time        `json:"timestamp_last_modified"`
	TimestampNormalised  time.Time        `json:"timestamp_normalised,omitempty"`
	TimestampCategorised time.Time        `json:"timestamp_categorised,omitempty"`
}

// StableKey returns the deduplication identity of the transaction within
// its bank source.
func (t *Transaction) StableKey() string {
	return t.BankSourceID + ":" + t.OriginalTransactionID
}

// EffectiveCategory returns the manual category when set, otherwise the AI
// category. Manual overrides always take precedence.
func (t *Transaction) EffectiveCategory() (id, name string) {
	if t.CategoryManualID != "" || t.CategoryManualName != "" {
		return t.CategoryManualID, t.CategoryManualName
	}
	return t.CategoryAIID, t.CategoryAIName
}

// HasManualOverride reports whether the user has assigned a category,
// whether or not it resolved to a known category ID.
func (t *Transaction) HasManualOverride() bool {
	return t.CategoryManualID != "" || t.CategoryManualName != ""
}

// NeedsCategorization reports whether the automated pipeline may assign a
// category: no manual override and no prior AI assignment.
func (t *Transaction) NeedsCategorization() bool {
	return t.CategoryManualID == "" && t.CategoryAIID == ""
}

// TransactionFilter expresses result-store queries.
type TransactionFilter struct {
	Statuses          []ProcessingStatus
	BankSourceID      string
	HasManualOverride *bool
	HasAICategory     *bool
	DateFrom          time.Time
	DateTo            time.Time
	Limit             int
}

// SimilarityMatchType identifies how a historical candidate matched.
type SimilarityMatchType string

const (
	MatchExact  SimilarityMatchType = "exact"
	MatchFuzzy  SimilarityMatchType = "fuzzy"
	MatchAmount SimilarityMatchType = "amount"
)

// SimilarityMatch is one historical transaction judged similar to a target.
type SimilarityMatch struct {
	Transaction      *Transaction
	MatchType        SimilarityMatchType
	Score            float64 // [0,100]
	WeightedScore    float64 // score x manual-override weight
	IsManualOverride bool
}

// CategorySuggestion is the historical learner's aggregated vote.
type CategorySuggestion struct {
	CategoryID   string
	CategoryName string
	Confidence   float64 // [0,100]
}

// SimilarExample is the compact form of a historical match passed to the AI
// port as context.
type SimilarExample struct {
	Description       string  `json:"description"`
	CategoryID        string  `json:"category_id"`
	CategoryName      string  `json:"category_name"`
	WasManualOverride bool    `json:"was_manual_override"`
	ConfidenceScore   float64 `json:"confidence_score,omitempty"`
}

// AIResult is the per-transaction answer from the AI categorization port.
type AIResult struct {
	TransactionID   string  `json:"transaction_id"`
	CategoryID      string  `json:"category_id"`
	CategoryName    string  `json:"category_name"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ConfidenceBreakdown explains a final confidence score.
type ConfidenceBreakdown struct {
	AIScore          float64
	HistoricalScore  float64
	ConsensusBonus   float64
	ConflictPenalty  float64
	Final            float64
	MatchCount       int
	ManualMatchCount int
	Consensus        bool
	Conflict         bool
}
