package interfaces

import (
	"context"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// NormalizerService turns raw source rows into normalised transactions.
type NormalizerService interface {
	// NormalizeSource processes every row of one source within a run,
	// appending successful transactions to the result store and recording
	// per-row failures against the run.
	NormalizeSource(ctx context.Context, run *models.ProcessingRun, source models.BankSource) error
}

// CategorizerService assigns AI categories to normalised transactions.
type CategorizerService interface {
	// Categorize processes the given transactions in batches, updating
	// each through the result store. Returns counts of categorised and
	// failed transactions.
	Categorize(ctx context.Context, run *models.ProcessingRun, transactions []*models.Transaction, categories []*models.Category) (categorised, failed int, err error)

	// Filter returns the subset of transactions eligible for automated
	// categorization: no manual override, no prior AI category.
	Filter(transactions []*models.Transaction) []*models.Transaction
}

// OverrideService reacts to user edits of the manual category column.
type OverrideService interface {
	// HandleEdit processes one edit event. Non-user events and events on
	// other columns are ignored without error.
	HandleEdit(ctx context.Context, event models.EditEvent) error

	// HandleRange bulk-resolves manual category names for transactions in
	// [startRow, endRow] of the result sheet ordering.
	HandleRange(ctx context.Context, startRow, endRow int) error
}

// CoordinatorService orchestrates processing runs.
type CoordinatorService interface {
	// RunNormalization executes one normalization run over all active
	// sources. Rejects concurrent normalization runs.
	RunNormalization(ctx context.Context) (*models.ProcessingRun, error)

	// RunCategorization executes one categorization run over candidate
	// transactions. Rejects concurrent categorization runs.
	RunCategorization(ctx context.Context) (*models.ProcessingRun, error)
}
