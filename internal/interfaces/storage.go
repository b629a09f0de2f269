// Package interfaces defines the ports between the ledgerflow core and its
// infrastructure: stores, external clients, and service contracts.
package interfaces

import (
	"context"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// StorageManager coordinates all storage backends.
type StorageManager interface {
	ResultStore() ResultStore
	CategoriesStore() CategoriesStore
	RunStore() RunStore
	KeyValueStore() KeyValueStore

	Close() error
}

// ResultStore owns the canonical Transaction records. Appends are
// idempotent on stable key; updates are atomic at row granularity.
type ResultStore interface {
	// Append inserts a transaction. Returns models.DuplicateError when the
	// stable key is already present; the existing row is untouched.
	Append(ctx context.Context, tx *models.Transaction) error

	// FindByKey looks a transaction up by (bank source, original ID).
	// Returns (nil, nil) when absent.
	FindByKey(ctx context.Context, bankSourceID, originalID string) (*models.Transaction, error)

	// Get retrieves a transaction by ID.
	Get(ctx context.Context, id string) (*models.Transaction, error)

	// Query returns transactions matching the filter.
	Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	// Update applies a mutation to one row atomically. The callback
	// receives the current value; an error from it aborts the write.
	Update(ctx context.Context, id string, apply func(*models.Transaction) error) error
}

// CategoriesStore manages the user's category set. Soft delete only.
type CategoriesStore interface {
	List(ctx context.Context) ([]*models.Category, error)
	ListActive(ctx context.Context) ([]*models.Category, error)
	Get(ctx context.Context, id string) (*models.Category, error)
	Save(ctx context.Context, category *models.Category) error
	Deactivate(ctx context.Context, id string) error
}

// RunStore persists processing-run records.
type RunStore interface {
	Save(ctx context.Context, run *models.ProcessingRun) error
	Get(ctx context.Context, id string) (*models.ProcessingRun, error)
	List(ctx context.Context, runType models.RunType, limit int) ([]*models.ProcessingRun, error)
}

// KeyValueStore holds system-level settings and API keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SourceStore reads raw rows from bank export sources.
type SourceStore interface {
	// ListActiveSources returns the configured, active bank sources.
	ListActiveSources(ctx context.Context) ([]models.BankSource, error)

	// ReadRaw returns all data rows of a source export.
	ReadRaw(ctx context.Context, source models.BankSource) ([]models.SourceRow, error)

	// WriteBackID records a synthesized original transaction ID against a
	// source row. Optional; implementations may return ErrWriteBackUnsupported.
	WriteBackID(ctx context.Context, source models.BankSource, rowIndex int, originalID string) error
}
