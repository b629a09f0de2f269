package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// AICategorizer is the port to the AI categorization provider. The
// implementation must only return category IDs from the supplied set.
type AICategorizer interface {
	// CategorizeBatch assigns a category to each transaction. The context
	// examples bias the model toward historically confirmed categories.
	CategorizeBatch(
		ctx context.Context,
		transactions []*models.Transaction,
		categories []*models.Category,
		examples []models.SimilarExample,
	) ([]models.AIResult, error)
}

// ExchangeRateClient is the port to the FX rate provider.
type ExchangeRateClient interface {
	// GetRate returns the multiplier converting one unit of the target
	// currency into GBP.
	GetRate(ctx context.Context, target string) (decimal.Decimal, error)

	// Provider names the rate source for snapshot records.
	Provider() string
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
