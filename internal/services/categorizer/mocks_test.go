package categorizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// memResults is an in-memory ResultStore for tests.
type memResults struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newMemResults(txs ...*models.Transaction) *memResults {
	m := &memResults{txs: make(map[string]*models.Transaction)}
	for _, tx := range txs {
		copied := *tx
		m.txs[tx.ID] = &copied
	}
	return m
}

func (m *memResults) Append(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.txs {
		if existing.StableKey() == tx.StableKey() {
			return &models.DuplicateError{Key: tx.StableKey()}
		}
	}
	copied := *tx
	m.txs[tx.ID] = &copied
	return nil
}

func (m *memResults) FindByKey(ctx context.Context, bankSourceID, originalID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.BankSourceID == bankSourceID && tx.OriginalTransactionID == originalID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memResults) Get(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction '%s' not found", id)
	}
	copied := *tx
	return &copied, nil
}

func (m *memResults) Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Transaction
	for _, tx := range m.txs {
		if len(filter.Statuses) > 0 {
			found := false
			for _, st := range filter.Statuses {
				if tx.ProcessingStatus == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.BankSourceID != "" && tx.BankSourceID != filter.BankSourceID {
			continue
		}
		if filter.HasManualOverride != nil && tx.HasManualOverride() != *filter.HasManualOverride {
			continue
		}
		if !filter.DateFrom.IsZero() && tx.TransactionDate.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && tx.TransactionDate.After(filter.DateTo) {
			continue
		}
		copied := *tx
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memResults) Update(ctx context.Context, id string, apply func(*models.Transaction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return fmt.Errorf("transaction '%s' not found", id)
	}
	copied := *tx
	if err := apply(&copied); err != nil {
		return err
	}
	m.txs[id] = &copied
	return nil
}

// fakeAI returns canned results, optionally failing a number of times
// first.
type fakeAI struct {
	mu        sync.Mutex
	results   []models.AIResult
	err       error
	failures  int
	calls     int
	lastBatch []*models.Transaction
	lastCtx   []models.SimilarExample
}

func (f *fakeAI) CategorizeBatch(
	ctx context.Context,
	transactions []*models.Transaction,
	categories []*models.Category,
	examples []models.SimilarExample,
) ([]models.AIResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastBatch = transactions
	f.lastCtx = examples

	if f.err != nil && (f.failures == 0 || f.calls <= f.failures) {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}

	out := make([]models.AIResult, 0, len(transactions))
	for _, tx := range transactions {
		out = append(out, models.AIResult{
			TransactionID:   tx.ID,
			CategoryID:      "cat-groceries",
			CategoryName:    "Groceries",
			ConfidenceScore: 90,
		})
	}
	return out, nil
}
