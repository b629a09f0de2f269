package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// resultStore owns the canonical transaction records. The mutex
// serializes check-and-insert on stable keys and read-modify-write
// updates, giving row-granularity atomicity within the process.
type resultStore struct {
	store  *Store
	logger *common.Logger
	mu     sync.Mutex
}

func newResultStore(store *Store, logger *common.Logger) *resultStore {
	return &resultStore{store: store, logger: logger}
}

func (s *resultStore) Append(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.findByKey(tx.BankSourceID, tx.OriginalTransactionID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &models.DuplicateError{Key: tx.StableKey()}
	}

	if err := s.store.db.Insert(tx.ID, tx); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return &models.DuplicateError{Key: tx.StableKey()}
		}
		return fmt.Errorf("failed to append transaction %s: %w", tx.ID, err)
	}

	s.logger.Debug().
		Str("id", tx.ID).
		Str("source", tx.BankSourceID).
		Msg("Transaction appended")
	return nil
}

func (s *resultStore) FindByKey(ctx context.Context, bankSourceID, originalID string) (*models.Transaction, error) {
	return s.findByKey(bankSourceID, originalID)
}

func (s *resultStore) findByKey(bankSourceID, originalID string) (*models.Transaction, error) {
	var matches []models.Transaction
	query := badgerhold.Where("BankSourceID").Eq(bankSourceID).
		And("OriginalTransactionID").Eq(originalID)
	if err := s.store.db.Find(&matches, query); err != nil {
		return nil, fmt.Errorf("failed to look up key (%s, %s): %w", bankSourceID, originalID, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (s *resultStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.store.db.Get(id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("transaction '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction '%s': %w", id, err)
	}
	return &tx, nil
}

func (s *resultStore) Query(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var query *badgerhold.Query
	if len(filter.Statuses) > 0 {
		statuses := make([]interface{}, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = st
		}
		query = badgerhold.Where("ProcessingStatus").In(statuses...)
	}

	var all []models.Transaction
	if err := s.store.db.Find(&all, query); err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	out := make([]*models.Transaction, 0, len(all))
	for i := range all {
		tx := &all[i]
		if !matchesFilter(tx, filter) {
			continue
		}
		out = append(out, tx)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(tx *models.Transaction, filter models.TransactionFilter) bool {
	if filter.BankSourceID != "" && tx.BankSourceID != filter.BankSourceID {
		return false
	}
	if filter.HasManualOverride != nil && tx.HasManualOverride() != *filter.HasManualOverride {
		return false
	}
	if filter.HasAICategory != nil && (tx.CategoryAIID != "") != *filter.HasAICategory {
		return false
	}
	if !filter.DateFrom.IsZero() && tx.TransactionDate.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && tx.TransactionDate.After(filter.DateTo) {
		return false
	}
	return true
}

func (s *resultStore) Update(ctx context.Context, id string, apply func(*models.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tx models.Transaction
	if err := s.store.db.Get(id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("transaction '%s' not found", id)
		}
		return fmt.Errorf("failed to get transaction '%s': %w", id, err)
	}

	if err := apply(&tx); err != nil {
		return err
	}

	if err := s.store.db.Upsert(id, &tx); err != nil {
		return fmt.Errorf("failed to update transaction '%s': %w", id, err)
	}
	return nil
}

// Ensure resultStore implements ResultStore.
var _ interfaces.ResultStore = (*resultStore)(nil)
