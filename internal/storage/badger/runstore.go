package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

type runStore struct {
	store  *Store
	logger *common.Logger
}

func newRunStore(store *Store, logger *common.Logger) *runStore {
	return &runStore{store: store, logger: logger}
}

func (s *runStore) Save(ctx context.Context, run *models.ProcessingRun) error {
	if err := s.store.db.Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run '%s': %w", run.ID, err)
	}
	return nil
}

func (s *runStore) Get(ctx context.Context, id string) (*models.ProcessingRun, error) {
	var run models.ProcessingRun
	if err := s.store.db.Get(id, &run); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("run '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get run '%s': %w", id, err)
	}
	return &run, nil
}

// List returns runs newest first, optionally filtered by type.
func (s *runStore) List(ctx context.Context, runType models.RunType, limit int) ([]*models.ProcessingRun, error) {
	var query *badgerhold.Query
	if runType != "" {
		query = badgerhold.Where("RunType").Eq(runType)
	}

	var runs []models.ProcessingRun
	if err := s.store.db.Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]*models.ProcessingRun, 0, len(runs))
	for i := range runs {
		out = append(out, &runs[i])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ensure runStore implements RunStore.
var _ interfaces.RunStore = (*runStore)(nil)
