package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

type categoriesStore struct {
	store  *Store
	logger *common.Logger
}

func newCategoriesStore(store *Store, logger *common.Logger) *categoriesStore {
	return &categoriesStore{store: store, logger: logger}
}

func (s *categoriesStore) List(ctx context.Context) ([]*models.Category, error) {
	var all []models.Category
	if err := s.store.db.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return sortCategories(all), nil
}

func (s *categoriesStore) ListActive(ctx context.Context) ([]*models.Category, error) {
	var active []models.Category
	if err := s.store.db.Find(&active, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list active categories: %w", err)
	}
	return sortCategories(active), nil
}

func sortCategories(cats []models.Category) []*models.Category {
	out := make([]*models.Category, 0, len(cats))
	for i := range cats {
		out = append(out, &cats[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *categoriesStore) Get(ctx context.Context, id string) (*models.Category, error) {
	var cat models.Category
	if err := s.store.db.Get(id, &cat); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("category '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get category '%s': %w", id, err)
	}
	return &cat, nil
}

func (s *categoriesStore) Save(ctx context.Context, cat *models.Category) error {
	now := time.Now().UTC()
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = now
	}
	cat.ModifiedAt = now

	if err := s.store.db.Upsert(cat.ID, cat); err != nil {
		return fmt.Errorf("failed to save category '%s': %w", cat.ID, err)
	}

	s.logger.Debug().Str("id", cat.ID).Str("name", cat.Name).Msg("Category saved")
	return nil
}

// Deactivate soft-deletes a category. Historical transactions keep their
// category references; the category just stops being offered.
func (s *categoriesStore) Deactivate(ctx context.Context, id string) error {
	cat, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	cat.IsActive = false
	cat.ModifiedAt = time.Now().UTC()

	if err := s.store.db.Upsert(cat.ID, cat); err != nil {
		return fmt.Errorf("failed to deactivate category '%s': %w", id, err)
	}
	return nil
}

// Ensure categoriesStore implements CategoriesStore.
var _ interfaces.CategoriesStore = (*categoriesStore)(nil)
