package override

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

var testClock = interfaces.ClockFunc(func() time.Time {
	return time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
})

// memResults is a minimal in-memory ResultStore for tests.
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
	copied := *tx
	m.txs[tx.ID] = &copied
	return nil
}

func (m *memResults) FindByKey(ctx context.Context, bankSourceID, originalID string) (*models.Transaction, error) {
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
		copied := *tx
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
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

// memCategories is a fixed category set.
type memCategories struct {
	cats []*models.Category
}

func (m *memCategories) List(ctx context.Context) ([]*models.Category, error) { return m.cats, nil }

func (m *memCategories) ListActive(ctx context.Context) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range m.cats {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCategories) Get(ctx context.Context, id string) (*models.Category, error) {
	for _, c := range m.cats {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("category '%s' not found", id)
}

func (m *memCategories) Save(ctx context.Context, c *models.Category) error { return nil }
func (m *memCategories) Deactivate(ctx context.Context, id string) error    { return nil }

func testCategories() *memCategories {
	return &memCategories{cats: []*models.Category{
		{ID: "cat-groceries", Name: "Groceries", IsActive: true},
		{ID: "cat-grooming", Name: "Grooming", IsActive: true},
		{ID: "cat-shopping", Name: "Shopping", IsActive: true},
		{ID: "cat-old", Name: "Old Stuff", IsActive: false},
	}}
}

func txAt(id string, day int) *models.Transaction {
	return &models.Transaction{
		ID:               id,
		TransactionDate:  time.Date(2025, 11, day, 10, 0, 0, 0, time.UTC),
		ProcessingStatus: models.StatusCategorised,
		CategoryAIID:     "cat-shopping",
		CategoryAIName:   "Shopping",
	}
}

func newTestService(store *memResults) *Service {
	logger := common.NewSilentLogger()
	resolver := NewResolver(testCategories(), logger)
	return NewService(store, resolver, testClock, logger)
}

func userEdit(row int, value string) models.EditEvent {
	return models.EditEvent{
		Source:   models.EditSourceUser,
		Column:   ManualCategoryColumn,
		RowStart: row,
		RowEnd:   row,
		NewValue: value,
	}
}

func TestHandleEdit_ResolvesAndWritesID(t *testing.T) {
	store := newMemResults(txAt("t1", 1))
	svc := newTestService(store)

	require.NoError(t, svc.HandleEdit(context.Background(), userEdit(1, "  groceries ")))

	tx, _ := store.Get(context.Background(), "t1")
	assert.Equal(t, "cat-groceries", tx.CategoryManualID)
	// The cell value is normalized to the category's canonical name.
	assert.Equal(t, "Groceries", tx.CategoryManualName)
	// AI assignment survives underneath; manual wins as effective.
	id, name := tx.EffectiveCategory()
	assert.Equal(t, "cat-groceries", id)
	assert.Equal(t, "Groceries", name)
	// Status untouched: this write must not re-enter the pipeline.
	assert.Equal(t, models.StatusCategorised, tx.ProcessingStatus)
}

func TestHandleEdit_ClearingCellDropsOverride(t *testing.T) {
	seeded := txAt("t1", 1)
	seeded.CategoryManualID = "cat-groceries"
	seeded.CategoryManualName = "Groceries"
	store := newMemResults(seeded)
	svc := newTestService(store)

	require.NoError(t, svc.HandleEdit(context.Background(), userEdit(1, "   ")))

	tx, _ := store.Get(context.Background(), "t1")
	assert.Empty(t, tx.CategoryManualID)
	assert.Empty(t, tx.CategoryManualName)
	id, _ := tx.EffectiveCategory()
	assert.Equal(t, "cat-shopping", id)
}

func TestHandleEdit_CustomCategoryKeepsLiteralName(t *testing.T) {
	store := newMemResults(txAt("t1", 1))
	svc := newTestService(store)

	require.NoError(t, svc.HandleEdit(context.Background(), userEdit(1, "Llama Fund")))

	tx, _ := store.Get(context.Background(), "t1")
	assert.Empty(t, tx.CategoryManualID)
	assert.Equal(t, "Llama Fund", tx.CategoryManualName)
	assert.True(t, tx.HasManualOverride())
}

func TestHandleEdit_InactiveCategoryIsCustom(t *testing.T) {
	store := newMemResults(txAt("t1", 1))
	svc := newTestService(store)

	require.NoError(t, svc.HandleEdit(context.Background(), userEdit(1, "Old Stuff")))

	tx, _ := store.Get(context.Background(), "t1")
	assert.Empty(t, tx.CategoryManualID)
	assert.Equal(t, "Old Stuff", tx.CategoryManualName)
}

func TestHandleEdit_IgnoresNonUserSources(t *testing.T) {
	store := newMemResults(txAt("t1", 1))
	svc := newTestService(store)

	for _, source := range []models.EditSource{models.EditSourceSystem, models.EditSourceUnknown} {
		event := userEdit(1, "Groceries")
		event.Source = source
		require.NoError(t, svc.HandleEdit(context.Background(), event))
	}

	tx, _ := store.Get(context.Background(), "t1")
	assert.Empty(t, tx.CategoryManualID)
	assert.Empty(t, tx.CategoryManualName)
}

func TestHandleEdit_IgnoresOtherColumns(t *testing.T) {
	store := newMemResults(txAt("t1", 1))
	svc := newTestService(store)

	event := userEdit(1, "Groceries")
	event.Column = "Notes"
	require.NoError(t, svc.HandleEdit(context.Background(), event))

	tx, _ := store.Get(context.Background(), "t1")
	assert.Empty(t, tx.CategoryManualID)
}

func TestHandleEdit_MultiRowRange(t *testing.T) {
	store := newMemResults(txAt("t1", 1), txAt("t2", 2), txAt("t3", 3))
	svc := newTestService(store)

	event := userEdit(1, "Groceries")
	event.RowEnd = 2
	require.NoError(t, svc.HandleEdit(context.Background(), event))

	for _, id := range []string{"t1", "t2"} {
		tx, _ := store.Get(context.Background(), id)
		assert.Equal(t, "cat-groceries", tx.CategoryManualID, "tx %s", id)
	}
	untouched, _ := store.Get(context.Background(), "t3")
	assert.Empty(t, untouched.CategoryManualID)
}

func TestHandleEdit_RowOutOfRange(t *testing.T) {
	svc := newTestService(newMemResults(txAt("t1", 1)))
	assert.Error(t, svc.HandleEdit(context.Background(), userEdit(5, "Groceries")))
}

func TestHandleRange_BulkResolvesNames(t *testing.T) {
	a := txAt("t1", 1)
	a.CategoryManualName = "groceries" // entered by hand, not yet resolved
	b := txAt("t2", 2)
	b.CategoryManualName = "Llama Fund"
	c := txAt("t3", 3)
	store := newMemResults(a, b, c)
	svc := newTestService(store)

	require.NoError(t, svc.HandleRange(context.Background(), 1, 3))

	resolved, _ := store.Get(context.Background(), "t1")
	assert.Equal(t, "cat-groceries", resolved.CategoryManualID)
	assert.Equal(t, "Groceries", resolved.CategoryManualName)

	custom, _ := store.Get(context.Background(), "t2")
	assert.Empty(t, custom.CategoryManualID)
	assert.Equal(t, "Llama Fund", custom.CategoryManualName)

	empty, _ := store.Get(context.Background(), "t3")
	assert.Empty(t, empty.CategoryManualID)
	assert.Empty(t, empty.CategoryManualName)
}
