package normalizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

var testClock = interfaces.ClockFunc(func() time.Time {
	return time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
})

// memResults is an in-memory ResultStore for tests.
type memResults struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newMemResults() *memResults {
	return &memResults{txs: make(map[string]*models.Transaction)}
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
			matched := false
			for _, st := range filter.Statuses {
				if tx.ProcessingStatus == st {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		copied := *tx
		out = append(out, &copied)
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

func (m *memResults) all() []*models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range m.txs {
		copied := *tx
		out = append(out, &copied)
	}
	return out
}

// fxError mimics a provider 5xx.
type fxError struct{ code int }

func (e *fxError) Error() string   { return fmt.Sprintf("provider error %d", e.code) }
func (e *fxError) HTTPStatus() int { return e.code }

// fakeFX serves canned rates and counts calls per currency.
type fakeFX struct {
	mu    sync.Mutex
	rates map[string]string // currency -> rate
	fail  map[string]int    // currency -> HTTP status to fail with
	calls map[string]int
}

func newFakeFX(rates map[string]string) *fakeFX {
	return &fakeFX{
		rates: rates,
		fail:  make(map[string]int),
		calls: make(map[string]int),
	}
}

func (f *fakeFX) GetRate(ctx context.Context, target string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[target]++
	if code, ok := f.fail[target]; ok {
		return decimal.Zero, &fxError{code: code}
	}
	raw, ok := f.rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s", target)
	}
	return decimal.RequireFromString(raw), nil
}

func (f *fakeFX) Provider() string { return "fake" }

func (f *fakeFX) callCount(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[target]
}

// fakeSources serves preset rows and records write-backs.
type fakeSources struct {
	mu          sync.Mutex
	rows        map[string][]models.SourceRow
	writeBacks  map[string]string // "SOURCE:row" -> id
	noWriteBack bool
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		rows:       make(map[string][]models.SourceRow),
		writeBacks: make(map[string]string),
	}
}

func (f *fakeSources) ListActiveSources(ctx context.Context) ([]models.BankSource, error) {
	var out []models.BankSource
	for id := range f.rows {
		out = append(out, models.BankSource{ID: id, IsActive: true, HasNativeID: id == models.SourceMonzo})
	}
	return out, nil
}

func (f *fakeSources) ReadRaw(ctx context.Context, source models.BankSource) ([]models.SourceRow, error) {
	rows, ok := f.rows[source.ID]
	if !ok {
		return nil, fmt.Errorf("no rows for %s", source.ID)
	}
	return rows, nil
}

func (f *fakeSources) WriteBackID(ctx context.Context, source models.BankSource, rowIndex int, originalID string) error {
	if f.noWriteBack {
		return models.ErrWriteBackUnsupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeBacks[fmt.Sprintf("%s:%d", source.ID, rowIndex)] = originalID
	return nil
}
