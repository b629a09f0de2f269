// Package badger provides BadgerHold-based implementations of the result,
// categories, run, and key-value stores.
package badger

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
)

// Store wraps a BadgerHold database connection shared by the concrete
// stores.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{db: db, logger: logger}, nil
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Manager bundles the concrete stores behind the StorageManager port.
type Manager struct {
	store      *Store
	results    *resultStore
	categories *categoriesStore
	runs       *runStore
	kv         *kvStore
}

// NewManager opens the database and wires up all stores.
func NewManager(logger *common.Logger, path string) (*Manager, error) {
	store, err := NewStore(logger, path)
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:      store,
		results:    newResultStore(store, logger),
		categories: newCategoriesStore(store, logger),
		runs:       newRunStore(store, logger),
		kv:         newKVStore(store, logger),
	}, nil
}

func (m *Manager) ResultStore() interfaces.ResultStore         { return m.results }
func (m *Manager) CategoriesStore() interfaces.CategoriesStore { return m.categories }
func (m *Manager) RunStore() interfaces.RunStore               { return m.runs }
func (m *Manager) KeyValueStore() interfaces.KeyValueStore     { return m.kv }

// Close releases the underlying database.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Ensure Manager implements StorageManager.
var _ interfaces.StorageManager = (*Manager)(nil)
