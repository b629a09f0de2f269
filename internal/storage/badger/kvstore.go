package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
)

// KVEntry is a stored key-value pair used for system settings and API
// keys.
type KVEntry struct {
	Key       string    `badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type kvStore struct {
	store  *Store
	logger *common.Logger
}

func newKVStore(store *Store, logger *common.Logger) *kvStore {
	return &kvStore{store: store, logger: logger}
}

func (s *kvStore) Get(ctx context.Context, key string) (string, error) {
	var entry KVEntry
	if err := s.store.db.Get(key, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", fmt.Errorf("key '%s' not found", key)
		}
		return "", fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return entry.Value, nil
}

func (s *kvStore) Set(ctx context.Context, key, value string) error {
	entry := KVEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

func (s *kvStore) Delete(ctx context.Context, key string) error {
	if err := s.store.db.Delete(key, &KVEntry{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// Ensure kvStore implements KeyValueStore.
var _ interfaces.KeyValueStore = (*kvStore)(nil)
