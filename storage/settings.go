package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/launchwatch/core"
)

// SettingsStore keeps the trading settings in the shared BuntDB file
// under a dedicated key, with an in-memory snapshot for lock-cheap reads.
// Implements core.SettingsStore.
type SettingsStore struct {
	mu      sync.RWMutex
	db      *buntdb.DB
	current core.TradingSettings
}

// NewSettingsStore loads the persisted settings or seeds the defaults
// when none exist
func NewSettingsStore(storage *BuntStorage) (*SettingsStore, error) {
	return NewSettingsStoreWithDefaults(storage, core.DefaultTradingSettings())
}

// NewSettingsStoreWithDefaults is like NewSettingsStore but seeds a
// fresh database with the given settings instead of the built-in
// defaults. Persisted settings always win over the seed.
func NewSettingsStoreWithDefaults(storage *BuntStorage, defaults core.TradingSettings) (*SettingsStore, error) {
	store := &SettingsStore{
		db:      storage.db,
		current: defaults,
	}

	err := storage.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(settingsKey)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &store.current)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load trading settings: %w", err)
	}

	if err := store.current.Validate(); err != nil {
		return nil, fmt.Errorf("persisted trading settings are invalid: %w", err)
	}

	return store, nil
}

// Get returns the current settings snapshot
func (s *SettingsStore) Get() core.TradingSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges the patch, validates the result, and persists it before
// swapping the snapshot. A rejected update leaves both the stored and
// the in-memory settings unchanged.
func (s *SettingsStore) Update(patch core.TradingPatch) (core.TradingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current.Apply(patch)
	if err := merged.Validate(); err != nil {
		return s.current, err
	}

	content, err := json.Marshal(merged)
	if err != nil {
		return s.current, fmt.Errorf("failed to marshal trading settings: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(settingsKey, string(content), nil)
		return err
	})
	if err != nil {
		return s.current, fmt.Errorf("failed to persist trading settings: %w", err)
	}

	s.current = merged
	return merged, nil
}
