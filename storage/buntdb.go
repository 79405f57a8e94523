package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/launchwatch/core"
)

// Key spaces sharing a single BuntDB file
const (
	orderKeyPrefix = "order:"
	seenKeyPrefix  = "seen:"
	settingsKey    = "settings:trading"

	// OrderIndexName orders the order key space by update timestamp
	OrderIndexName = "order_update_index"
)

// BuntStorage persists orders and seen announcement IDs in a single
// BuntDB file. Implements core.OrderStorage and core.SeenStore.
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig syncs every write. Losing a seen ID on crash would
// re-trigger a trade, so durability wins over throughput here.
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		SyncPolicy: buntdb.Always,
	}
}

// NewFromMemory creates an in-memory storage with default configuration
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based storage with default configuration
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage opens the database and warms the order ID counter from
// the persisted orders
func NewBuntStorage(sourceFile string, config BuntConfig) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(OrderIndexName, orderKeyPrefix+"*", buntdb.IndexJSON("updated_at")); err != nil {
		return nil, fmt.Errorf("failed to create order index: %w", err)
	}

	storage := &BuntStorage{db: db}
	if err := storage.warmLastID(); err != nil {
		return nil, err
	}

	return storage, nil
}

// warmLastID resumes the ID counter after the highest persisted order,
// so restarts never reuse an ID
func (b *BuntStorage) warmLastID() error {
	return b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(orderKeyPrefix+"*", func(key, _ string) bool {
			id, err := strconv.ParseInt(strings.TrimPrefix(key, orderKeyPrefix), 10, 64)
			if err == nil && id > b.lastID {
				b.lastID = id
			}
			return true
		})
	})
}

// getID generates a unique ID for orders
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// CreateOrder stores a new order in the database
func (b *BuntStorage) CreateOrder(_ context.Context, order *core.Order) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if order.ID == 0 {
			order.ID = b.getID()
		}

		content, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}

		key := orderKeyPrefix + strconv.FormatInt(order.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store order: %w", err)
		}

		return nil
	})
}

// UpdateOrder updates an existing order in the database
func (b *BuntStorage) UpdateOrder(_ context.Context, order *core.Order) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		key := orderKeyPrefix + strconv.FormatInt(order.ID, 10)

		if _, err := tx.Get(key); err != nil {
			return fmt.Errorf("order not found: %w", err)
		}

		content, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}

		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		return nil
	})
}

// Orders retrieves orders matching every provided filter, oldest
// update first
func (b *BuntStorage) Orders(_ context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	orders := make([]*core.Order, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(OrderIndexName, func(key, value string) bool {
			var order core.Order
			if err := json.Unmarshal([]byte(value), &order); err != nil {
				return true
			}

			for _, filter := range filters {
				if !filter(order) {
					return true
				}
			}

			orders = append(orders, &order)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	return orders, nil
}

// Contains reports whether the announcement ID was already processed
func (b *BuntStorage) Contains(_ context.Context, id string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(seenKeyPrefix + id)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check seen announcement: %w", err)
	}
	return found, nil
}

// MarkSeen records a batch of processed announcement IDs in one
// transaction
func (b *BuntStorage) MarkSeen(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		for _, id := range ids {
			if _, _, err := tx.Set(seenKeyPrefix+id, "1", nil); err != nil {
				return fmt.Errorf("failed to mark announcement seen: %w", err)
			}
		}
		return nil
	})
}

// All returns every recorded announcement ID
func (b *BuntStorage) All(_ context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(seenKeyPrefix+"*", func(key, _ string) bool {
			ids = append(ids, strings.TrimPrefix(key, seenKeyPrefix))
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list seen announcements: %w", err)
	}
	return ids, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
