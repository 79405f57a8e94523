package core

import (
	"context"
	"slices"
)

// OrderStorage defines the interface for order persistence
type OrderStorage interface {
	// CreateOrder stores a new order
	CreateOrder(ctx context.Context, order *Order) error

	// UpdateOrder updates an existing order
	UpdateOrder(ctx context.Context, order *Order) error

	// Orders retrieves orders based on provided filters
	Orders(ctx context.Context, filters ...OrderFilter) ([]*Order, error)
}

// SeenStore persists announcement IDs that have already been processed.
// The set only grows; an ID present here is never re-notified.
type SeenStore interface {
	// Contains reports whether the announcement ID was already processed
	Contains(ctx context.Context, id string) (bool, error)

	// MarkSeen records a batch of processed announcement IDs
	MarkSeen(ctx context.Context, ids ...string) error

	// All returns every recorded ID, used to warm in-memory mirrors
	All(ctx context.Context) ([]string, error)
}

// SettingsStore owns the runtime trading settings with a single-writer
// discipline: reads may happen concurrently with one in-flight update,
// and an accepted update is fully visible to the next Get.
type SettingsStore interface {
	// Get returns the current settings snapshot
	Get() TradingSettings

	// Update validates the merged result of the patch and persists it.
	// A *ValidationError rejection leaves the stored settings unchanged.
	Update(patch TradingPatch) (TradingSettings, error)
}

// WithStatusIn filters orders whose status is one of the given values
func WithStatusIn(status ...OrderStatusType) OrderFilter {
	return func(order Order) bool {
		return slices.Contains(status, order.Status)
	}
}

// WithStatus filters orders by a single status
func WithStatus(status OrderStatusType) OrderFilter {
	return func(order Order) bool {
		return order.Status == status
	}
}

// WithPair filters orders by trading pair
func WithPair(pair string) OrderFilter {
	return func(order Order) bool {
		return order.Pair == pair
	}
}

// WithAnnouncementID filters orders triggered by a given announcement
func WithAnnouncementID(id string) OrderFilter {
	return func(order Order) bool {
		return order.AnnouncementID == id
	}
}
