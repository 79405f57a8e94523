package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/launchwatch/core"
)

func TestBuntStorage_CreateAndFilterOrders(t *testing.T) {
	storage, err := NewFromMemory()
	require.NoError(t, err)
	defer storage.Close()

	ctx := context.Background()

	filled := &core.Order{
		ExchangeID:     "ex-1",
		Pair:           "MNTUSDT",
		Side:           core.SideTypeBuy,
		Type:           core.OrderTypeMarket,
		Status:         core.OrderStatusTypeFilled,
		Quantity:       10,
		AnnouncementID: "ann-1",
	}
	rejected := &core.Order{
		ExchangeID:     "ex-2",
		Pair:           "MNTUSDT",
		Side:           core.SideTypeBuy,
		Type:           core.OrderTypeMarket,
		Status:         core.OrderStatusTypeRejected,
		Quantity:       10,
		AnnouncementID: "ann-2",
	}

	require.NoError(t, storage.CreateOrder(ctx, filled))
	require.NoError(t, storage.CreateOrder(ctx, rejected))
	assert.NotEqual(t, filled.ID, rejected.ID)

	orders, err := storage.Orders(ctx, core.WithStatus(core.OrderStatusTypeFilled))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ex-1", orders[0].ExchangeID)

	orders, err = storage.Orders(ctx, core.WithAnnouncementID("ann-2"))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ex-2", orders[0].ExchangeID)
}

func TestBuntStorage_UpdateOrder(t *testing.T) {
	storage, err := NewFromMemory()
	require.NoError(t, err)
	defer storage.Close()

	ctx := context.Background()

	order := &core.Order{
		ExchangeID: "ex-1",
		Pair:       "MNTUSDT",
		Side:       core.SideTypeBuy,
		Type:       core.OrderTypeMarket,
		Status:     core.OrderStatusTypeNew,
		Quantity:   10,
	}
	require.NoError(t, storage.CreateOrder(ctx, order))

	order.Status = core.OrderStatusTypeFilled
	require.NoError(t, storage.UpdateOrder(ctx, order))

	orders, err := storage.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, core.OrderStatusTypeFilled, orders[0].Status)

	missing := &core.Order{ID: 999, Pair: "MNTUSDT"}
	assert.Error(t, storage.UpdateOrder(ctx, missing))
}

func TestBuntStorage_SeenSurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "launchwatch.db")
	ctx := context.Background()

	storage, err := NewFromFile(file)
	require.NoError(t, err)
	require.NoError(t, storage.MarkSeen(ctx, "ann-1", "ann-2"))
	require.NoError(t, storage.Close())

	reopened, err := NewFromFile(file)
	require.NoError(t, err)
	defer reopened.Close()

	seen, err := reopened.Contains(ctx, "ann-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = reopened.Contains(ctx, "ann-3")
	require.NoError(t, err)
	assert.False(t, seen)

	all, err := reopened.All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ann-1", "ann-2"}, all)
}

func TestBuntStorage_IDCounterSurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "launchwatch.db")
	ctx := context.Background()

	storage, err := NewFromFile(file)
	require.NoError(t, err)

	first := &core.Order{Pair: "MNTUSDT", Status: core.OrderStatusTypeFilled}
	require.NoError(t, storage.CreateOrder(ctx, first))
	require.NoError(t, storage.Close())

	reopened, err := NewFromFile(file)
	require.NoError(t, err)
	defer reopened.Close()

	second := &core.Order{Pair: "MNTUSDT", Status: core.OrderStatusTypeFilled}
	require.NoError(t, reopened.CreateOrder(ctx, second))
	assert.Greater(t, second.ID, first.ID)
}

func TestSettingsStore_UpdateValidatesBeforePersisting(t *testing.T) {
	storage, err := NewFromMemory()
	require.NoError(t, err)
	defer storage.Close()

	store, err := NewSettingsStore(storage)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTradingSettings(), store.Get())

	quantity := 25.0
	leverage := 10
	updated, err := store.Update(core.TradingPatch{Quantity: &quantity, Leverage: &leverage})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Quantity)
	assert.Equal(t, 10, updated.Leverage)
	assert.Equal(t, updated, store.Get())

	bad := -5.0
	_, err = store.Update(core.TradingPatch{Quantity: &bad})

	var validationErr *core.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "quantity", validationErr.Field)

	// rejected update leaves the settings unchanged
	assert.Equal(t, updated, store.Get())
}

func TestSettingsStore_SurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "launchwatch.db")

	storage, err := NewFromFile(file)
	require.NoError(t, err)

	store, err := NewSettingsStore(storage)
	require.NoError(t, err)

	stopLoss := 1.5
	_, err = store.Update(core.TradingPatch{StopLossPct: &stopLoss})
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	reopened, err := NewFromFile(file)
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := NewSettingsStore(reopened)
	require.NoError(t, err)
	assert.Equal(t, 1.5, restored.Get().StopLossPct)
}
