package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/launchwatch/core"
	logzerolog "github.com/raykavin/launchwatch/logger/zerolog"
)

func testLogger() core.Logger {
	l := zerolog.Nop()
	return logzerolog.NewAdapter(&l)
}

type fakeExchange struct {
	mu           sync.Mutex
	quote        float64
	leverage     int
	orderErrs    int
	rejectErr    error
	createCalls  int
	lastStop     *float64
	lastTake     *float64
	lastQuantity float64
}

// rejectedOrderError mimics an exchange error that is pointless to retry
type rejectedOrderError struct{ msg string }

func (e *rejectedOrderError) Error() string   { return e.msg }
func (e *rejectedOrderError) Temporary() bool { return false }

func (e *fakeExchange) AssetsInfo(_ context.Context, pair string) (core.AssetInfo, error) {
	return core.AssetInfo{
		BaseAsset:   "MNT",
		QuoteAsset:  "USDT",
		MinQuantity: 1,
		StepSize:    1,
		TickSize:    0.0001,
	}, nil
}

func (e *fakeExchange) LastQuote(_ context.Context, _ string) (float64, error) {
	return e.quote, nil
}

func (e *fakeExchange) Account(_ context.Context) (core.Account, error) {
	return core.Account{}, nil
}

func (e *fakeExchange) Order(_ context.Context, _, _ string) (core.Order, error) {
	return core.Order{}, nil
}

func (e *fakeExchange) SetLeverage(_ context.Context, _ string, leverage int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leverage = leverage
	return nil
}

func (e *fakeExchange) CreateOrderMarket(
	_ context.Context, side core.SideType, pair string, quantity float64, stop, take *float64,
) (core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.createCalls++
	if e.rejectErr != nil {
		return core.Order{}, e.rejectErr
	}
	if e.orderErrs > 0 {
		e.orderErrs--
		return core.Order{}, errors.New("exchange unavailable")
	}

	e.lastQuantity = quantity
	e.lastStop = stop
	e.lastTake = take

	return core.Order{
		ExchangeID: "order-1",
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeMarket,
		Status:     core.OrderStatusTypeFilled,
		Price:      e.quote,
		Quantity:   quantity,
	}, nil
}

type memoryOrderStorage struct {
	mu     sync.Mutex
	orders []*core.Order
}

func (s *memoryOrderStorage) CreateOrder(_ context.Context, order *core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *order
	s.orders = append(s.orders, &stored)
	return nil
}

func (s *memoryOrderStorage) UpdateOrder(_ context.Context, _ *core.Order) error {
	return nil
}

func (s *memoryOrderStorage) Orders(_ context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*core.Order
	for _, order := range s.orders {
		keep := true
		for _, filter := range filters {
			if !filter(*order) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

type staticSettings struct {
	settings core.TradingSettings
}

func (s *staticSettings) Get() core.TradingSettings { return s.settings }

func (s *staticSettings) Update(patch core.TradingPatch) (core.TradingSettings, error) {
	merged := s.settings.Apply(patch)
	if err := merged.Validate(); err != nil {
		return s.settings, err
	}
	s.settings = merged
	return merged, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []core.Order
	errs   []error
}

func (n *recordingNotifier) Notify(string)                    {}
func (n *recordingNotifier) OnAnnouncement(core.Announcement) {}

func (n *recordingNotifier) OnOrder(order core.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

func (n *recordingNotifier) OnError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func testSettings(tradeOnAnnouncement bool) core.Settings {
	return core.Settings{
		Pair:                "MNTUSDT",
		TradeOnAnnouncement: tradeOnAnnouncement,
		CheckInterval:       time.Minute,
		RetryDelay:          time.Millisecond,
		MaxRetries:          3,
	}
}

func mntAnnouncement(id string) core.Announcement {
	return core.Announcement{
		ID:    id,
		Title: "New Launchpool: stake to earn MNT",
		URL:   "https://announcements.bybit.com/article/" + id,
	}
}

func TestController_PlacesOrderWithProtectivePrices(t *testing.T) {
	exch := &fakeExchange{quote: 100}
	storage := &memoryOrderStorage{}
	notifier := &recordingNotifier{}
	settings := &staticSettings{settings: core.TradingSettings{
		Quantity:      10,
		StopLossPct:   2,
		TakeProfitPct: 4,
		Leverage:      5,
	}}

	controller := NewController(exch, storage, settings, testSettings(true), testLogger(),
		WithNotifier(notifier))

	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 5, exch.leverage)
	require.NotNil(t, exch.lastStop)
	require.NotNil(t, exch.lastTake)
	assert.InDelta(t, 98.0, *exch.lastStop, 1e-9)
	assert.InDelta(t, 104.0, *exch.lastTake, 1e-9)

	orders, err := storage.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "a", orders[0].AnnouncementID)
	require.Len(t, notifier.orders, 1)
}

func TestController_SkipsZeroPercentProtections(t *testing.T) {
	exch := &fakeExchange{quote: 100}
	settings := &staticSettings{settings: core.TradingSettings{
		Quantity: 10,
		Leverage: 1,
	}}

	controller := NewController(exch, &memoryOrderStorage{}, settings, testSettings(true), testLogger())
	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 1, exch.createCalls)
	assert.Nil(t, exch.lastStop)
	assert.Nil(t, exch.lastTake)
}

func TestController_SameAnnouncementTradesOnce(t *testing.T) {
	exch := &fakeExchange{quote: 100}
	storage := &memoryOrderStorage{}
	settings := &staticSettings{settings: core.DefaultTradingSettings()}

	controller := NewController(exch, storage, settings, testSettings(true), testLogger())

	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))
	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 1, exch.createCalls)

	orders, err := storage.Orders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestController_SymbolPolicyRequiresMention(t *testing.T) {
	exch := &fakeExchange{quote: 100}
	settings := &staticSettings{settings: core.DefaultTradingSettings()}

	controller := NewController(exch, &memoryOrderStorage{}, settings, testSettings(false), testLogger())

	controller.OnAnnouncement(context.Background(), core.Announcement{
		ID:    "other",
		Title: "New Launchpool: stake to earn XYZ",
	})
	assert.Equal(t, 0, exch.createCalls)

	controller.OnAnnouncement(context.Background(), mntAnnouncement("mnt"))
	assert.Equal(t, 1, exch.createCalls)
}

func TestController_RetriesThenReportsFailure(t *testing.T) {
	exch := &fakeExchange{quote: 100, orderErrs: 10}
	notifier := &recordingNotifier{}
	settings := &staticSettings{settings: core.DefaultTradingSettings()}

	controller := NewController(exch, &memoryOrderStorage{}, settings, testSettings(true), testLogger(),
		WithNotifier(notifier))

	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 3, exch.createCalls)
	require.Len(t, notifier.errs, 1)
}

func TestController_DoesNotRetryRejectedOrders(t *testing.T) {
	exch := &fakeExchange{quote: 100, rejectErr: &rejectedOrderError{msg: "insufficient balance"}}
	notifier := &recordingNotifier{}
	settings := &staticSettings{settings: core.DefaultTradingSettings()}

	controller := NewController(exch, &memoryOrderStorage{}, settings, testSettings(true), testLogger(),
		WithNotifier(notifier))

	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 1, exch.createCalls)
	require.Len(t, notifier.errs, 1)
	assert.ErrorContains(t, notifier.errs[0], "insufficient balance")
}

func TestController_InvalidSettingsBlockTrade(t *testing.T) {
	exch := &fakeExchange{quote: 100}
	notifier := &recordingNotifier{}
	settings := &staticSettings{settings: core.TradingSettings{Quantity: -1, Leverage: 1}}

	controller := NewController(exch, &memoryOrderStorage{}, settings, testSettings(true), testLogger(),
		WithNotifier(notifier))

	controller.OnAnnouncement(context.Background(), mntAnnouncement("a"))

	assert.Equal(t, 0, exch.createCalls)
	require.Len(t, notifier.errs, 1)

	var validationErr *core.ValidationError
	assert.ErrorAs(t, notifier.errs[0], &validationErr)
}
