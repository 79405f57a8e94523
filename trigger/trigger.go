// Package trigger converts new listing announcements into leveraged
// market orders with protective stop-loss and take-profit prices.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
)

// Option configures the trade controller
type Option func(*Controller)

// WithNotifier delivers order and failure alerts
func WithNotifier(notifier core.Notifier) Option {
	return func(c *Controller) {
		c.notifier = notifier
	}
}

// WithRetry overrides the order placement retry budget
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Controller) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// Controller reacts to announcements by placing a single long market
// order per announcement. An announcement that already produced an order
// never produces another one, even across restarts.
type Controller struct {
	exchange core.Exchange
	storage  core.OrderStorage
	settings core.SettingsStore
	notifier core.Notifier
	log      core.Logger

	pair                string
	baseAsset           string
	tradeOnAnnouncement bool
	maxRetries          int
	retryDelay          time.Duration

	// serializes trades so two announcements in one batch
	// cannot race on the idempotence check
	mu sync.Mutex
}

// NewController creates a trade controller for the configured pair
func NewController(
	exch core.Exchange,
	storage core.OrderStorage,
	settings core.SettingsStore,
	botSettings core.Settings,
	log core.Logger,
	options ...Option,
) *Controller {
	base, _ := exchange.SplitAssetQuote(botSettings.Pair)

	controller := &Controller{
		exchange:            exch,
		storage:             storage,
		settings:            settings,
		log:                 log,
		pair:                botSettings.Pair,
		baseAsset:           base,
		tradeOnAnnouncement: botSettings.TradeOnAnnouncement,
		maxRetries:          botSettings.MaxRetries,
		retryDelay:          botSettings.RetryDelay,
	}

	for _, option := range options {
		option(controller)
	}

	return controller
}

// OnAnnouncement is the announcement consumer hook. Failures are logged
// and reported, never propagated, so the polling loop stays alive.
func (c *Controller) OnAnnouncement(ctx context.Context, announcement core.Announcement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.shouldTrade(announcement) {
		c.log.WithField("id", announcement.ID).
			Debugf("announcement does not mention %s, skipping trade", c.baseAsset)
		return
	}

	placed, err := c.storage.Orders(ctx, core.WithAnnouncementID(announcement.ID))
	if err != nil {
		c.reportError(err)
		return
	}
	if len(placed) > 0 {
		c.log.WithField("id", announcement.ID).Info("order already placed for announcement")
		return
	}

	order, err := c.trade(ctx, announcement)
	if err != nil {
		c.reportError(err)
		return
	}

	c.log.WithFields(map[string]any{
		"pair":     order.Pair,
		"quantity": order.Quantity,
		"price":    order.Price,
	}).Info("trade placed")

	if c.notifier != nil {
		c.notifier.OnOrder(order)
	}
}

// shouldTrade applies the symbol policy. With trade-on-announcement
// enabled every new announcement triggers the configured pair, otherwise
// the title must mention the pair base asset.
func (c *Controller) shouldTrade(announcement core.Announcement) bool {
	if c.tradeOnAnnouncement {
		return true
	}
	return announcement.Mentions(c.baseAsset)
}

// trade places the market order with stop-loss and take-profit derived
// from the last traded price
func (c *Controller) trade(ctx context.Context, announcement core.Announcement) (core.Order, error) {
	settings := c.settings.Get()
	if err := settings.Validate(); err != nil {
		return core.Order{}, err
	}

	if err := c.exchange.SetLeverage(ctx, c.pair, settings.Leverage); err != nil {
		return core.Order{}, err
	}

	info, err := c.exchange.AssetsInfo(ctx, c.pair)
	if err != nil {
		return core.Order{}, err
	}

	quote, err := c.exchange.LastQuote(ctx, c.pair)
	if err != nil {
		return core.Order{}, err
	}

	var stop, take *float64
	if settings.StopLossPct > 0 {
		price := info.RoundPrice(settings.StopLossPrice(quote))
		stop = &price
	}
	if settings.TakeProfitPct > 0 {
		price := info.RoundPrice(settings.TakeProfitPrice(quote))
		take = &price
	}

	order, err := c.createOrderWithRetry(ctx, settings.Quantity, stop, take)
	if err != nil {
		return core.Order{}, err
	}

	order.AnnouncementID = announcement.ID
	if err := c.storage.CreateOrder(ctx, &order); err != nil {
		c.log.WithError(err).Error("order placed but could not be stored")
	}

	return order, nil
}

// createOrderWithRetry retries transient placement failures with a fixed
// delay between attempts. An error that declares itself non-temporary,
// like a rejected order or insufficient balance, fails immediately;
// resubmitting it would only burn the retry budget.
func (c *Controller) createOrderWithRetry(
	ctx context.Context,
	quantity float64,
	stop, take *float64,
) (core.Order, error) {
	wait := &backoff.Backoff{
		Min:    c.retryDelay,
		Max:    c.retryDelay,
		Factor: 1,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		order, err := c.exchange.CreateOrderMarket(ctx, core.SideTypeBuy, c.pair, quantity, stop, take)
		if err == nil {
			return order, nil
		}

		lastErr = err

		var transient interface{ Temporary() bool }
		if errors.As(err, &transient) && !transient.Temporary() {
			c.log.WithError(err).Error("order placement rejected, not retrying")
			break
		}

		c.log.WithError(err).Warnf("order placement failed, attempt %d/%d", attempt, c.maxRetries)

		if attempt == c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return core.Order{}, ctx.Err()
		case <-time.After(wait.Duration()):
		}
	}

	return core.Order{}, lastErr
}

func (c *Controller) reportError(err error) {
	c.log.WithError(err).Error("trade trigger failed")
	if c.notifier != nil {
		c.notifier.OnError(err)
	}
}
