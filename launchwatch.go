// Package launchwatch wires the announcement watcher, the trade trigger
// and the notification channels into a runnable bot.
package launchwatch

import (
	"context"
	"fmt"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
	"github.com/raykavin/launchwatch/feed"
	"github.com/raykavin/launchwatch/notification"
	"github.com/raykavin/launchwatch/storage"
	"github.com/raykavin/launchwatch/trigger"
)

const defaultDatabase = "launchwatch.db"

// Bot polls Bybit Launchpool announcements, alerts the configured chats
// about every new one, and optionally opens a leveraged long on the
// watched pair.
type Bot struct {
	settings core.Settings
	exchange core.Exchange
	storage  core.OrderStorage
	seen     core.SeenStore
	trading  core.SettingsStore
	source   core.AnnouncementSource
	notifier core.Notifier
	telegram core.NotifierWithStart
	log      core.Logger

	watcher    *feed.Watcher
	controller *trigger.Controller
	tradeOff   bool
}

// NewBot creates a bot instance with the provided settings and exchange
func NewBot(ctx context.Context, settings core.Settings, exch core.Exchange, options ...Option) (*Bot, error) {
	bot := &Bot{
		settings: settings,
		exchange: exch,
		log:      DefaultLog,
	}

	if asset, quote := exchange.SplitAssetQuote(settings.Pair); asset == "" || quote == "" {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidPair, settings.Pair)
	}

	for _, option := range options {
		option(bot)
	}

	if err := bot.initializeStorage(); err != nil {
		return nil, err
	}

	if bot.source == nil {
		bot.source = feed.NewBybitSource(feed.BybitSourceConfig{})
	}

	if err := bot.initializeNotifications(); err != nil {
		return nil, err
	}

	if !bot.tradeOff {
		bot.controller = trigger.NewController(
			bot.exchange, bot.storage, bot.trading, settings, bot.log,
			trigger.WithNotifier(bot.notifier),
		)
	}

	watcher, err := feed.NewWatcher(ctx, bot.source, bot.seen, bot.log,
		feed.WithInterval(settings.CheckInterval),
		feed.WithRetry(settings.MaxRetries, settings.RetryDelay),
		feed.WithNotifier(bot.notifier),
	)
	if err != nil {
		return nil, err
	}
	bot.watcher = watcher

	if bot.notifier != nil {
		bot.watcher.Subscribe(func(_ context.Context, announcement core.Announcement) {
			bot.notifier.OnAnnouncement(announcement)
		})
	}
	if bot.controller != nil {
		bot.watcher.Subscribe(bot.controller.OnAnnouncement)
	}

	return bot, nil
}

// initializeStorage sets up the order, seen and settings stores over a
// single local database unless custom stores were injected
func (b *Bot) initializeStorage() error {
	if b.storage != nil && b.seen != nil && b.trading != nil {
		return nil
	}

	db, err := storage.NewFromFile(defaultDatabase)
	if err != nil {
		return err
	}

	if b.storage == nil {
		b.storage = db
	}
	if b.seen == nil {
		b.seen = db
	}
	if b.trading == nil {
		b.trading, err = storage.NewSettingsStore(db)
		if err != nil {
			return err
		}
	}

	return nil
}

// initializeNotifications sets up the Telegram command interface and
// merges it with any injected notifier
func (b *Bot) initializeNotifications() error {
	if b.settings.Telegram.Enabled {
		telegram, err := notification.NewTelegram(
			b.exchange, b.storage, b.trading, b.settings, b.log,
		)
		if err != nil {
			return err
		}
		b.telegram = telegram

		if b.notifier == nil {
			b.notifier = telegram
		} else {
			b.notifier = &multiNotifier{notifiers: []core.Notifier{telegram, b.notifier}}
		}
	}

	return nil
}

// SeenStore exposes the seen store, used by the one-shot CLI commands
func (b *Bot) SeenStore() core.SeenStore {
	return b.seen
}

// Run starts the command interface and blocks polling announcements
// until the context is canceled
func (b *Bot) Run(ctx context.Context) error {
	if b.telegram != nil {
		b.telegram.Start()
	}

	b.log.WithFields(map[string]any{
		"pair":    b.settings.Pair,
		"trading": b.controller != nil,
	}).Info("launchwatch started")

	return b.watcher.Start(ctx)
}

// multiNotifier fans every alert out to all registered notifiers
type multiNotifier struct {
	notifiers []core.Notifier
}

func (m *multiNotifier) Notify(text string) {
	for _, notifier := range m.notifiers {
		notifier.Notify(text)
	}
}

func (m *multiNotifier) OnAnnouncement(announcement core.Announcement) {
	for _, notifier := range m.notifiers {
		notifier.OnAnnouncement(announcement)
	}
}

func (m *multiNotifier) OnOrder(order core.Order) {
	for _, notifier := range m.notifiers {
		notifier.OnOrder(order)
	}
}

func (m *multiNotifier) OnError(err error) {
	for _, notifier := range m.notifiers {
		notifier.OnError(err)
	}
}
