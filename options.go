package launchwatch

import (
	"github.com/raykavin/launchwatch/core"
)

// Option is a functional option for configuring a Bot instance
type Option func(*Bot)

// WithStorage sets the order storage, by default a local file called
// launchwatch.db is used
func WithStorage(storage core.OrderStorage) Option {
	return func(bot *Bot) {
		bot.storage = storage
	}
}

// WithSeenStore sets the store for processed announcement IDs
func WithSeenStore(seen core.SeenStore) Option {
	return func(bot *Bot) {
		bot.seen = seen
	}
}

// WithSettingsStore sets the store for the runtime trade settings
func WithSettingsStore(settings core.SettingsStore) Option {
	return func(bot *Bot) {
		bot.trading = settings
	}
}

// WithSource sets the announcement source, by default the public Bybit
// announcement API is polled
func WithSource(source core.AnnouncementSource) Option {
	return func(bot *Bot) {
		bot.source = source
	}
}

// WithNotifier registers an additional notifier next to Telegram,
// currently only email is shipped
func WithNotifier(notifier core.Notifier) Option {
	return func(bot *Bot) {
		bot.notifier = notifier
	}
}

// WithLogger overrides the default logger
func WithLogger(log core.Logger) Option {
	return func(bot *Bot) {
		bot.log = log
	}
}

// WithTradingDisabled keeps the bot in alert-only mode, announcements
// are notified but never traded
func WithTradingDisabled() Option {
	return func(bot *Bot) {
		bot.tradeOff = true
	}
}
