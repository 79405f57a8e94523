package core

import (
	"context"
)

// Exchange combines order execution and market data access
type Exchange interface {
	Broker
	Feeder
}

// Feeder provides read-only market information
type Feeder interface {
	AssetsInfo(ctx context.Context, pair string) (AssetInfo, error)
	LastQuote(ctx context.Context, pair string) (float64, error)
}

// Broker executes orders and exposes account state.
// Implementations must be swappable between testnet and live backends
// without callers changing behavior.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	Order(ctx context.Context, pair, exchangeID string) (Order, error)
	SetLeverage(ctx context.Context, pair string, leverage int) error
	CreateOrderMarket(ctx context.Context, side SideType, pair string, quantity float64, stop, take *float64) (Order, error)
}

// AnnouncementSource fetches the current announcement list.
// The returned slice is a snapshot; ordering follows the upstream feed
// (newest first).
type AnnouncementSource interface {
	Announcements(ctx context.Context) ([]Announcement, error)
}

// AnnouncementConsumer processes a single new announcement.
// Consumers are invoked sequentially within the polling cycle.
type AnnouncementConsumer func(ctx context.Context, announcement Announcement)

// Notifier delivers outbound alerts
type Notifier interface {
	Notify(string)
	OnAnnouncement(announcement Announcement)
	OnOrder(order Order)
	OnError(err error)
}

// NotifierWithStart is a notifier with its own inbound command loop
type NotifierWithStart interface {
	Notifier
	Start()
}
