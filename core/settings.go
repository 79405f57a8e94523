package core

import "time"

// Settings represents the main configuration for the application
type Settings struct {
	Pair string // trading pair triggered on new listings, e.g. MNTUSDT

	// TradeOnAnnouncement controls the symbol-match policy: when true any
	// new Launchpool announcement triggers a trade on Pair; when false only
	// announcements whose title mentions the pair base asset do.
	TradeOnAnnouncement bool

	CheckInterval time.Duration // delay between announcement polls
	RetryDelay    time.Duration // delay between failed attempts
	MaxRetries    int           // attempts before a failure is surfaced

	Telegram TelegramSettings
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Enabled bool
	Token   string
	Chats   []int64 // authorized chat IDs

	// PasswordHash is the bcrypt hash of the settings password. Settings
	// mutations are rejected until the chat presents the password.
	PasswordHash string
}
