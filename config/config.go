// Package config loads the startup configuration from environment
// variables, with optional .env file support.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/raykavin/launchwatch/core"
)

// Default configuration values
const (
	DefaultSymbol        = "MNTUSDT"
	DefaultCheckInterval = "60s"
	DefaultRetryDelay    = "5s"
	DefaultMaxRetries    = 3
	DefaultLogLevel      = "INFO"
	DefaultStoragePath   = "launchwatch.db"
)

// BybitConfig holds Bybit exchange credentials and environment selection
type BybitConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// TelegramConfig holds Telegram bot credentials and the chat allow-list
type TelegramConfig struct {
	Enabled      bool
	Token        string
	Chats        []int64
	PasswordHash string
}

// Config is the full startup configuration. Runtime-tunable trading
// parameters live in the settings store, not here; the Trading block
// only seeds the store on first run.
type Config struct {
	Bybit    BybitConfig
	Telegram TelegramConfig
	Trading  core.TradingSettings

	Symbol              string
	TradeOnAnnouncement bool

	CheckInterval time.Duration
	RetryDelay    time.Duration
	MaxRetries    int

	LogLevel    string
	StoragePath string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present. Missing credentials
// or out-of-range values abort startup with a descriptive error.
func Load() (*Config, error) {
	// Best effort, the environment wins over the file
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("TESTNET", true)
	v.SetDefault("TELEGRAM_ENABLED", true)
	v.SetDefault("TRADE_SYMBOL", DefaultSymbol)
	v.SetDefault("TRADE_ON_ANNOUNCEMENT", false)
	v.SetDefault("CHECK_INTERVAL", DefaultCheckInterval)
	v.SetDefault("RETRY_DELAY", DefaultRetryDelay)
	v.SetDefault("MAX_RETRIES", DefaultMaxRetries)
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)
	v.SetDefault("STORAGE_PATH", DefaultStoragePath)
	v.SetDefault("TRADE_QUANTITY", core.DefaultTradingSettings().Quantity)
	v.SetDefault("STOP_LOSS_PERCENTAGE", core.DefaultTradingSettings().StopLossPct)
	v.SetDefault("TAKE_PROFIT_PERCENTAGE", core.DefaultTradingSettings().TakeProfitPct)
	v.SetDefault("LEVERAGE", core.DefaultTradingSettings().Leverage)

	checkInterval, err := parseInterval(v.GetString("CHECK_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECK_INTERVAL: %w", err)
	}

	retryDelay, err := parseInterval(v.GetString("RETRY_DELAY"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_DELAY: %w", err)
	}

	chats, err := parseChatIDs(v.GetString("TELEGRAM_CHAT_ID"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	passwordHash, err := resolvePasswordHash(v.GetString("TELEGRAM_PASSWORD"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_PASSWORD: %w", err)
	}

	cfg := &Config{
		Bybit: BybitConfig{
			APIKey:    v.GetString("BYBIT_API_KEY"),
			APISecret: v.GetString("BYBIT_API_SECRET"),
			Testnet:   v.GetBool("TESTNET"),
		},
		Telegram: TelegramConfig{
			Enabled:      v.GetBool("TELEGRAM_ENABLED"),
			Token:        v.GetString("TELEGRAM_BOT_TOKEN"),
			Chats:        chats,
			PasswordHash: passwordHash,
		},
		Trading: core.TradingSettings{
			Quantity:      v.GetFloat64("TRADE_QUANTITY"),
			StopLossPct:   v.GetFloat64("STOP_LOSS_PERCENTAGE"),
			TakeProfitPct: v.GetFloat64("TAKE_PROFIT_PERCENTAGE"),
			Leverage:      v.GetInt("LEVERAGE"),
		},
		Symbol:              strings.ToUpper(v.GetString("TRADE_SYMBOL")),
		TradeOnAnnouncement: v.GetBool("TRADE_ON_ANNOUNCEMENT"),
		CheckInterval:       checkInterval,
		RetryDelay:          retryDelay,
		MaxRetries:          v.GetInt("MAX_RETRIES"),
		LogLevel:            strings.ToUpper(v.GetString("LOG_LEVEL")),
		StoragePath:         v.GetString("STORAGE_PATH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Settings builds the core settings snapshot used to wire the bot
func (c *Config) Settings() core.Settings {
	return core.Settings{
		Pair:                c.Symbol,
		TradeOnAnnouncement: c.TradeOnAnnouncement,
		CheckInterval:       c.CheckInterval,
		RetryDelay:          c.RetryDelay,
		MaxRetries:          c.MaxRetries,
		Telegram: core.TelegramSettings{
			Enabled:      c.Telegram.Enabled,
			Token:        c.Telegram.Token,
			Chats:        c.Telegram.Chats,
			PasswordHash: c.Telegram.PasswordHash,
		},
	}
}

// ZerologLevel maps the configured log level to a zerolog level name
func (c *Config) ZerologLevel() string {
	switch c.LogLevel {
	case "DEBUG":
		return "debug"
	case "INFO":
		return "info"
	case "WARNING":
		return "warn"
	case "ERROR":
		return "error"
	case "CRITICAL":
		return "fatal"
	default:
		return "info"
	}
}

func (c *Config) validate() error {
	if c.Bybit.APIKey == "" || c.Bybit.APISecret == "" {
		return fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET are required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when telegram is enabled")
		}
		if len(c.Telegram.Chats) == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required when telegram is enabled")
		}
		// Without a password /unlock can never succeed and settings
		// stay frozen at their startup values
		if c.Telegram.PasswordHash == "" {
			return fmt.Errorf("TELEGRAM_PASSWORD is required when telegram is enabled")
		}
	}

	if c.Symbol == "" {
		return fmt.Errorf("TRADE_SYMBOL must not be empty")
	}

	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY must not be negative")
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}

	switch c.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL")
	}

	if err := c.Trading.Validate(); err != nil {
		return fmt.Errorf("invalid trading defaults: %w", err)
	}

	return nil
}

// parseInterval accepts either a bare number of seconds ("60") or a
// duration string ("1m30s")
func parseInterval(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return str2duration.ParseDuration(value)
}

// parseChatIDs splits a comma-separated list of Telegram chat IDs
func parseChatIDs(value string) ([]int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	chats := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q: %w", part, err)
		}
		chats = append(chats, id)
	}

	return chats, nil
}

// resolvePasswordHash hashes a plain-text password from the environment.
// A value that already is a bcrypt hash is kept as-is, so operators can
// avoid storing the plain text anywhere.
func resolvePasswordHash(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	if strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$") {
		return value, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}
