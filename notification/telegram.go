// Package notification provides implementations for outbound alert
// channels and the Telegram command interface.
package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
)

const pollingTimeout = 10 * time.Second

var (
	setRegexp    = regexp.MustCompile(`/set\s+(?P<field>[a-z_]+)\s+(?P<value>\d+(?:\.\d+)?)`)
	unlockRegexp = regexp.MustCompile(`/unlock\s+(?P<password>\S+)`)
)

// Telegram implements core.NotifierWithStart. Outbound alerts fan out to
// every authorized chat; inbound commands let those chats inspect and
// tune the bot at runtime.
type Telegram struct {
	settings    core.Settings
	trading     core.SettingsStore
	exchange    core.Exchange
	storage     core.OrderStorage
	auth        *Auth
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
	log         core.Logger
}

// Option is a function that configures a telegram instance
type Option func(telegram *Telegram)

// WithClient overrides the bot client, used in tests
func WithClient(client *tb.Bot) Option {
	return func(telegram *Telegram) {
		telegram.client = client
	}
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(
	exch core.Exchange,
	storage core.OrderStorage,
	trading core.SettingsStore,
	settings core.Settings,
	log core.Logger,
	options ...Option,
) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}

	bot := &Telegram{
		settings:    settings,
		trading:     trading,
		exchange:    exch,
		storage:     storage,
		auth:        NewAuth(settings.Telegram.PasswordHash),
		defaultMenu: menu,
		log:         log,
	}

	for _, option := range options {
		option(bot)
	}

	if bot.client == nil {
		poller := &tb.LongPoller{Timeout: pollingTimeout}
		client, err := tb.NewBot(tb.Settings{
			ParseMode: tb.ModeMarkdown,
			Token:     settings.Telegram.Token,
			Poller:    newChatMiddleware(poller, settings, log),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		bot.client = client
	}

	setupKeyboard(menu)
	if err := setupCommands(bot.client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	registerHandlers(bot.client, bot)

	return bot, nil
}

// newChatMiddleware drops updates from chats outside the allow-list
func newChatMiddleware(poller *tb.LongPoller, settings core.Settings, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Chat == nil {
			log.Error("message or chat is nil ", u)
			return false
		}

		if slices.Contains(settings.Telegram.Chats, u.Message.Chat.ID) {
			return true
		}

		log.Error("unauthorized chat ", u.Message.Chat.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn   = menu.Text("/status")
		settingsBtn = menu.Text("/settings")
		balanceBtn  = menu.Text("/balance")
		helpBtn     = menu.Text("/help")
		testBtn     = menu.Text("/test")
	)

	menu.Reply(
		menu.Row(statusBtn, settingsBtn, balanceBtn),
		menu.Row(helpBtn, testBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Check bot status"},
		{Text: "/settings", Description: "Show current trade settings"},
		{Text: "/set", Description: "Change a trade setting"},
		{Text: "/unlock", Description: "Unlock settings changes"},
		{Text: "/balance", Description: "Wallet balance"},
		{Text: "/test", Description: "Send a test alert"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *Telegram) {
	client.Handle("/start", bot.StartHandle)
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/settings", bot.SettingsHandle)
	client.Handle("/set", bot.SetHandle)
	client.Handle("/unlock", bot.UnlockHandle)
	client.Handle("/balance", bot.BalanceHandle)
	client.Handle("/test", bot.TestHandle)
}

// Start begins the Telegram bot and notifies all authorized chats
func (t *Telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions(
		fmt.Sprintf("Bot initialized.\nWatching Launchpool announcements for `%s`.", t.settings.Pair),
		t.defaultMenu,
	)
}

// Notification methods
// -------------------

// Notify sends a message to all authorized chats
func (t *Telegram) Notify(text string) {
	for _, chat := range t.settings.Telegram.Chats {
		_, err := t.client.Send(&tb.Chat{ID: chat}, text)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

// sendMessageWithOptions sends a message to all authorized chats with
// additional options
func (t *Telegram) sendMessageWithOptions(text string, options ...any) {
	for _, chat := range t.settings.Telegram.Chats {
		_, err := t.client.Send(&tb.Chat{ID: chat}, text, options...)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific chat
func (t *Telegram) sendMessage(to *tb.Chat, text string, options ...any) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// Command handlers
// ---------------

// StartHandle greets the chat and shows the keyboard
func (t *Telegram) StartHandle(m *tb.Message) {
	t.sendMessage(m.Chat,
		fmt.Sprintf("Watching Launchpool announcements for `%s`.\nUse /help for available commands.", t.settings.Pair),
		t.defaultMenu,
	)
}

// HelpHandle displays available commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Chat, strings.Join(lines, "\n"))
}

// StatusHandle summarizes what the bot is doing and what it has done
func (t *Telegram) StatusHandle(m *tb.Message) {
	orders, err := t.storage.Orders(context.Background(), core.WithPair(t.settings.Pair))
	if err != nil {
		t.OnError(err)
		return
	}

	open, err := t.storage.Orders(context.Background(),
		core.WithPair(t.settings.Pair),
		core.WithStatusIn(core.OrderStatusTypeNew, core.OrderStatusTypePartiallyFilled),
	)
	if err != nil {
		t.OnError(err)
		return
	}

	policy := "announcements mentioning the base asset"
	if t.settings.TradeOnAnnouncement {
		policy = "every new announcement"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*STATUS*\nPair: `%s`\nTrigger: %s\nPoll interval: `%s`\nOrders placed: `%d`\nOpen orders: `%d`\n",
		t.settings.Pair, policy, t.settings.CheckInterval, len(orders), len(open))

	if len(orders) > 0 {
		last := orders[len(orders)-1]
		fmt.Fprintf(&sb, "-----\nLast order:\n`%s`", last)
	}

	t.sendMessage(m.Chat, sb.String())
}

// SettingsHandle shows the current trade settings
func (t *Telegram) SettingsHandle(m *tb.Message) {
	settings := t.trading.Get()
	t.sendMessage(m.Chat, fmt.Sprintf(
		"*TRADE SETTINGS*\nQuantity: `%.4f`\nStop loss: `%.2f%%`\nTake profit: `%.2f%%`\nLeverage: `%dx`",
		settings.Quantity, settings.StopLossPct, settings.TakeProfitPct, settings.Leverage,
	))
}

// UnlockHandle opens a time-limited settings session for the chat
func (t *Telegram) UnlockHandle(m *tb.Message) {
	match := unlockRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Chat, "Usage: `/unlock <password>`")
		return
	}

	expiry, err := t.auth.Unlock(m.Chat.ID, extractCommandParams(unlockRegexp, match)["password"])
	if err != nil {
		var locked *LockedError
		if errors.As(err, &locked) {
			t.sendMessage(m.Chat, fmt.Sprintf("🔒 Too many failed attempts. Locked until `%s`.",
				locked.Until.Format(time.TimeOnly)))
			return
		}
		t.sendMessage(m.Chat, "Wrong password.")
		return
	}

	t.sendMessage(m.Chat, fmt.Sprintf("🔓 Settings unlocked until `%s`.", expiry.Format(time.TimeOnly)))
}

// SetHandle changes a single trade setting. The chat must have an
// active unlock session.
func (t *Telegram) SetHandle(m *tb.Message) {
	if !t.auth.Unlocked(m.Chat.ID) {
		t.sendMessage(m.Chat, "Settings are locked. Use `/unlock <password>` first.")
		return
	}

	match := setRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Chat,
			"Invalid command.\nExamples of usage:\n`/set quantity 25`\n`/set stop_loss 2.5`\n`/set take_profit 5`\n`/set leverage 10`")
		return
	}

	command := extractCommandParams(setRegexp, match)
	patch, err := buildPatch(command["field"], command["value"])
	if err != nil {
		t.sendMessage(m.Chat, err.Error())
		return
	}

	updated, err := t.trading.Update(patch)
	if err != nil {
		var validationErr *core.ValidationError
		if errors.As(err, &validationErr) {
			t.sendMessage(m.Chat, fmt.Sprintf("Rejected: %s.", validationErr.Error()))
			return
		}
		t.OnError(err)
		return
	}

	t.log.WithField("field", command["field"]).Info("trade settings updated via telegram")
	t.sendMessage(m.Chat, fmt.Sprintf(
		"Updated.\nQuantity: `%.4f`\nStop loss: `%.2f%%`\nTake profit: `%.2f%%`\nLeverage: `%dx`",
		updated.Quantity, updated.StopLossPct, updated.TakeProfitPct, updated.Leverage,
	))
}

// BalanceHandle shows the wallet balance
func (t *Telegram) BalanceHandle(m *tb.Message) {
	account, err := t.exchange.Account(context.Background())
	if err != nil {
		t.log.WithError(err).Error("failed to get account")
		t.OnError(err)
		return
	}

	message := "*BALANCE*\n"
	total := 0.0
	for _, balance := range account.Balances {
		message += fmt.Sprintf("%s: `%.4f`\n", balance.Asset, balance.Total())
		total += balance.Total()
	}
	message += fmt.Sprintf("-----\nTotal: `%.4f`\n", total)

	t.sendMessage(m.Chat, message)
}

// TestHandle runs a dry-run alert through the announcement path so the
// chat can verify the full notification format
func (t *Telegram) TestHandle(_ *tb.Message) {
	t.Notify("🔔 Test alert. Notifications are working.")
	t.OnAnnouncement(core.Announcement{
		Title:       fmt.Sprintf("Test: New Launchpool announcement for %s", t.settings.Pair),
		Description: "This is a simulated announcement, no trade was triggered.",
	})
}

// Event handlers
// -------------

// OnAnnouncement notifies chats about a new Launchpool announcement
func (t *Telegram) OnAnnouncement(announcement core.Announcement) {
	var sb strings.Builder
	sb.WriteString("📢 NEW LAUNCHPOOL ANNOUNCEMENT\n-----\n")
	fmt.Fprintf(&sb, "*%s*\n", announcement.Title)
	if announcement.Description != "" {
		fmt.Fprintf(&sb, "%s\n", announcement.Description)
	}
	if announcement.URL != "" {
		fmt.Fprintf(&sb, "%s\n", announcement.URL)
	}
	t.Notify(sb.String())
}

// OnOrder notifies chats about order status changes
func (t *Telegram) OnOrder(order core.Order) {
	title := t.getOrderStatusTitle(order)
	message := fmt.Sprintf("%s\n-----\n%s", title, order)
	t.Notify(message)
}

// getOrderStatusTitle returns a formatted title based on order status
func (t *Telegram) getOrderStatusTitle(order core.Order) string {
	switch order.Status {
	case core.OrderStatusTypeFilled:
		return fmt.Sprintf("✅ ORDER FILLED - %s", order.Pair)
	case core.OrderStatusTypeNew:
		return fmt.Sprintf("🆕 NEW ORDER - %s", order.Pair)
	case core.OrderStatusTypeCanceled, core.OrderStatusTypeRejected:
		return fmt.Sprintf("❌ ORDER CANCELED / REJECTED - %s", order.Pair)
	default:
		return fmt.Sprintf("ORDER UPDATE - %s", order.Pair)
	}
}

// OnError notifies chats about errors
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")

	var orderError *exchange.OrderError
	if errors.As(err, &orderError) {
		t.formatOrderError(&sb, orderError)
		t.Notify(sb.String())
		return
	}

	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// Helper methods
// -------------

// formatOrderError formats order-specific errors
func (t *Telegram) formatOrderError(sb *strings.Builder, orderError *exchange.OrderError) {
	sb.WriteString("-----\n")
	fmt.Fprintf(sb, "Pair: %s\n", orderError.Pair)
	fmt.Fprintf(sb, "Quantity: %.4f\n", orderError.Quantity)
	sb.WriteString("-----\n")
	sb.WriteString(orderError.Err.Error())
}

// buildPatch maps a /set field name onto a settings patch
func buildPatch(field, raw string) (core.TradingPatch, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.TradingPatch{}, fmt.Errorf("could not parse value %q", raw)
	}

	switch field {
	case "quantity":
		return core.TradingPatch{Quantity: &value}, nil
	case "stop_loss":
		return core.TradingPatch{StopLossPct: &value}, nil
	case "take_profit":
		return core.TradingPatch{TakeProfitPct: &value}, nil
	case "leverage":
		leverage := int(value)
		return core.TradingPatch{Leverage: &leverage}, nil
	default:
		return core.TradingPatch{}, fmt.Errorf("unknown setting %q, expected quantity, stop_loss, take_profit or leverage", field)
	}
}

// Helper function to extract named groups from regex matches
func extractCommandParams(regex *regexp.Regexp, match []string) map[string]string {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}
	return command
}
