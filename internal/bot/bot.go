// Package bot handles chat commands that manage wallet subscriptions.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/model"
	"github.com/rickgao/liqwatch/internal/telegram"
	"github.com/rickgao/liqwatch/internal/wallet"
)

// Replies.
const (
	helpText = "This bot can send you alerts when one of your positions on Hyperliquid perps is getting near liquidation.\n\n" +
		"Here is the list of available commands:\n" +
		"/add <wallet\\_address> : Add a wallet to the monitoring list\n" +
		"/list : List the wallets you are monitoring\n" +
		"/remove <wallet\\_address> : Stop monitoring a wallet"

	replyMissingAddress = "Please provide a wallet address."
	replyInvalidAddress = "Invalid wallet address."
	replyNoFunds        = "This wallet has no funds on Hyperliquid."
	replyFetchFailed    = "Error retrieving user data."
	replyNoWallets      = "You are not monitoring any wallets."
)

// AccountFetcher retrieves a wallet's account state.
type AccountFetcher interface {
	GetAccountState(ctx context.Context, wallet string) (model.AccountState, error)
}

// Command is a parsed chat command.
type Command struct {
	Name       string   // without the leading slash or @bot suffix
	Args       []string // whitespace-separated arguments
	Subscriber int64
	FirstName  string
}

// ParseCommand extracts a command from message text. ok is false for text
// that is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	name = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}

	return strings.ToLower(name), fields[1:], true
}

// Bot answers chat commands.
type Bot struct {
	registry  *wallet.Registry
	accounts  AccountFetcher
	replies   alert.Dispatcher
	formatter *alert.Formatter
	logger    *slog.Logger
}

// New creates a command handler.
func New(registry *wallet.Registry, accounts AccountFetcher, replies alert.Dispatcher, formatter *alert.Formatter, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = alert.NewFormatter("")
	}

	return &Bot{
		registry:  registry,
		accounts:  accounts,
		replies:   replies,
		formatter: formatter,
		logger:    logger,
	}
}

// HandleUpdate implements telegram.Handler.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil {
		return
	}

	name, args, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}

	cmd := Command{Name: name, Args: args, Subscriber: msg.Chat.ID}
	if msg.From != nil {
		cmd.Subscriber = msg.From.ID
		cmd.FirstName = msg.From.FirstName
	}

	b.logger.Debug("command received", "command", cmd.Name, "subscriber", cmd.Subscriber)

	for _, reply := range b.Execute(ctx, cmd) {
		if err := b.replies.Send(ctx, msg.Chat.ID, reply); err != nil {
			b.logger.Warn("reply failed", "chat", msg.Chat.ID, "command", cmd.Name, "error", err)
		}
	}
}

// Execute runs a command and returns the replies to send, in order.
// Unregistered commands get no reply.
func (b *Bot) Execute(ctx context.Context, cmd Command) []string {
	switch cmd.Name {
	case "start":
		greeting := fmt.Sprintf("GM %s!\nDon't wanna get liquidated? I'm here to help you.", alert.EscapeMarkdown(cmd.FirstName))
		return []string{greeting, helpText}
	case "help":
		return []string{helpText}
	case "add":
		return []string{b.add(ctx, cmd)}
	case "list":
		return []string{b.list(cmd)}
	case "remove":
		return []string{b.remove(cmd)}
	default:
		return nil
	}
}

func (b *Bot) add(ctx context.Context, cmd Command) string {
	if len(cmd.Args) == 0 {
		return replyMissingAddress
	}

	addr, err := wallet.Normalize(cmd.Args[0])
	if err != nil {
		return replyInvalidAddress
	}

	link := b.formatter.WalletLink(addr)

	if slices.Contains(b.registry.Subscribers(addr), cmd.Subscriber) {
		return fmt.Sprintf("You are already monitoring wallet %s.", link)
	}

	state, err := b.accounts.GetAccountState(ctx, addr)
	if err != nil {
		b.logger.Warn("account lookup failed", "wallet", addr, "error", err)
		return replyFetchFailed
	}
	if state.AccountValue <= 0 {
		return replyNoFunds
	}

	added, err := b.registry.Add(addr, cmd.Subscriber)
	if err != nil {
		return replyInvalidAddress
	}
	if !added {
		return fmt.Sprintf("You are already monitoring wallet %s.", link)
	}

	b.logger.Info("wallet added", "wallet", addr, "subscriber", cmd.Subscriber)
	return fmt.Sprintf("Wallet %s added to monitoring list.", link)
}

func (b *Bot) list(cmd Command) string {
	wallets := b.registry.WalletsFor(cmd.Subscriber)
	if len(wallets) == 0 {
		return replyNoWallets
	}

	lines := make([]string, 0, len(wallets)+1)
	lines = append(lines, "You are monitoring the following wallets:")
	for _, addr := range wallets {
		lines = append(lines, b.formatter.WalletLink(addr))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) remove(cmd Command) string {
	if len(cmd.Args) == 0 {
		return replyMissingAddress
	}

	addr, err := wallet.Normalize(cmd.Args[0])
	if err != nil {
		return replyInvalidAddress
	}

	link := b.formatter.WalletLink(addr)

	if !b.registry.Remove(addr, cmd.Subscriber) {
		return fmt.Sprintf("You are not monitoring wallet %s.", link)
	}

	b.logger.Info("wallet removed", "wallet", addr, "subscriber", cmd.Subscriber)
	return fmt.Sprintf("Stopped monitoring wallet %s.", link)
}
