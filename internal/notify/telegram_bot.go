package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Controller is the set of runtime controls the command bot drives. Every
// method returns the settings in effect after the call.
type Controller interface {
	Status() domain.Settings
	AddSymbol(ctx context.Context, symbol string) (domain.Settings, error)
	RemoveSymbol(ctx context.Context, symbol string) (domain.Settings, error)
	SetMinSpread(ctx context.Context, bps float64) (domain.Settings, error)
	SetMode(ctx context.Context, mode string) (domain.Settings, error)
	Start(ctx context.Context) (domain.Settings, error)
	Stop(ctx context.Context) (domain.Settings, error)
}

const helpText = "/start, /help, /status\n" +
	"/symbols [list|add|remove] [SYMBOL]\n" +
	"/setspread <bps>\n" +
	"/paper  or  /live\n" +
	"/run  or  /stop"

// CommandBot long-polls the Telegram Bot API for commands and applies them
// through a Controller. Only the configured chat (or a user with that id) is
// served; with no chat configured everyone is.
type CommandBot struct {
	tg          *TelegramSender
	ctrl        Controller
	allowed     string
	pollTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewCommandBot creates a CommandBot that replies through tg.
func NewCommandBot(tg *TelegramSender, ctrl Controller, logger *slog.Logger) *CommandBot {
	return &CommandBot{
		tg:          tg,
		ctrl:        ctrl,
		allowed:     tg.chatID,
		pollTimeout: 25 * time.Second,
		retryDelay:  3 * time.Second,
		logger:      logger.With(slog.String("component", "telegram_bot")),
	}
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
}

// Run polls for updates until ctx is cancelled. Transport errors are logged
// and retried after a short delay.
func (b *CommandBot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "command bot started")
	var offset int64
	for {
		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.WarnContext(ctx, "getUpdates failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
				continue
			}
			chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
			var userID string
			if u.Message.From != nil {
				userID = strconv.FormatInt(u.Message.From.ID, 10)
			}
			if !b.Allowed(chatID, userID) {
				b.logger.WarnContext(ctx, "command from unauthorised chat ignored",
					slog.String("chat_id", chatID),
					slog.String("user_id", userID),
				)
				continue
			}

			reply, markdown := b.HandleCommand(ctx, u.Message.Text)
			if reply == "" {
				continue
			}
			mode := ""
			if markdown {
				mode = "Markdown"
			}
			if err := b.tg.SendText(ctx, chatID, reply, mode); err != nil {
				b.logger.WarnContext(ctx, "reply failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Allowed reports whether a command from chatID/userID should be served.
func (b *CommandBot) Allowed(chatID, userID string) bool {
	if b.allowed == "" {
		return true
	}
	return chatID == b.allowed || (userID != "" && userID == b.allowed)
}

// HandleCommand executes one command line and returns the reply text. The
// second result reports whether the reply uses Markdown. Unknown commands
// produce no reply.
func (b *CommandBot) HandleCommand(ctx context.Context, text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		s := b.ctrl.Status()
		return fmt.Sprintf("🤖 *Arbitrage Bot Ready*\nUse /run to start scanning and /stop to stop.\nMode: *%s*",
			strings.ToUpper(string(s.Mode))), true
	case "/help":
		return helpText, false
	case "/status":
		return FormatStatus(b.ctrl.Status()), false
	case "/symbols":
		return b.symbols(ctx, args), false
	case "/setspread":
		return b.setSpread(ctx, args), false
	case "/paper":
		if _, err := b.ctrl.SetMode(ctx, string(domain.TradeModePaper)); err != nil {
			return errReply(err), false
		}
		return "Mode switched to PAPER.", false
	case "/live":
		if _, err := b.ctrl.SetMode(ctx, string(domain.TradeModeLive)); err != nil {
			return errReply(err), false
		}
		return "Mode switched to LIVE. ⚠️ Live trading will place real orders.", false
	case "/run":
		if b.ctrl.Status().Running {
			return "Already running.", false
		}
		if _, err := b.ctrl.Start(ctx); err != nil {
			return errReply(err), false
		}
		return "Started scanning.", false
	case "/stop":
		if _, err := b.ctrl.Stop(ctx); err != nil {
			return errReply(err), false
		}
		return "Stopped.", false
	}
	return "", false
}

func (b *CommandBot) symbols(ctx context.Context, args []string) string {
	if len(args) == 0 || strings.EqualFold(args[0], "list") {
		return "Symbols: " + strings.Join(b.ctrl.Status().Symbols, ", ")
	}
	if len(args) < 2 {
		return "Usage: /symbols [list|add|remove] [SYMBOL]"
	}
	switch strings.ToLower(args[0]) {
	case "add":
		s, err := b.ctrl.AddSymbol(ctx, args[1])
		if err != nil {
			return errReply(err)
		}
		return "Added. Symbols: " + strings.Join(s.Symbols, ", ")
	case "remove":
		s, err := b.ctrl.RemoveSymbol(ctx, args[1])
		if err != nil {
			return errReply(err)
		}
		return "Removed. Symbols: " + strings.Join(s.Symbols, ", ")
	}
	return "Usage: /symbols [list|add|remove] [SYMBOL]"
}

func (b *CommandBot) setSpread(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Current MIN_SPREAD_BPS = %g", b.ctrl.Status().MinSpreadBps)
	}
	bps, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "Usage: /setspread <bps>"
	}
	s, err := b.ctrl.SetMinSpread(ctx, bps)
	if err != nil {
		return errReply(err)
	}
	return fmt.Sprintf("OK. MIN_SPREAD_BPS = %g", s.MinSpreadBps)
}

func errReply(err error) string {
	if errors.Is(err, domain.ErrInvalidSettings) || errors.Is(err, domain.ErrInvalidSymbol) {
		return "Rejected: " + err.Error()
	}
	return "Error: " + err.Error()
}

func (b *CommandBot) getUpdates(ctx context.Context, offset int64) ([]tgUpdate, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(b.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	raw, err := b.tg.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []tgUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}
