package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

type recordSender struct {
	name string
	err  error
	mu   sync.Mutex
	msgs []string
}

func (s *recordSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, title+"|"+message)
	return s.err
}

func (s *recordSender) Name() string { return s.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	a := &recordSender{name: "a"}
	n := NewNotifier([]Sender{a}, []string{EventTrade}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), EventSignal, "t", "m"))
	assert.Empty(t, a.msgs)

	require.NoError(t, n.Notify(context.Background(), EventTrade, "t", "m"))
	assert.Equal(t, []string{"t|m"}, a.msgs)

	require.NoError(t, n.NotifyAll(context.Background(), "x", "y"))
	assert.Len(t, a.msgs, 2)
}

func TestNotifier_OneSenderFailing(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("boom")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), EventError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.msgs, 1)
}

func TestNotifier_Nil(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.Notify(context.Background(), EventSignal, "t", "m"))
	assert.NoError(t, n.NotifyAll(context.Background(), "t", "m"))
}

func TestFormatSignal(t *testing.T) {
	title, body := FormatSignal(domain.Signal{
		Symbol: "BTC/USDT", BuyVenue: "kucoin", SellVenue: "binance",
		BuyPrice: 100, SellPrice: 101, NetSpreadBps: 79.72,
	})
	assert.Equal(t, "Arb Signal BTC/USDT", title)
	assert.Equal(t, "Buy kucoin @ 100.000000\nSell binance @ 101.000000\nNet: 79.72 bps", body)
}

func TestFormatTrade(t *testing.T) {
	_, body := FormatTrade(domain.TradeResult{
		Mode: domain.TradeModePaper, Symbol: "BTC/USDT", Quantity: 2,
		BuyVenue: "kucoin", BuyPrice: 100, SellVenue: "binance", SellPrice: 101, EstPnL: 1234.5,
	})
	assert.Contains(t, body, "Executed: paper BTC/USDT qty 2")
	assert.Contains(t, body, "Est. PnL: $1,234.50")

	title, body := FormatTrade(domain.TradeResult{
		Mode: domain.TradeModeLive, Symbol: "BTC/USDT", BuyVenue: "kucoin",
		BuyOrder:  &domain.OrderConfirmation{OrderID: "b-1"},
		ErrorKind: domain.KindOrderSubmissionError, Detail: "sell rejected",
	})
	assert.Equal(t, "Execution failed BTC/USDT", title)
	assert.Contains(t, body, "order_submission_error")
	assert.Contains(t, body, "Buy order b-1 on kucoin")
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(domain.Settings{
		Running: true, Mode: domain.TradeModePaper, Symbols: []string{"BTC/USDT", "ETH/USDT"},
		MinSpreadBps: 20, SlippageBps: 5, PollInterval: 2 * time.Second, PaperNotionalUSD: 2500,
	})
	assert.Equal(t, "Running: true\nMode: paper\nSymbols: BTC/USDT, ETH/USDT\nMin spread: 20 bps\nSlippage: 5 bps\nPoll: 2s\nPaper notional: $2,500.00", out)
}

func TestDiscordSender_Embed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	d.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, d.Send(context.Background(), "Arb Signal BTC/USDT", strings.Repeat("x", 5000)))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "arbscanner", got.Username)
	assert.Equal(t, "Arb Signal BTC/USDT", e.Title)
	assert.Equal(t, "2026-05-01T09:00:00Z", e.Timestamp)
	assert.LessOrEqual(t, len([]rune(e.Description)), discordMaxDescription)
	assert.True(t, strings.HasPrefix(e.Description, "```\n"))
}

func TestDiscordSender_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestNotifier_Enabled(t *testing.T) {
	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled(EventSignal))
	assert.False(t, NewNotifier(nil, nil, slog.New(slog.DiscardHandler)).Enabled(EventSignal))

	n := NewNotifier([]Sender{&recordSender{name: "a"}}, []string{" Trade "}, slog.New(slog.DiscardHandler))
	assert.True(t, n.Enabled(EventTrade))
	assert.False(t, n.Enabled(EventSignal))
}

// fakeTelegram serves sendMessage and a single batch of getUpdates.
type fakeTelegram struct {
	mu      sync.Mutex
	updates []string
	served  bool
	sent    []map[string]string
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var m map[string]string
		_ = json.Unmarshal(body, &m)
		f.sent = append(f.sent, m)
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		if f.served {
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
			return
		}
		f.served = true
		fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, strings.Join(f.updates, ","))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeTelegram) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m["chat_id"]+":"+m["text"])
	}
	return out
}

func TestTelegramSender_Send(t *testing.T) {
	ft := &fakeTelegram{}
	srv := httptest.NewServer(http.HandlerFunc(ft.handler))
	defer srv.Close()

	tg := NewTelegramSender("tok", "42").WithAPIURL(srv.URL)
	require.NoError(t, tg.Send(context.Background(), "Title", "body"))

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "42", ft.sent[0]["chat_id"])
	assert.Equal(t, "*Title*\nbody", ft.sent[0]["text"])
	assert.Equal(t, "Markdown", ft.sent[0]["parse_mode"])
}

func TestTelegramSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := NewTelegramSender("tok", "42").WithAPIURL(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

type fakeController struct {
	mu sync.Mutex
	s  domain.Settings
}

func (c *fakeController) Status() domain.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Clone()
}

func (c *fakeController) update(fn func(*domain.Settings) error) (domain.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.s.Clone()
	if err := fn(&next); err != nil {
		return c.s.Clone(), err
	}
	c.s = next
	return next.Clone(), nil
}

func (c *fakeController) AddSymbol(_ context.Context, sym string) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error {
		if _, _, err := domain.ParseSymbol(sym); err != nil {
			return err
		}
		s.Symbols = append(s.Symbols, domain.NormalizeSymbol(sym))
		return nil
	})
}

func (c *fakeController) RemoveSymbol(_ context.Context, sym string) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error {
		out := s.Symbols[:0]
		for _, v := range s.Symbols {
			if v != domain.NormalizeSymbol(sym) {
				out = append(out, v)
			}
		}
		s.Symbols = out
		return nil
	})
}

func (c *fakeController) SetMinSpread(_ context.Context, bps float64) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error { s.MinSpreadBps = bps; return nil })
}

func (c *fakeController) SetMode(_ context.Context, mode string) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error {
		m, ok := domain.ParseTradeMode(mode)
		if !ok {
			return domain.ErrInvalidSettings
		}
		s.Mode = m
		return nil
	})
}

func (c *fakeController) Start(context.Context) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error { s.Running = true; return nil })
}

func (c *fakeController) Stop(context.Context) (domain.Settings, error) {
	return c.update(func(s *domain.Settings) error { s.Running = false; return nil })
}

func newTestBot(chatID string) (*CommandBot, *fakeController) {
	ctrl := &fakeController{s: domain.Settings{
		Symbols: []string{"BTC/USDT"}, MinSpreadBps: 20, SlippageBps: 5,
		Mode: domain.TradeModePaper, PaperNotionalUSD: 200, PollInterval: 2 * time.Second,
	}}
	return NewCommandBot(NewTelegramSender("tok", chatID), ctrl, slog.New(slog.DiscardHandler)), ctrl
}

func TestCommandBot_HandleCommand(t *testing.T) {
	ctx := context.Background()
	bot, ctrl := newTestBot("")

	reply, md := bot.HandleCommand(ctx, "/start")
	assert.True(t, md)
	assert.Contains(t, reply, "Mode: *PAPER*")

	reply, _ = bot.HandleCommand(ctx, "/symbols add eth/usdt")
	assert.Equal(t, "Added. Symbols: BTC/USDT, ETH/USDT", reply)

	reply, _ = bot.HandleCommand(ctx, "/symbols remove BTC/USDT")
	assert.Equal(t, "Removed. Symbols: ETH/USDT", reply)

	reply, _ = bot.HandleCommand(ctx, "/symbols add")
	assert.Equal(t, "Usage: /symbols [list|add|remove] [SYMBOL]", reply)

	reply, _ = bot.HandleCommand(ctx, "/symbols add BTCUSDT")
	assert.True(t, strings.HasPrefix(reply, "Rejected: "), reply)

	reply, _ = bot.HandleCommand(ctx, "/setspread")
	assert.Equal(t, "Current MIN_SPREAD_BPS = 20", reply)

	reply, _ = bot.HandleCommand(ctx, "/setspread 12.5")
	assert.Equal(t, "OK. MIN_SPREAD_BPS = 12.5", reply)

	reply, _ = bot.HandleCommand(ctx, "/setspread abc")
	assert.Equal(t, "Usage: /setspread <bps>", reply)

	reply, _ = bot.HandleCommand(ctx, "/live")
	assert.Equal(t, "Mode switched to LIVE. ⚠️ Live trading will place real orders.", reply)
	assert.Equal(t, domain.TradeModeLive, ctrl.Status().Mode)

	reply, _ = bot.HandleCommand(ctx, "/paper@arb_bot")
	assert.Equal(t, "Mode switched to PAPER.", reply)

	reply, _ = bot.HandleCommand(ctx, "/run")
	assert.Equal(t, "Started scanning.", reply)
	reply, _ = bot.HandleCommand(ctx, "/run")
	assert.Equal(t, "Already running.", reply)
	reply, _ = bot.HandleCommand(ctx, "/stop")
	assert.Equal(t, "Stopped.", reply)
	assert.False(t, ctrl.Status().Running)

	reply, _ = bot.HandleCommand(ctx, "/unknown")
	assert.Empty(t, reply)
}

func TestCommandBot_Allowed(t *testing.T) {
	open, _ := newTestBot("")
	assert.True(t, open.Allowed("1", "2"))

	bot, _ := newTestBot("42")
	assert.True(t, bot.Allowed("42", ""))
	assert.True(t, bot.Allowed("7", "42"))
	assert.False(t, bot.Allowed("7", "8"))
}

func TestCommandBot_RunRepliesToAllowedChat(t *testing.T) {
	ft := &fakeTelegram{updates: []string{
		`{"update_id":10,"message":{"text":"/status","chat":{"id":42},"from":{"id":1}}}`,
		`{"update_id":11,"message":{"text":"/run","chat":{"id":99},"from":{"id":99}}}`,
		`{"update_id":12,"message":{"text":"hello","chat":{"id":42}}}`,
	}}
	srv := httptest.NewServer(http.HandlerFunc(ft.handler))
	defer srv.Close()

	bot, ctrl := newTestBot("42")
	bot.tg.WithAPIURL(srv.URL)
	bot.pollTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	require.Eventually(t, func() bool { return len(ft.sentTexts()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sent := ft.sentTexts()
	assert.True(t, strings.HasPrefix(sent[0], "42:Running: false"), sent[0])
	assert.False(t, ctrl.Status().Running)
}
