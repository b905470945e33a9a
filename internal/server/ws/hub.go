// Package ws pushes scanner events to dashboards over WebSocket. The hub
// listens on the Redis bus channels, wraps each payload in a typed envelope
// and forwards it to every client whose channel and symbol filters match.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// relayed lists the bus channels forwarded to clients.
var relayed = []string{
	domain.ChannelSignal,
	domain.ChannelTrade,
	domain.ChannelStatus,
	domain.ChannelError,
}

// RecentReader is implemented by buses that keep a capped event stream. When
// the hub's bus has it, new clients get the latest signals replayed.
type RecentReader interface {
	StreamRecent(ctx context.Context, stream string, n int) ([]domain.StreamMessage, error)
}

// Config captures what the hub tells clients on connect.
type Config struct {
	AppMode string
	// Status supplies the settings snapshot in the greeting; may be nil.
	Status    func() domain.Settings
	StartedAt time.Time
	// AllowedOrigins restricts browser upgrades; empty allows any origin.
	AllowedOrigins []string
	// Replay is how many recent signals a new client receives; 0 disables.
	Replay int
}

// event is one bus message ready to fan out.
type event struct {
	channel string
	symbol  string // "" for events not tied to a symbol
	frame   []byte
}

// Hub tracks connected clients and relays bus events to them.
type Hub struct {
	bus      domain.SignalBus
	recent   RecentReader
	upgrader websocket.Upgrader
	cfg      Config
	logger   *slog.Logger

	events chan event
	done   chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub reading from bus. Run must be started for events to
// flow.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	cfg.AppMode = strings.ToLower(strings.TrimSpace(cfg.AppMode))
	if cfg.AppMode == "" {
		cfg.AppMode = "unknown"
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	recent, _ := bus.(RecentReader)

	return &Hub{
		bus:    bus,
		recent: recent,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ws_hub")),
		events:  make(chan event, 256),
		done:    make(chan struct{}),
		clients: make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return o == "*" || strings.EqualFold(o, origin)
		})
	}
}

// Run subscribes to the bus and fans events out until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range relayed {
		go h.relay(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case ev := <-h.events:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	close(h.done)
	for c := range h.clients {
		close(c.send)
	}
	clear(h.clients)
}

func (h *Hub) fanOut(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- ev.frame:
		default:
			h.logger.Warn("client too slow, dropping event", slog.String("channel", ev.channel))
		}
	}
}

// relay forwards one bus channel into the hub.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("subscribe failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("relaying channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				h.logger.Warn("bus subscription closed", slog.String("channel", channel))
				return
			}
			ev := event{channel: channel, symbol: symbolOf(payload), frame: envelope(channel, payload, false)}
			select {
			case h.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("client connected", slog.Int("clients", len(h.clients)))
	return true
}

// deliver queues frame for c if it is still connected.
func (h *Hub) deliver(c *client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		c.queue(frame)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info("client disconnected", slog.Int("clients", len(h.clients)))
}

// HandleWS upgrades the request, greets the client with the scanner status
// and recent signals, then starts its pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]bool, len(relayed)),
		symbols:  map[string]bool{},
	}
	for _, ch := range relayed {
		c.channels[ch] = true
	}

	c.queue(h.greeting())
	for _, frame := range h.replay(r.Context()) {
		c.queue(frame)
	}

	if !h.add(c) {
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) greeting() []byte {
	payload := map[string]any{
		"app_mode":       h.cfg.AppMode,
		"ws_connected":   true,
		"uptime_seconds": max(int64(time.Since(h.cfg.StartedAt).Seconds()), 0),
	}
	if h.cfg.Status != nil {
		payload["settings"] = h.cfg.Status()
	}
	msg, _ := json.Marshal(map[string]any{"type": "scanner_status", "payload": payload})
	return msg
}

// replay returns the newest signals oldest first, flagged as replayed.
func (h *Hub) replay(ctx context.Context) [][]byte {
	if h.recent == nil || h.cfg.Replay <= 0 {
		return nil
	}
	msgs, err := h.recent.StreamRecent(ctx, domain.StreamSignals, h.cfg.Replay)
	if err != nil {
		h.logger.Warn("signal replay failed", slog.String("error", err.Error()))
		return nil
	}
	frames := make([][]byte, 0, len(msgs))
	for _, m := range slices.Backward(msgs) {
		frames = append(frames, envelope(domain.ChannelSignal, m.Payload, true))
	}
	return frames
}

// envelope wraps a bus payload as {"type":"signal","payload":{...}}.
func envelope(channel string, payload []byte, replayed bool) []byte {
	var raw json.RawMessage = payload
	if !json.Valid(payload) {
		raw, _ = json.Marshal(string(payload))
	}
	msg := map[string]any{"type": strings.TrimPrefix(channel, "ch:"), "payload": raw}
	if replayed {
		msg["replay"] = true
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return payload
	}
	return out
}

// symbolOf extracts the "symbol" field signals and trades carry.
func symbolOf(payload []byte) string {
	var v struct {
		Symbol string `json:"symbol"`
	}
	if json.Unmarshal(payload, &v) != nil {
		return ""
	}
	return domain.NormalizeSymbol(v.Symbol)
}
