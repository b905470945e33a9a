package ws

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// client is one dashboard connection with its channel and symbol filters.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]bool // "ch:*" style prefixes allowed
	symbols  map[string]bool // empty means every symbol
}

// command is what a client sends to change its filters:
//
//	{"action":"subscribe","channels":["ch:trade"]}
//	{"action":"unsubscribe","channels":["ch:status"]}
//	{"action":"symbols","symbols":["BTC/USDT"]}   (empty list clears)
//	{"subscribe":["ch:signal"]}                    (short form)
type command struct {
	Action      string   `json:"action"`
	Channels    []string `json:"channels"`
	Symbols     []string `json:"symbols"`
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

// queue sends frame without blocking; frames that do not fit are dropped.
func (c *client) queue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

// wants reports whether ev passes the client's filters. A channel entry
// ending in "*" matches by prefix. Events without a symbol pass the symbol
// filter.
func (c *client) wants(ev event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subscribed := c.channels[ev.channel]
	for sub := range c.channels {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(ev.channel, prefix) {
			subscribed = true
			break
		}
	}
	if !subscribed {
		return false
	}
	return len(c.symbols) == 0 || ev.symbol == "" || c.symbols[ev.symbol]
}

// apply updates the filters and returns the acknowledgement frame, or nil
// when cmd changes nothing.
func (c *client) apply(cmd command) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, ch := range cmd.Subscribe {
		c.channels[ch], changed = true, true
	}
	for _, ch := range cmd.Unsubscribe {
		delete(c.channels, ch)
		changed = true
	}
	switch cmd.Action {
	case "subscribe":
		for _, ch := range cmd.Channels {
			c.channels[ch] = true
		}
		changed = true
	case "unsubscribe":
		for _, ch := range cmd.Channels {
			delete(c.channels, ch)
		}
		changed = true
	case "symbols":
		clear(c.symbols)
		for _, s := range cmd.Symbols {
			if s = domain.NormalizeSymbol(s); s != "" {
				c.symbols[s] = true
			}
		}
		changed = true
	}
	if !changed {
		return nil
	}

	ack, _ := json.Marshal(map[string]any{
		"type": "subscribed",
		"payload": map[string]any{
			"channels": slices.Sorted(maps.Keys(c.channels)),
			"symbols":  slices.Sorted(maps.Keys(c.symbols)),
		},
	})
	return ack
}

// readPump handles filter commands until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("connection closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var cmd command
		if json.Unmarshal(msg, &cmd) != nil {
			continue
		}
		if ack := c.apply(cmd); ack != nil {
			c.hub.deliver(c, ack)
		}
	}
}

// writePump writes queued frames as text messages and keeps the connection
// alive with pings. It exits when send is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
