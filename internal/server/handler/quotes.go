package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// EventStream reads the capped signal and trade streams.
type EventStream interface {
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error)
	StreamRecent(ctx context.Context, stream string, n int) ([]domain.StreamMessage, error)
}

// QuotesHandler serves the cached quotes and the recent event streams.
type QuotesHandler struct {
	quotes domain.QuoteCache
	bus    EventStream
	logger *slog.Logger
}

// NewQuotesHandler creates a QuotesHandler backed by Redis.
func NewQuotesHandler(quotes domain.QuoteCache, bus EventStream, logger *slog.Logger) *QuotesHandler {
	return &QuotesHandler{quotes: quotes, bus: bus, logger: handlerLogger(logger, "quotes")}
}

// GetQuotes returns the last quote each venue gave for a symbol.
// GET /api/quotes/{symbol}
func (h *QuotesHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r)
	if _, _, err := domain.ParseSymbol(sym); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quotes, err := h.quotes.GetQuotes(r.Context(), sym)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no quotes cached for "+sym)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get quotes failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get quotes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": sym, "quotes": quotes})
}

// RecentSignals returns the newest signals kept on the capped stream, newest
// first. With ?after=<id> it returns the entries after id, oldest first.
// GET /api/signals/recent?limit=50
func (h *QuotesHandler) RecentSignals(w http.ResponseWriter, r *http.Request) {
	h.recent(w, r, domain.StreamSignals)
}

// RecentTrades is RecentSignals for trade results.
// GET /api/trades/recent?limit=50
func (h *QuotesHandler) RecentTrades(w http.ResponseWriter, r *http.Request) {
	h.recent(w, r, domain.StreamTrades)
}

type streamEvent struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

func (h *QuotesHandler) recent(w http.ResponseWriter, r *http.Request, stream string) {
	limit := parseLimit(r)

	var (
		msgs []domain.StreamMessage
		err  error
	)
	if after := r.URL.Query().Get("after"); after != "" {
		msgs, err = h.bus.StreamRead(r.Context(), stream, after, limit)
	} else {
		msgs, err = h.bus.StreamRecent(r.Context(), stream, limit)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read stream failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	events := make([]streamEvent, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, streamEvent{ID: m.ID, Event: json.RawMessage(m.Payload)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
