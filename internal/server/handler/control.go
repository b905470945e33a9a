package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// ControlService defines the runtime controls the control handler requires.
type ControlService interface {
	Status() domain.Settings
	AddSymbol(ctx context.Context, symbol string) (domain.Settings, error)
	RemoveSymbol(ctx context.Context, symbol string) (domain.Settings, error)
	SetSymbols(ctx context.Context, symbols []string) (domain.Settings, error)
	SetMinSpread(ctx context.Context, bps float64) (domain.Settings, error)
	SetSlippage(ctx context.Context, bps float64) (domain.Settings, error)
	SetPaperNotional(ctx context.Context, usd float64) (domain.Settings, error)
	SetMode(ctx context.Context, mode string) (domain.Settings, error)
	Start(ctx context.Context) (domain.Settings, error)
	Stop(ctx context.Context) (domain.Settings, error)
}

// ControlHandler serves the operator endpoints over the runtime settings.
type ControlHandler struct {
	ctrl    ControlService
	appMode string
	venues  []string
	logger  *slog.Logger
}

// NewControlHandler creates a ControlHandler. appMode and venues are reported
// by GET /api/status.
func NewControlHandler(ctrl ControlService, appMode string, venues []string, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{ctrl: ctrl, appMode: appMode, venues: venues, logger: handlerLogger(logger, "control")}
}

type statusResponse struct {
	AppMode  string          `json:"app_mode"`
	Venues   []string        `json:"venues"`
	Settings domain.Settings `json:"settings"`
}

// GetStatus returns the current settings.
// GET /api/status
func (h *ControlHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{AppMode: h.appMode, Venues: h.venues, Settings: h.ctrl.Status()})
}

// ListSymbols returns the scanned symbols.
// GET /api/symbols
func (h *ControlHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": h.ctrl.Status().Symbols})
}

type symbolsRequest struct {
	Symbol  string   `json:"symbol"`
	Symbols []string `json:"symbols"`
}

// AddSymbol adds one symbol, or replaces the list when "symbols" is given.
// POST /api/symbols {"symbol":"ETH/USDT"} | {"symbols":["BTC/USDT"]}
func (h *ControlHandler) AddSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case req.Symbols != nil:
		h.respond(w, r, "set symbols", func(ctx context.Context) (domain.Settings, error) {
			return h.ctrl.SetSymbols(ctx, req.Symbols)
		})
	case req.Symbol != "":
		h.respond(w, r, "add symbol", func(ctx context.Context) (domain.Settings, error) {
			return h.ctrl.AddSymbol(ctx, req.Symbol)
		})
	default:
		writeError(w, http.StatusBadRequest, "symbol or symbols is required")
	}
}

// RemoveSymbol drops a symbol. The path uses BASE-QUOTE since "/" can't
// appear in a path segment; BASE/QUOTE in the query ?symbol= also works.
// DELETE /api/symbols/{symbol}
func (h *ControlHandler) RemoveSymbol(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r)
	h.respond(w, r, "remove symbol", func(ctx context.Context) (domain.Settings, error) {
		return h.ctrl.RemoveSymbol(ctx, sym)
	})
}

type settingsPatch struct {
	MinSpreadBps     *float64 `json:"min_spread_bps"`
	SlippageBps      *float64 `json:"slippage_bps"`
	PaperNotionalUSD *float64 `json:"paper_notional_usd"`
}

// UpdateSpread changes the threshold, slippage allowance or paper notional.
// Fields are applied in that order and the first rejection stops the rest.
// PUT /api/spread {"min_spread_bps":15}
func (h *ControlHandler) UpdateSpread(w http.ResponseWriter, r *http.Request) {
	var req settingsPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MinSpreadBps == nil && req.SlippageBps == nil && req.PaperNotionalUSD == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	h.respond(w, r, "update spread", func(ctx context.Context) (domain.Settings, error) {
		s := h.ctrl.Status()
		var err error
		if req.MinSpreadBps != nil {
			if s, err = h.ctrl.SetMinSpread(ctx, *req.MinSpreadBps); err != nil {
				return s, err
			}
		}
		if req.SlippageBps != nil {
			if s, err = h.ctrl.SetSlippage(ctx, *req.SlippageBps); err != nil {
				return s, err
			}
		}
		if req.PaperNotionalUSD != nil {
			if s, err = h.ctrl.SetPaperNotional(ctx, *req.PaperNotionalUSD); err != nil {
				return s, err
			}
		}
		return s, nil
	})
}

// UpdateMode switches paper/live.
// PUT /api/mode {"mode":"live"}
func (h *ControlHandler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respond(w, r, "set mode", func(ctx context.Context) (domain.Settings, error) {
		return h.ctrl.SetMode(ctx, req.Mode)
	})
}

// Run starts scanning.
// POST /api/scanner/run
func (h *ControlHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "start", h.ctrl.Start)
}

// Stop stops scanning.
// POST /api/scanner/stop
func (h *ControlHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "stop", h.ctrl.Stop)
}

func (h *ControlHandler) respond(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) (domain.Settings, error)) {
	s, err := fn(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// symbolParam accepts BTC-USDT or BTC_USDT in the path, or BTC/USDT in the
// query, and returns BTC/USDT.
func symbolParam(r *http.Request) string {
	if q := r.URL.Query().Get("symbol"); q != "" {
		return domain.NormalizeSymbol(q)
	}
	raw := r.PathValue("symbol")
	for _, sep := range []string{"-", "_"} {
		if base, quote, ok := strings.Cut(raw, sep); ok {
			return domain.NormalizeSymbol(base + "/" + quote)
		}
	}
	return domain.NormalizeSymbol(raw)
}

